package sim

import (
	"strconv"
	"time"

	"github.com/netsimkit/ifsim/internal/metrics"
	"github.com/netsimkit/ifsim/pkg/counter"
	"github.com/netsimkit/ifsim/pkg/util"
)

// ifaceRuntime is the engine-private mutable state behind one registered
// interface. Everything here is guarded by the engine mutex; none of these
// fields are safe to touch without it.
type ifaceRuntime struct {
	def InterfaceDefinition // SpeedMbps mutates on speed changes

	admin      AdminStatus
	oper       OperStatus
	lastChange time.Time // last oper transition, backs ifLastChange
	physAddr   string    // raw 6-byte form of def.PhysAddress

	counters    map[Attribute]*counter.Counter
	util        float64 // utilization behind the current rates
	lastRefresh time.Time
	paused      bool

	// pendingRestore is non-nil from link-down until the restore one-shot
	// fires or is dropped. At most one restore exists per interface.
	pendingRestore *restorePoint

	// adminForced marks that the current non-up oper status was imposed by
	// an admin change, so restoring admin up may bring the link back.
	adminForced bool

	spikeLevel     float64   // utilization floor while a random spike is active
	spikeUntil     time.Time // spike expiry; zero when no spike
	lastSpikeEvent time.Time // UtilizationSpike dedupe
	lastErrorEvent time.Time // ErrorThresholdExceeded dedupe

	flapNext  time.Time // next scheduled flap, when def.Flap.Enabled
	speedNext time.Time // next scheduled speed step, when def.SpeedCycle.Enabled
	speedPos  int       // last position in def.SpeedCycle.SpeedsMbps
}

type restorePoint struct {
	prior OperStatus
	at    time.Time
}

// RegisterInterface validates the definition, fills defaults, and adds the
// interface to the engine. Validation failures surface synchronously and
// leave the registry untouched. Counters are anchored at the engine epoch,
// so an interface registered mid-run starts with a plausible history behind
// it rather than a row of zeroes.
func (e *Engine) RegisterInterface(def InterfaceDefinition) (*Interface, error) {
	def.applyDefaults()
	if err := def.validate(e.patterns); err != nil {
		return nil, err
	}
	now := e.clk.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.ifaces[def.Index]; ok {
		return nil, util.NewAlreadyExistsError("interface index", strconv.Itoa(def.Index))
	}
	for _, idx := range e.order {
		if e.ifaces[idx].def.Name == def.Name {
			return nil, util.NewAlreadyExistsError("interface name", def.Name)
		}
	}

	rt := e.buildRuntimeLocked(def, now)
	e.ifaces[def.Index] = rt
	e.insertOrderLocked(def.Index)
	metrics.InterfacesRegistered.Inc()
	util.Infof("sim: registered interface %d (%s) speed=%dMbps pattern=%s",
		def.Index, def.Name, def.SpeedMbps, def.Pattern)

	return &Interface{engine: e, index: def.Index, name: def.Name}, nil
}

// Lookup returns the handle for a registered index.
func (e *Engine) Lookup(index int) (*Interface, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rt, ok := e.ifaces[index]
	if !ok {
		return nil, util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	return &Interface{engine: e, index: index, name: rt.def.Name}, nil
}

func (e *Engine) buildRuntimeLocked(def InterfaceDefinition, now time.Time) *ifaceRuntime {
	physAddr, _ := parsePhysAddress(def.PhysAddress) // validated above

	rt := &ifaceRuntime{
		def:        def,
		admin:      def.AdminStatus,
		lastChange: now,
		physAddr:   physAddr,
		counters:   make(map[Attribute]*counter.Counter),
		util:       def.BaseUtilization,
		speedPos:   -1,
	}
	switch def.AdminStatus {
	case AdminDown:
		rt.oper = OperDown
		rt.paused = true
		rt.adminForced = true
	case AdminTesting:
		rt.oper = OperTesting
		rt.paused = true
		rt.adminForced = true
	default:
		rt.oper = OperUp
	}

	rates := targetRates(&def, rt.util)
	for _, attr := range Attributes() {
		if !attr.IsCounter() {
			continue
		}
		width := counter.Width64
		if attr.Type() == TypeCounter32 {
			width = counter.Width32
		}
		rate := 0.0
		if !rt.paused {
			rate = rates[baseStream(attr)]
		}
		rt.counters[attr] = counter.New(width, initialCounterValue(&def, attr), rate, def.Acceleration, e.epoch)
	}
	rt.lastRefresh = now

	if def.Flap.Enabled {
		rt.flapNext = now.Add(def.Flap.Interval)
	}
	if def.SpeedCycle.Enabled {
		rt.speedNext = now.Add(def.SpeedCycle.Interval)
		for i, s := range def.SpeedCycle.SpeedsMbps {
			if s == def.SpeedMbps {
				rt.speedPos = i
				break
			}
		}
	}
	return rt
}

// initialCounterValue resolves the starting value for a counter attribute,
// letting a 32/64-bit pair share one configured value: the missing partner
// inherits it (the 32-bit side truncated by the counter's own masking).
func initialCounterValue(def *InterfaceDefinition, attr Attribute) uint64 {
	if v, ok := def.InitialCounters[attr.String()]; ok {
		return v
	}
	if partner, ok := widthPartner(attr); ok {
		if v, ok := def.InitialCounters[partner.String()]; ok {
			return v
		}
	}
	return 0
}

// ============================================================================
// Rate Derivation
// ============================================================================

// targetRates derives per-second increment rates for the twelve base counter
// streams from utilization: octets split in/out, packets from average packet
// size, unicast/multicast/broadcast by ratio, errors and discards as
// per-packet probabilities. 64-bit partners reuse the legacy stream's rate
// via baseStream.
func targetRates(def *InterfaceDefinition, u float64) map[Attribute]float64 {
	capacity := def.capacityBytesPerSec()
	inBytes := capacity * u * def.InSplit
	outBytes := capacity * u * (1 - def.InSplit)
	inPkts := inBytes / float64(def.AvgPacketBytes)
	outPkts := outBytes / float64(def.AvgPacketBytes)

	return map[Attribute]float64{
		IfInOctets:         inBytes,
		IfOutOctets:        outBytes,
		IfInUcastPkts:      inPkts * def.Ratios.Unicast,
		IfInMulticastPkts:  inPkts * def.Ratios.Multicast,
		IfInBroadcastPkts:  inPkts * def.Ratios.Broadcast,
		IfOutUcastPkts:     outPkts * def.Ratios.Unicast,
		IfOutMulticastPkts: outPkts * def.Ratios.Multicast,
		IfOutBroadcastPkts: outPkts * def.Ratios.Broadcast,
		IfInErrors:         inPkts * def.ErrorRate,
		IfInDiscards:       inPkts * def.DiscardRate,
		IfOutErrors:        outPkts * def.ErrorRate,
		IfOutDiscards:      outPkts * def.DiscardRate,
	}
}

// applyRatesLocked folds every counter at now and points it at the rates
// implied by utilization u. Paused interfaces keep their rates at zero and
// just remember u for the eventual resume.
func (e *Engine) applyRatesLocked(rt *ifaceRuntime, u float64, now time.Time) {
	rt.util = u
	if rt.paused {
		return
	}
	rates := targetRates(&rt.def, u)
	for attr, c := range rt.counters {
		c.SetRate(now, rates[baseStream(attr)])
	}
}

// refreshRatesLocked re-evaluates the traffic pattern (spike override
// included) and applies the resulting rates. Reads use it lazily; the
// scheduler's monitor step uses it every tick.
func (e *Engine) refreshRatesLocked(rt *ifaceRuntime, now time.Time) float64 {
	u := e.effectiveUtilizationLocked(rt, now)
	e.applyRatesLocked(rt, u, now)
	rt.lastRefresh = now
	return u
}

// effectiveUtilizationLocked is the pattern's answer with any active random
// spike applied as a floor.
func (e *Engine) effectiveUtilizationLocked(rt *ifaceRuntime, now time.Time) float64 {
	u := e.patterns.Utilization(rt.def.Index, rt.def.Pattern, now)
	if now.Before(rt.spikeUntil) && rt.spikeLevel > u {
		u = rt.spikeLevel
	}
	return u
}

// pauseCountersLocked freezes every counter at its current value.
func (e *Engine) pauseCountersLocked(rt *ifaceRuntime, now time.Time) {
	if rt.paused {
		return
	}
	for _, c := range rt.counters {
		c.SetRate(now, 0)
	}
	rt.paused = true
}

// resumeCountersLocked unfreezes counters with rates recomputed from the
// pattern's current utilization.
func (e *Engine) resumeCountersLocked(rt *ifaceRuntime, now time.Time) {
	if !rt.paused {
		return
	}
	rt.paused = false
	u := e.effectiveUtilizationLocked(rt, now)
	e.applyRatesLocked(rt, u, now)
	rt.lastRefresh = now
}
