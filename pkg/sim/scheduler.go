package sim

import (
	"fmt"
	"strconv"
	"time"

	"github.com/netsimkit/ifsim/internal/metrics"
	"github.com/netsimkit/ifsim/pkg/util"
)

// Random event durations and candidates. A random flap keeps the link down
// 10-120s, a random spike pins utilization at 0.95 for 30-120s, a random
// speed change picks any standard speed other than the current one.
const (
	randomFlapMinDown   = 10 * time.Second
	randomFlapDownRange = 110 * time.Second
	randomSpikeLevel    = 0.95
	randomSpikeMinHold  = 30 * time.Second
	randomSpikeRange    = 90 * time.Second
)

var speedCandidatesMbps = []uint64{10, 100, 1000, 10000, 25000, 40000, 100000}

type oneShotKind int

const (
	oneShotRestoreLink oneShotKind = iota
)

func (k oneShotKind) String() string {
	if k == oneShotRestoreLink {
		return "restore-link"
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// oneShotEvent is a single deferred action owned by the scheduler, executed
// on the first tick at or after fireAt.
type oneShotEvent struct {
	fireAt  time.Time
	kind    oneShotKind
	index   int
	payload interface{}
}

type restorePayload struct {
	prior OperStatus
}

// tick runs one scheduler pass. Step order is fixed: due one-shots first so
// a restored link is eligible for everything after it, then random events,
// scheduled flaps, scheduled speed changes, and last the monitor that
// refreshes rates and raises threshold events. The whole pass holds the
// write lock; subscriber callbacks run after it is released.
func (e *Engine) tick() {
	started := time.Now()
	now := e.clk.Now()

	e.mu.Lock()
	e.runOneShotsLocked(now)
	e.runRandomEventsLocked(now)
	e.runFlapSchedulesLocked(now)
	e.runSpeedSchedulesLocked(now)
	e.runMonitorLocked(now)
	evs, subs := e.takePendingLocked()
	e.mu.Unlock()

	metrics.SchedulerTicks.Inc()
	metrics.TickDuration.Observe(time.Since(started).Seconds())
	e.deliver(evs, subs)
}

// ============================================================================
// Step 1: One-Shot Events
// ============================================================================

func (e *Engine) runOneShotsLocked(now time.Time) {
	if len(e.oneShots) == 0 {
		return
	}
	remaining := e.oneShots[:0]
	for _, ev := range e.oneShots {
		if ev.fireAt.After(now) {
			remaining = append(remaining, ev)
			continue
		}
		e.executeOneShotLocked(ev, now)
	}
	e.oneShots = remaining
}

// executeOneShotLocked runs one deferred action. A failure is transient: it
// is logged and counted, and the scheduler moves on to the next event.
func (e *Engine) executeOneShotLocked(ev oneShotEvent, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SchedulerErrors.Inc()
			util.Errorf("scheduler: one-shot %s for interface %d failed: %v", ev.kind, ev.index, r)
		}
	}()

	switch ev.kind {
	case oneShotRestoreLink:
		rt, ok := e.ifaces[ev.index]
		if !ok {
			return
		}
		p := ev.payload.(restorePayload)
		rt.pendingRestore = nil
		if rt.admin != AdminUp {
			// the flap window has passed; admin is now the only hold
			rt.adminForced = true
			util.Debugf("scheduler: dropping link restore for interface %d, admin status is %s", ev.index, rt.admin)
			return
		}
		e.setOperStatusLocked(rt, p.prior, now, map[string]string{"cause": "restore"})
	default:
		panic(fmt.Sprintf("unknown one-shot kind %d", int(ev.kind)))
	}
}

// ============================================================================
// Step 2: Random Events
// ============================================================================

// runRandomEventsLocked gives each up interface one chance per tick to
// suffer a random fault. The hit draw happens for every eligible interface
// whether or not it hits, so the stream advances deterministically.
func (e *Engine) runRandomEventsLocked(now time.Time) {
	if !e.opts.RandomEvents.Enabled {
		return
	}
	for _, idx := range e.order {
		rt := e.ifaces[idx]
		if rt.admin != AdminUp || rt.oper != OperUp {
			continue
		}
		if e.rand.RandU01() >= e.opts.RandomEvents.Probability {
			continue
		}
		switch r := e.rand.RandU01(); {
		case r < 1.0/3.0:
			down := randomFlapMinDown + time.Duration(e.rand.RandU01()*float64(randomFlapDownRange))
			e.flapLocked(rt, down, now, "random")
		case r < 2.0/3.0:
			e.changeSpeedLocked(rt, e.pickRandomSpeedLocked(rt), now, "random")
		default:
			e.startSpikeLocked(rt, now)
		}
	}
}

func (e *Engine) pickRandomSpeedLocked(rt *ifaceRuntime) uint64 {
	n := len(speedCandidatesMbps)
	i := int(e.rand.RandU01()*float64(n)) % n
	if speedCandidatesMbps[i] == rt.def.SpeedMbps {
		i = (i + 1) % n
	}
	return speedCandidatesMbps[i]
}

// startSpikeLocked pins utilization at the spike level until the hold
// expires. Rates pick the spike up on the monitor step this same tick.
func (e *Engine) startSpikeLocked(rt *ifaceRuntime, now time.Time) {
	hold := randomSpikeMinHold + time.Duration(e.rand.RandU01()*float64(randomSpikeRange))
	rt.spikeLevel = randomSpikeLevel
	rt.spikeUntil = now.Add(hold)
	rt.lastSpikeEvent = now
	e.emitLocked(Event{
		Index: rt.def.Index,
		Type:  EventUtilizationSpike,
		Time:  now,
		Old:   fmt.Sprintf("%.2f", rt.util),
		New:   fmt.Sprintf("%.2f", randomSpikeLevel),
		Meta:  map[string]string{"cause": "random", "hold": hold.String()},
	})
}

// ============================================================================
// Steps 3 and 4: Configured Flap and Speed Schedules
// ============================================================================

func (e *Engine) runFlapSchedulesLocked(now time.Time) {
	for _, idx := range e.order {
		rt := e.ifaces[idx]
		f := rt.def.Flap
		if !f.Enabled || rt.flapNext.After(now) {
			continue
		}
		e.flapLocked(rt, f.DownDuration, now, "schedule")
		rt.flapNext = rt.flapNext.Add(f.Interval)
	}
}

// runSpeedSchedulesLocked advances each enabled speed cycle to its next
// configured speed. Cycles keep stepping even while a link is down; the
// speed is a property of the port, not the session.
func (e *Engine) runSpeedSchedulesLocked(now time.Time) {
	for _, idx := range e.order {
		rt := e.ifaces[idx]
		sc := rt.def.SpeedCycle
		if !sc.Enabled || rt.speedNext.After(now) {
			continue
		}
		rt.speedPos = (rt.speedPos + 1) % len(sc.SpeedsMbps)
		e.changeSpeedLocked(rt, sc.SpeedsMbps[rt.speedPos], now, "schedule")
		rt.speedNext = rt.speedNext.Add(sc.Interval)
	}
}

// ============================================================================
// Step 5: Monitor
// ============================================================================

// dedupeOpen reports whether a threshold event may fire: either it never
// has, or the last one is at least a full dedupe window old.
func dedupeOpen(last, now time.Time) bool {
	return last.IsZero() || now.Sub(last) >= spikeDedupeWindow
}

// runMonitorLocked refreshes every healthy interface's rates from its
// pattern and raises threshold events: utilization above 0.9 and error rate
// above the configured errors/sec, each deduplicated per interface within a
// 300s window.
func (e *Engine) runMonitorLocked(now time.Time) {
	for _, idx := range e.order {
		rt := e.ifaces[idx]
		if rt.admin != AdminUp || rt.oper != OperUp || rt.paused {
			continue
		}
		u := e.refreshRatesLocked(rt, now)

		if u > utilizationThreshold && dedupeOpen(rt.lastSpikeEvent, now) {
			rt.lastSpikeEvent = now
			e.emitLocked(Event{
				Index: rt.def.Index,
				Type:  EventUtilizationSpike,
				Time:  now,
				New:   fmt.Sprintf("%.2f", u),
				Meta:  map[string]string{"cause": "threshold"},
			})
		}

		errRate := rt.counters[IfInErrors].Rate() + rt.counters[IfOutErrors].Rate()
		if errRate > e.opts.ErrorRateThreshold && dedupeOpen(rt.lastErrorEvent, now) {
			rt.lastErrorEvent = now
			e.emitLocked(Event{
				Index: rt.def.Index,
				Type:  EventErrorThresholdExceeded,
				Time:  now,
				New:   fmt.Sprintf("%.1f", errRate),
				Meta:  map[string]string{"cause": "threshold", "errors_per_sec": fmt.Sprintf("%.1f", errRate)},
			})
		}
	}
}

// ============================================================================
// State Transitions
// ============================================================================

// flapLocked takes the link down and schedules the restore. It refuses to
// stack: an interface that is not cleanly up, or that already has a restore
// pending, is skipped with a debug log rather than flapped again.
func (e *Engine) flapLocked(rt *ifaceRuntime, down time.Duration, now time.Time, cause string) {
	if rt.admin != AdminUp || rt.oper != OperUp || rt.pendingRestore != nil {
		util.Debugf("scheduler: skipping %s flap for interface %d (admin=%s oper=%s pending=%t)",
			cause, rt.def.Index, rt.admin, rt.oper, rt.pendingRestore != nil)
		return
	}
	prior := rt.oper
	restoreAt := now.Add(down)
	e.setOperStatusLocked(rt, OperDown, now, map[string]string{
		"cause":         cause,
		"down_duration": down.String(),
	})
	rt.pendingRestore = &restorePoint{prior: prior, at: restoreAt}
	e.oneShots = append(e.oneShots, oneShotEvent{
		fireAt:  restoreAt,
		kind:    oneShotRestoreLink,
		index:   rt.def.Index,
		payload: restorePayload{prior: prior},
	})
}

// changeSpeedLocked swaps the speed and rescales rates to the new capacity.
// Same-speed changes are no-ops and emit nothing.
func (e *Engine) changeSpeedLocked(rt *ifaceRuntime, mbps uint64, now time.Time, cause string) {
	if mbps == rt.def.SpeedMbps {
		return
	}
	old := rt.def.SpeedMbps
	rt.def.SpeedMbps = mbps
	e.applyRatesLocked(rt, rt.util, now)
	e.emitLocked(Event{
		Index: rt.def.Index,
		Type:  EventSpeedChange,
		Time:  now,
		Old:   strconv.FormatUint(old, 10),
		New:   strconv.FormatUint(mbps, 10),
		Meta:  map[string]string{"cause": cause},
	})
}

// setAdminStatusLocked applies an admin transition and its oper side
// effects: down and testing force the link out of service, and returning to
// up restores the link only when the admin change was what took it down and
// no flap restore is in flight.
func (e *Engine) setAdminStatusLocked(rt *ifaceRuntime, st AdminStatus, now time.Time) {
	if rt.admin == st {
		return
	}
	old := rt.admin
	rt.admin = st
	e.emitLocked(Event{
		Index: rt.def.Index,
		Type:  EventAdminStatusChange,
		Time:  now,
		Old:   old.String(),
		New:   st.String(),
	})

	switch st {
	case AdminDown:
		wasUp := rt.oper == OperUp
		e.setOperStatusLocked(rt, OperDown, now, map[string]string{"cause": "admin"})
		if wasUp {
			rt.adminForced = true
		}
	case AdminTesting:
		wasUp := rt.oper == OperUp
		e.setOperStatusLocked(rt, OperTesting, now, map[string]string{"cause": "admin"})
		if wasUp {
			rt.adminForced = true
		}
	case AdminUp:
		restore := rt.adminForced && rt.pendingRestore == nil
		rt.adminForced = false
		if restore {
			e.setOperStatusLocked(rt, OperUp, now, map[string]string{"cause": "admin"})
		}
	}
}

// setOperStatusLocked is the single place oper status changes. It stamps
// lastChange, pauses counters whenever the link leaves up, resumes them on
// up, and emits LinkUp/LinkDown events only for transitions touching up.
func (e *Engine) setOperStatusLocked(rt *ifaceRuntime, st OperStatus, now time.Time, meta map[string]string) {
	if rt.oper == st {
		return
	}
	old := rt.oper
	rt.oper = st
	rt.lastChange = now

	switch {
	case st == OperUp:
		e.resumeCountersLocked(rt, now)
		e.emitLocked(Event{
			Index: rt.def.Index,
			Type:  EventLinkUp,
			Time:  now,
			Old:   old.String(),
			New:   st.String(),
			Meta:  meta,
		})
	case old == OperUp:
		e.pauseCountersLocked(rt, now)
		e.emitLocked(Event{
			Index: rt.def.Index,
			Type:  EventLinkDown,
			Time:  now,
			Old:   old.String(),
			New:   st.String(),
			Meta:  meta,
		})
	default:
		// down -> dormant and friends: no link edge, counters stay paused
		util.Debugf("sim: interface %d oper status %s -> %s", rt.def.Index, old, st)
	}
}
