package sim

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/netsimkit/ifsim/pkg/counter"
	"github.com/netsimkit/ifsim/pkg/util"
)

// InterfaceState is a point-in-time snapshot of one interface: every served
// attribute evaluated at the same instant, plus the fields tools ask about
// most. Snapshots are what the table writer and the mirror publish.
type InterfaceState struct {
	Index       int
	Name        string
	Taken       time.Time
	AdminStatus AdminStatus
	OperStatus  OperStatus
	Attrs       map[Attribute]Value
}

// GetValue resolves an attribute by its string key ("ifInOctets",
// "ifHCInOctets", ...). The second return is false for unknown keys and
// unknown indices.
func (e *Engine) GetValue(index int, key string) (Value, bool) {
	attr, ok := ParseAttribute(key)
	if !ok {
		return Value{}, false
	}
	return e.AttributeValue(index, attr)
}

// AttributeValue computes one attribute at the current clock instant.
// Counter reads on an active interface refresh rates first when the last
// refresh is older than a tick, so values served between scheduler passes
// still track the pattern. The common path stays on the read lock.
func (e *Engine) AttributeValue(index int, attr Attribute) (Value, bool) {
	if attr < 0 || attr >= attributeCount {
		return Value{}, false
	}
	now := e.clk.Now()

	e.mu.RLock()
	rt, ok := e.ifaces[index]
	if !ok {
		e.mu.RUnlock()
		return Value{}, false
	}
	if !(attr.IsCounter() && e.staleLocked(rt, now)) {
		v := e.valueLocked(rt, attr, now)
		e.mu.RUnlock()
		return v, true
	}
	e.mu.RUnlock()

	e.mu.Lock()
	rt, ok = e.ifaces[index]
	if !ok {
		e.mu.Unlock()
		return Value{}, false
	}
	if e.staleLocked(rt, now) {
		e.refreshRatesLocked(rt, now)
	}
	v := e.valueLocked(rt, attr, now)
	e.mu.Unlock()
	return v, true
}

// InterfaceState snapshots every attribute of one interface at a single
// instant. Rates are refreshed first under the same lock, so the counters
// in the snapshot agree with the pattern at the moment it was taken.
func (e *Engine) InterfaceState(index int) (*InterfaceState, error) {
	now := e.clk.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.ifaces[index]
	if !ok {
		return nil, util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	if e.staleLocked(rt, now) {
		e.refreshRatesLocked(rt, now)
	}

	st := &InterfaceState{
		Index:       rt.def.Index,
		Name:        rt.def.Name,
		Taken:       now,
		AdminStatus: rt.admin,
		OperStatus:  rt.oper,
		Attrs:       make(map[Attribute]Value, attributeCount),
	}
	for _, attr := range Attributes() {
		st.Attrs[attr] = e.valueLocked(rt, attr, now)
	}
	return st, nil
}

// CounterInfo reports wrap diagnostics for one counter attribute: current
// value, how many times it has wrapped since the epoch, and how long until
// the next wrap at the current rate.
func (e *Engine) CounterInfo(index int, attr Attribute) (counter.Info, error) {
	if attr < 0 || attr >= attributeCount || !attr.IsCounter() {
		return counter.Info{}, fmt.Errorf("attribute %q is not a counter: %w", attr, util.ErrNotSupported)
	}
	now := e.clk.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()
	rt, ok := e.ifaces[index]
	if !ok {
		return counter.Info{}, util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	return rt.counters[attr].Info(now), nil
}

// staleLocked reports whether a counter read should refresh rates first:
// only live interfaces go stale, and only after a full tick without one.
func (e *Engine) staleLocked(rt *ifaceRuntime, now time.Time) bool {
	return rt.oper == OperUp && !rt.paused && now.Sub(rt.lastRefresh) >= e.opts.TickInterval
}

// valueLocked evaluates one attribute. Counter attributes read their
// counter at now; everything else is served from runtime state.
func (e *Engine) valueLocked(rt *ifaceRuntime, attr Attribute, now time.Time) Value {
	if attr.IsCounter() {
		v := rt.counters[attr].Value(now)
		if attr.Type() == TypeCounter64 {
			return Counter64Value(v)
		}
		return Counter32Value(v)
	}

	def := &rt.def
	switch attr {
	case IfIndex:
		return IntegerValue(def.Index)
	case IfDescr:
		return StringValue(def.Descr)
	case IfType:
		return IntegerValue(def.Type)
	case IfMtu:
		return IntegerValue(def.MTU)
	case IfSpeed:
		// bits/sec, pegged at the 32-bit ceiling for fast links
		return Gauge32Value(capGauge32(def.SpeedMbps * 1_000_000))
	case IfPhysAddress:
		return Value{Type: TypeOctetString, Str: rt.physAddr}
	case IfAdminStatus:
		return IntegerValue(int(rt.admin))
	case IfOperStatus:
		return IntegerValue(int(rt.oper))
	case IfLastChange:
		return TimeTicksValue(e.ticksSince(rt.lastChange))
	case IfName:
		return StringValue(def.Name)
	case IfLinkUpDownTrapEnable:
		return IntegerValue(1) // enabled
	case IfHighSpeed:
		return Gauge32Value(capGauge32(def.SpeedMbps))
	case IfPromiscuousMode:
		return IntegerValue(2) // false
	case IfConnectorPresent:
		return IntegerValue(1) // true
	case IfAlias:
		return StringValue(def.Alias)
	}
	return Value{}
}

// ticksSince converts an instant to TimeTicks (hundredths of a second)
// elapsed from the engine epoch.
func (e *Engine) ticksSince(t time.Time) uint64 {
	if t.Before(e.epoch) {
		return 0
	}
	return uint64(t.Sub(e.epoch) / (10 * time.Millisecond))
}

func capGauge32(v uint64) uint64 {
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return v
}
