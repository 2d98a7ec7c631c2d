// Package sim is the interface-behavior simulation engine: a registry of
// simulated network interfaces with time-driven wrapping counters, a traffic
// pattern model, and a single background scheduler that drives link flaps,
// speed changes, and threshold events. All value reads are recomputed at
// request time from shared state guarded by one RWMutex; only the scheduler
// and the narrow control-plane API mutate.
package sim

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/WatchBeam/clock"

	"github.com/netsimkit/ifsim/internal/metrics"
	"github.com/netsimkit/ifsim/pkg/pattern"
	"github.com/netsimkit/ifsim/pkg/util"
)

const (
	stopTimeout          = 5 * time.Second
	spikeDedupeWindow    = 300 * time.Second
	utilizationThreshold = 0.9
)

// Engine owns every simulated interface and the scheduler that animates
// them. Create with New, populate with RegisterInterface, animate with
// Start. All methods are safe for concurrent use.
type Engine struct {
	opts     Options
	clk      clock.Clock
	rand     pattern.Source
	patterns *pattern.Engine
	epoch    time.Time

	mu        sync.RWMutex
	ifaces    map[int]*ifaceRuntime
	order     []int // registered indices, ascending
	oneShots  []oneShotEvent
	ring      *eventRing
	pending   []Event // emitted under lock, delivered after unlock
	subs      map[int]func(Event)
	nextSubID int

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an engine. The engine-wide epoch is the clock's current
// instant; it anchors every counter and never resets while the process runs.
func New(opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		opts:     opts,
		clk:      opts.Clock,
		rand:     opts.Rand,
		patterns: pattern.NewEngine(opts.Rand, opts.Location),
		epoch:    opts.Clock.Now(),
		ifaces:   make(map[int]*ifaceRuntime),
		ring:     newEventRing(opts.HistorySize),
		subs:     make(map[int]func(Event)),
	}
	return e
}

// Patterns returns the engine's pattern table, for defining custom traffic
// patterns before registering interfaces that reference them.
func (e *Engine) Patterns() *pattern.Engine {
	return e.patterns
}

// Epoch returns the engine-wide epoch counters measure elapsed time from.
func (e *Engine) Epoch() time.Time {
	return e.epoch
}

// Uptime returns how long the engine has existed, in simulated time.
func (e *Engine) Uptime() time.Duration {
	return e.clk.Now().Sub(e.epoch)
}

// ============================================================================
// Scheduler Lifecycle
// ============================================================================

// Start launches the background scheduler loop. Starting a running engine
// is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	e.mu.Unlock()

	go e.run(ctx)
	util.Infof("sim: scheduler started (tick %s)", e.opts.TickInterval)
}

// Stop signals the scheduler to exit after its current tick and waits for
// it, bounded. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
		util.Infof("sim: scheduler stopped")
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("sim: scheduler did not stop within %s", stopTimeout)
	}
}

// Running reports whether the scheduler loop is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// ============================================================================
// Control Plane
// ============================================================================

// TriggerLinkFlap takes the interface down for the given duration and
// schedules the one-shot restore. Flapping an interface that is already
// down (or has a restore pending) is a logged no-op, which is what keeps
// restores from stacking up.
func (e *Engine) TriggerLinkFlap(index int, down time.Duration) error {
	if down <= 0 {
		return fmt.Errorf("flap duration must be positive: %w", util.ErrInvalidConfig)
	}
	now := e.clk.Now()

	e.mu.Lock()
	rt, ok := e.ifaces[index]
	if !ok {
		e.mu.Unlock()
		return util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	e.flapLocked(rt, down, now, "manual")
	evs, subs := e.takePendingLocked()
	e.mu.Unlock()

	e.deliver(evs, subs)
	return nil
}

// ChangeSpeed sets a new interface speed and rescales counter rates to the
// new capacity. Setting the current speed is a no-op.
func (e *Engine) ChangeSpeed(index int, mbps uint64) error {
	if mbps == 0 {
		return fmt.Errorf("speed must be positive: %w", util.ErrInvalidConfig)
	}
	now := e.clk.Now()

	e.mu.Lock()
	rt, ok := e.ifaces[index]
	if !ok {
		e.mu.Unlock()
		return util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	e.changeSpeedLocked(rt, mbps, now, "manual")
	evs, subs := e.takePendingLocked()
	e.mu.Unlock()

	e.deliver(evs, subs)
	return nil
}

// SetAdminStatus changes the administrative status. Taking admin down
// forces the operational status down and pauses counters; restoring admin
// up brings the link back only when nothing else is holding it down.
func (e *Engine) SetAdminStatus(index int, st AdminStatus) error {
	if st < AdminUp || st > AdminTesting {
		return fmt.Errorf("admin status %d out of range: %w", int(st), util.ErrInvalidConfig)
	}
	now := e.clk.Now()

	e.mu.Lock()
	rt, ok := e.ifaces[index]
	if !ok {
		e.mu.Unlock()
		return util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	e.setAdminStatusLocked(rt, st, now)
	evs, subs := e.takePendingLocked()
	e.mu.Unlock()

	e.deliver(evs, subs)
	return nil
}

// SetOperStatus sets an operational status directly, for the states the
// scheduler does not automate (Testing, Dormant, NotPresent, ...). Setting
// Up while admin status is not up is rejected.
func (e *Engine) SetOperStatus(index int, st OperStatus) error {
	if st < OperUp || st > OperLowerLayerDown {
		return fmt.Errorf("oper status %d out of range: %w", int(st), util.ErrInvalidConfig)
	}
	now := e.clk.Now()

	e.mu.Lock()
	rt, ok := e.ifaces[index]
	if !ok {
		e.mu.Unlock()
		return util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	if st == OperUp && rt.admin != AdminUp {
		e.mu.Unlock()
		return fmt.Errorf("cannot set oper up while admin status is %s: %w", rt.admin, util.ErrInvalidConfig)
	}
	e.setOperStatusLocked(rt, st, now, nil)
	rt.adminForced = false // external control owns the status now
	evs, subs := e.takePendingLocked()
	e.mu.Unlock()

	e.deliver(evs, subs)
	return nil
}

// Pause freezes all of the interface's counters without touching status.
func (e *Engine) Pause(index int) error {
	now := e.clk.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.ifaces[index]
	if !ok {
		return util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	e.pauseCountersLocked(rt, now)
	return nil
}

// Resume recomputes counter rates from current utilization. Resuming an
// interface whose link is down is a no-op; the restore path resumes it.
func (e *Engine) Resume(index int) error {
	now := e.clk.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.ifaces[index]
	if !ok {
		return util.NewNotFoundError("interface", strconv.Itoa(index))
	}
	if rt.oper != OperUp {
		util.Debugf("sim: not resuming interface %d counters while oper status is %s", index, rt.oper)
		return nil
	}
	e.resumeCountersLocked(rt, now)
	return nil
}

// ============================================================================
// Events
// ============================================================================

// Subscribe registers a callback invoked for every emitted event, after the
// engine lock is released. The returned id cancels via Unsubscribe. A
// panicking callback is recovered and logged.
func (e *Engine) Subscribe(fn func(Event)) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSubID++
	id := e.nextSubID
	e.subs[id] = fn
	return id
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subs, id)
}

// EventHistory returns events from the bounded history ring, oldest first,
// keeping only the last limit matches. limit <= 0 means everything retained.
func (e *Engine) EventHistory(f EventFilter, limit int) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ring.collect(f, limit)
}

// emitLocked records an event in the history ring and queues it for
// subscriber delivery once the lock is released. Callers hold the write lock.
func (e *Engine) emitLocked(ev Event) {
	e.ring.append(ev)
	e.pending = append(e.pending, ev)
	metrics.EventsEmitted.WithLabelValues(ev.Type.String()).Inc()
	util.Debugf("sim: event %s interface=%d %s -> %s", ev.Type, ev.Index, ev.Old, ev.New)
}

// takePendingLocked drains queued events and snapshots subscribers for
// delivery outside the lock.
func (e *Engine) takePendingLocked() ([]Event, []func(Event)) {
	if len(e.pending) == 0 {
		return nil, nil
	}
	evs := e.pending
	e.pending = nil
	subs := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	return evs, subs
}

func (e *Engine) deliver(evs []Event, subs []func(Event)) {
	for _, ev := range evs {
		for _, fn := range subs {
			e.safeNotify(fn, ev)
		}
	}
}

func (e *Engine) safeNotify(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			util.Errorf("sim: event subscriber panicked on %s for interface %d: %v", ev.Type, ev.Index, r)
		}
	}()
	fn(ev)
}

// ============================================================================
// Registry Views
// ============================================================================

// Interfaces returns the registered indices in ascending order.
func (e *Engine) Interfaces() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]int, len(e.order))
	copy(out, e.order)
	return out
}

// insertOrderLocked keeps e.order sorted as indices register.
func (e *Engine) insertOrderLocked(index int) {
	pos := sort.SearchInts(e.order, index)
	e.order = append(e.order, 0)
	copy(e.order[pos+1:], e.order[pos:])
	e.order[pos] = index
}
