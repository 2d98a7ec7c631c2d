package sim

import (
	"fmt"
	"time"
)

// EventType classifies interface events.
type EventType int

const (
	EventLinkUp EventType = iota
	EventLinkDown
	EventSpeedChange
	EventAdminStatusChange
	EventErrorThresholdExceeded
	EventUtilizationSpike
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventLinkUp:
		return "LinkUp"
	case EventLinkDown:
		return "LinkDown"
	case EventSpeedChange:
		return "SpeedChange"
	case EventAdminStatusChange:
		return "AdminStatusChange"
	case EventErrorThresholdExceeded:
		return "ErrorThresholdExceeded"
	case EventUtilizationSpike:
		return "UtilizationSpike"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event records one interface state transition or threshold crossing.
type Event struct {
	Index int
	Type  EventType
	Time  time.Time
	Old   string
	New   string
	Meta  map[string]string
}

// EventFilter selects events from the history. Zero Index matches every
// interface; empty Types matches every type.
type EventFilter struct {
	Index int
	Types []EventType
}

func (f EventFilter) matches(e Event) bool {
	if f.Index != 0 && e.Index != f.Index {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// eventRing is a fixed-capacity ring buffer of events. Once full, each
// append overwrites the oldest entry. Iteration yields insertion order,
// which is ascending event time since the single scheduler appends with a
// monotone clock.
type eventRing struct {
	buf  []Event
	head int // next write position
	size int
}

func newEventRing(capacity int) *eventRing {
	if capacity <= 0 {
		capacity = 1000
	}
	return &eventRing{buf: make([]Event, capacity)}
}

func (r *eventRing) append(e Event) {
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// collect returns the filtered events in insertion order, keeping only the
// last limit matches. limit <= 0 means no limit beyond capacity.
func (r *eventRing) collect(f EventFilter, limit int) []Event {
	var out []Event
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		e := r.buf[(start+i)%len(r.buf)]
		if f.matches(e) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
