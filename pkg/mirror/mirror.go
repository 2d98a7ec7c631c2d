// Package mirror publishes engine state into Redis the way network state
// databases expose it: one hash per interface under IFSIM_PORT|<name> and a
// pub/sub channel of scheduler events, so tooling that already reads a
// state DB can point at a simulated one.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/netsimkit/ifsim/pkg/sim"
	"github.com/netsimkit/ifsim/pkg/util"
)

const (
	stateTable   = "IFSIM_PORT"
	eventChannel = "ifsim:events"

	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Option adjusts a Mirror before it connects.
type Option func(*Mirror)

// WithDB selects a Redis logical database. Default 0.
func WithDB(db int) Option {
	return func(m *Mirror) { m.db = db }
}

// Mirror writes interface state and events to one Redis instance.
type Mirror struct {
	db     int
	client *redis.Client
}

// New builds a Mirror for the Redis at addr. Call Connect before use.
func New(addr string, opts ...Option) *Mirror {
	m := &Mirror{}
	for _, o := range opts {
		o(m)
	}
	m.client = redis.NewClient(&redis.Options{Addr: addr, DB: m.db})
	return m
}

// Connect verifies the connection with a PING.
func (m *Mirror) Connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	return nil
}

// Close releases the client.
func (m *Mirror) Close() error {
	return m.client.Close()
}

// eventRecord is the JSON wire form of one event.
type eventRecord struct {
	Index int               `json:"index"`
	Type  string            `json:"type"`
	Time  time.Time         `json:"time"`
	Old   string            `json:"old,omitempty"`
	New   string            `json:"new,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

func record(ev sim.Event) eventRecord {
	return eventRecord{
		Index: ev.Index,
		Type:  ev.Type.String(),
		Time:  ev.Time,
		Old:   ev.Old,
		New:   ev.New,
		Meta:  ev.Meta,
	}
}

// PublishEvent sends one event as JSON to the ifsim:events channel.
func (m *Mirror) PublishEvent(ctx context.Context, ev sim.Event) error {
	payload, err := json.Marshal(record(ev))
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := m.client.Publish(ctx, eventChannel, payload).Err(); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// stateFields flattens a snapshot into the hash fields tooling expects.
func stateFields(st *sim.InterfaceState) map[string]string {
	return map[string]string{
		"oper_status":  strings.ToLower(st.OperStatus.String()),
		"admin_status": strings.ToLower(st.AdminStatus.String()),
		"speed":        strconv.FormatUint(st.Attrs[sim.IfHighSpeed].Uint, 10),
		"mtu":          strconv.FormatUint(st.Attrs[sim.IfMtu].Uint, 10),
		"alias":        st.Attrs[sim.IfAlias].Str,
	}
}

// WriteState upserts one interface's hash under IFSIM_PORT|<name>.
func (m *Mirror) WriteState(ctx context.Context, st *sim.InterfaceState) error {
	key := fmt.Sprintf("%s|%s", stateTable, st.Name)
	fields := stateFields(st)
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	if err := m.client.HSet(ctx, key, args).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Attach republishes every engine event to Redis. The returned function
// unsubscribes. Publishes run on the engine's delivery goroutine; the
// publish timeout bounds how long a slow Redis can hold it up.
func (m *Mirror) Attach(e *sim.Engine) func() {
	log := util.WithComponent("mirror")
	id := e.Subscribe(func(ev sim.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := m.PublishEvent(ctx, ev); err != nil {
			log.Warnf("event publish failed: %v", err)
		}
	})
	return func() { e.Unsubscribe(id) }
}
