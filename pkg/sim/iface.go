package sim

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/netsimkit/ifsim/pkg/pattern"
	"github.com/netsimkit/ifsim/pkg/util"
)

// AdminStatus is the administrative status of an interface (ifAdminStatus).
type AdminStatus int

const (
	AdminUp      AdminStatus = 1
	AdminDown    AdminStatus = 2
	AdminTesting AdminStatus = 3
)

// String returns the conventional status name.
func (s AdminStatus) String() string {
	switch s {
	case AdminUp:
		return "Up"
	case AdminDown:
		return "Down"
	case AdminTesting:
		return "Testing"
	}
	return fmt.Sprintf("AdminStatus(%d)", int(s))
}

// ParseAdminStatus resolves a lowercase status name like "down".
func ParseAdminStatus(s string) (AdminStatus, bool) {
	switch s {
	case "up":
		return AdminUp, true
	case "down":
		return AdminDown, true
	case "testing":
		return AdminTesting, true
	}
	return 0, false
}

// OperStatus is the operational status of an interface (ifOperStatus). The
// scheduler only drives Up/Down automation; the remaining states exist for
// external control via SetOperStatus.
type OperStatus int

const (
	OperUp             OperStatus = 1
	OperDown           OperStatus = 2
	OperTesting        OperStatus = 3
	OperUnknown        OperStatus = 4
	OperDormant        OperStatus = 5
	OperNotPresent     OperStatus = 6
	OperLowerLayerDown OperStatus = 7
)

// String returns the conventional status name.
func (s OperStatus) String() string {
	switch s {
	case OperUp:
		return "Up"
	case OperDown:
		return "Down"
	case OperTesting:
		return "Testing"
	case OperUnknown:
		return "Unknown"
	case OperDormant:
		return "Dormant"
	case OperNotPresent:
		return "NotPresent"
	case OperLowerLayerDown:
		return "LowerLayerDown"
	}
	return fmt.Sprintf("OperStatus(%d)", int(s))
}

// TrafficRatios splits packet traffic into delivery classes. The three
// shares must sum to 1.0 within a small tolerance.
type TrafficRatios struct {
	Unicast   float64
	Multicast float64
	Broadcast float64
}

// FlapSchedule makes the scheduler flap a link periodically.
type FlapSchedule struct {
	Enabled      bool
	Interval     time.Duration // time between flap starts
	DownDuration time.Duration
}

// SpeedSchedule cycles an interface through a speed sequence periodically.
type SpeedSchedule struct {
	Enabled    bool
	Interval   time.Duration
	SpeedsMbps []uint64
}

// InterfaceDefinition is the registration-time description of one simulated
// interface. Zero-valued optional fields take the documented defaults.
type InterfaceDefinition struct {
	Index int    // unique, positive
	Name  string // unique, e.g. "Ethernet0"
	Alias string
	Descr string // defaults to Name

	Type        int    // IANAifType, defaults to 6 (ethernetCsmacd)
	SpeedMbps   uint64 // required
	MTU         int    // defaults to 1500
	PhysAddress string // "aa:bb:cc:dd:ee:ff"; derived from Index when empty

	AdminStatus AdminStatus // defaults to AdminUp

	Pattern         string  // traffic pattern name, defaults to "constant_medium"
	BaseUtilization float64 // seeds rates at registration, defaults to 0.3
	InSplit         float64 // share of traffic inbound, defaults to 0.6
	Ratios          TrafficRatios
	ErrorRate       float64 // errors per packet, defaults to 0.0001
	DiscardRate     float64 // discards per packet, defaults to 0.00005
	AvgPacketBytes  int     // converts byte rates to packet rates, defaults to 512
	Acceleration    float64 // time multiplier for this interface's counters, defaults to 1

	// InitialCounters seeds counter values by attribute key, e.g.
	// {"ifHCInOctets": 1 << 40}. A seeded stream's width partner inherits
	// the value reduced into its own domain unless seeded explicitly.
	InitialCounters map[string]uint64

	Flap       FlapSchedule
	SpeedCycle SpeedSchedule
}

// ratioTolerance bounds how far Unicast+Multicast+Broadcast may drift from 1.
const ratioTolerance = 0.01

// applyDefaults fills zero-valued optional fields in place.
func (d *InterfaceDefinition) applyDefaults() {
	if d.Descr == "" {
		d.Descr = d.Name
	}
	if d.Type == 0 {
		d.Type = 6
	}
	if d.MTU == 0 {
		d.MTU = 1500
	}
	if d.AdminStatus == 0 {
		d.AdminStatus = AdminUp
	}
	if d.Pattern == "" {
		d.Pattern = "constant_medium"
	}
	if d.BaseUtilization == 0 {
		d.BaseUtilization = 0.3
	}
	if d.InSplit == 0 {
		d.InSplit = 0.6
	}
	if d.Ratios == (TrafficRatios{}) {
		d.Ratios = TrafficRatios{Unicast: 0.90, Multicast: 0.07, Broadcast: 0.03}
	}
	if d.ErrorRate == 0 {
		d.ErrorRate = 0.0001
	}
	if d.DiscardRate == 0 {
		d.DiscardRate = 0.00005
	}
	if d.AvgPacketBytes == 0 {
		d.AvgPacketBytes = 512
	}
	if d.Acceleration == 0 {
		d.Acceleration = 1
	}
	if d.PhysAddress == "" {
		d.PhysAddress = derivePhysAddress(d.Index)
	}
}

// validate rejects definitions the engine cannot simulate. Errors wrap
// ErrInvalidConfig and surface synchronously to the registering caller.
func (d *InterfaceDefinition) validate(patterns *pattern.Engine) error {
	b := &util.ValidationBuilder{}

	b.Add(d.Index > 0, "index must be positive")
	b.Add(d.Name != "", "name is required")
	b.Add(d.SpeedMbps > 0, "speed_mbps must be positive")
	b.Add(d.MTU > 0, "mtu must be positive")
	b.Add(d.Type > 0, "type must be positive")
	b.Add(d.AdminStatus >= AdminUp && d.AdminStatus <= AdminTesting, "admin_status must be up, down, or testing")
	b.Add(d.BaseUtilization >= 0 && d.BaseUtilization <= 1, "base_utilization must be in [0,1]")
	b.Add(d.InSplit >= 0 && d.InSplit <= 1, "in_split must be in [0,1]")
	b.Add(d.ErrorRate >= 0, "error_rate must not be negative")
	b.Add(d.DiscardRate >= 0, "discard_rate must not be negative")
	b.Add(d.AvgPacketBytes > 0, "avg_packet_bytes must be positive")
	b.Add(d.Acceleration > 0, "acceleration must be positive")

	sum := d.Ratios.Unicast + d.Ratios.Multicast + d.Ratios.Broadcast
	b.Add(d.Ratios.Unicast >= 0 && d.Ratios.Multicast >= 0 && d.Ratios.Broadcast >= 0,
		"traffic ratios must not be negative")
	b.Add(math.Abs(sum-1.0) <= ratioTolerance,
		fmt.Sprintf("traffic ratios must sum to 1.0 (got %.3f)", sum))

	if patterns != nil {
		b.Add(patterns.Has(d.Pattern), fmt.Sprintf("unknown traffic pattern %q", d.Pattern))
	}

	if d.PhysAddress != "" {
		if _, err := parsePhysAddress(d.PhysAddress); err != nil {
			b.AddErrorf("phys_address: %v", err)
		}
	}

	for key := range d.InitialCounters {
		attr, ok := ParseAttribute(key)
		if !ok {
			b.AddErrorf("initial_counters: unknown attribute %q", key)
			continue
		}
		b.Add(attr.IsCounter(), fmt.Sprintf("initial_counters: %s is not a counter", key))
	}

	if d.Flap.Enabled {
		b.Add(d.Flap.DownDuration > 0, "flap.down_duration must be positive")
		b.Add(d.Flap.Interval > d.Flap.DownDuration, "flap.interval must exceed flap.down_duration")
	}
	if d.SpeedCycle.Enabled {
		b.Add(d.SpeedCycle.Interval > 0, "speed_cycle.interval must be positive")
		b.Add(len(d.SpeedCycle.SpeedsMbps) >= 2, "speed_cycle needs at least two speeds")
		for _, s := range d.SpeedCycle.SpeedsMbps {
			b.Add(s > 0, "speed_cycle speeds must be positive")
		}
	}

	return b.Build()
}

// capacityBytesPerSec converts the configured speed to bytes per second.
func (d *InterfaceDefinition) capacityBytesPerSec() float64 {
	return float64(d.SpeedMbps) * 1_000_000 / 8
}

// derivePhysAddress builds a deterministic locally-administered unicast MAC
// from the interface index: 02:49:46:00:hh:ll with the index's low 16 bits.
func derivePhysAddress(index int) string {
	return fmt.Sprintf("02:49:46:00:%02x:%02x", (index>>8)&0xff, index&0xff)
}

// parsePhysAddress converts colon-separated hex to the raw 6 bytes served
// as ifPhysAddress.
func parsePhysAddress(s string) (string, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return "", fmt.Errorf("want 6 colon-separated octets, got %d", len(parts))
	}
	raw := make([]byte, 6)
	for i, p := range parts {
		var b byte
		if _, err := fmt.Sscanf(p, "%02x", &b); err != nil || len(p) != 2 {
			return "", fmt.Errorf("bad octet %q", p)
		}
		raw[i] = b
	}
	return string(raw), nil
}

// ============================================================================
// Interface Handle
// ============================================================================

// Interface is the handle returned by RegisterInterface. It carries a
// parent reference to the engine so control-plane callers can operate on
// the interface without holding the index around:
//
//	intf, _ := engine.RegisterInterface(def)
//	intf.Flap(30 * time.Second)
//	state, _ := intf.State()
type Interface struct {
	engine *Engine
	index  int
	name   string
}

// Engine returns the parent engine.
func (i *Interface) Engine() *Engine {
	return i.engine
}

// Index returns the interface index.
func (i *Interface) Index() int {
	return i.index
}

// Name returns the interface name.
func (i *Interface) Name() string {
	return i.name
}

// State returns a point-in-time snapshot of every served attribute.
func (i *Interface) State() (*InterfaceState, error) {
	return i.engine.InterfaceState(i.index)
}

// Flap takes the link down for the given duration.
func (i *Interface) Flap(down time.Duration) error {
	return i.engine.TriggerLinkFlap(i.index, down)
}

// SetSpeed changes the interface speed.
func (i *Interface) SetSpeed(mbps uint64) error {
	return i.engine.ChangeSpeed(i.index, mbps)
}

// SetAdminStatus changes the administrative status.
func (i *Interface) SetAdminStatus(st AdminStatus) error {
	return i.engine.SetAdminStatus(i.index, st)
}

// Pause freezes the interface's counters.
func (i *Interface) Pause() error {
	return i.engine.Pause(i.index)
}

// Resume recomputes counter rates from current utilization.
func (i *Interface) Resume() error {
	return i.engine.Resume(i.index)
}
