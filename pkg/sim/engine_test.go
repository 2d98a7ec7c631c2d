package sim

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netsimkit/ifsim/internal/testutil"
	"github.com/netsimkit/ifsim/pkg/util"
)

// newTestEngine builds an engine on a mock clock with jitter-neutral
// randomness, so pattern utilization is exact and time only moves when the
// test says so.
func newTestEngine(t *testing.T, opts Options) (*Engine, *clock.MockClock) {
	t.Helper()
	mc := clock.NewMockClock()
	opts.Clock = mc
	if opts.Rand == nil {
		opts.Rand = &testutil.FixedSource{R: 0.5}
	}
	return New(opts), mc
}

// gigDef is the workhorse fixture: 1 Gbps at a dead-steady 0.5 utilization.
// With the 0.6 in-split that derives exactly 37.5 MB/s inbound and 25 MB/s
// outbound.
func gigDef(index int, name string) InterfaceDefinition {
	return InterfaceDefinition{
		Index:           index,
		Name:            name,
		SpeedMbps:       1000,
		Pattern:         "constant_medium",
		BaseUtilization: 0.5,
	}
}

func attrValue(t *testing.T, e *Engine, index int, attr Attribute) Value {
	t.Helper()
	v, ok := e.AttributeValue(index, attr)
	require.True(t, ok, "attribute %s on interface %d", attr, index)
	return v
}

func attrUint(t *testing.T, e *Engine, index int, attr Attribute) uint64 {
	t.Helper()
	return attrValue(t, e, index, attr).Uint
}

func TestRegisterInterfaceDefaults(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	intf, err := e.RegisterInterface(InterfaceDefinition{Index: 1, Name: "eth0", SpeedMbps: 1000})
	require.NoError(t, err)
	require.Equal(t, 1, intf.Index())
	require.Equal(t, "eth0", intf.Name())

	st, err := intf.State()
	require.NoError(t, err)
	require.Len(t, st.Attrs, int(attributeCount))

	assert.Equal(t, IntegerValue(1), st.Attrs[IfIndex])
	assert.Equal(t, StringValue("eth0"), st.Attrs[IfDescr])
	assert.Equal(t, StringValue("eth0"), st.Attrs[IfName])
	assert.Equal(t, StringValue(""), st.Attrs[IfAlias])
	assert.Equal(t, IntegerValue(6), st.Attrs[IfType])
	assert.Equal(t, IntegerValue(1500), st.Attrs[IfMtu])
	assert.Equal(t, Gauge32Value(1_000_000_000), st.Attrs[IfSpeed])
	assert.Equal(t, Gauge32Value(1000), st.Attrs[IfHighSpeed])
	assert.Equal(t, IntegerValue(1), st.Attrs[IfAdminStatus])
	assert.Equal(t, IntegerValue(1), st.Attrs[IfOperStatus])
	assert.Equal(t, TimeTicksValue(0), st.Attrs[IfLastChange])
	assert.Equal(t, IntegerValue(1), st.Attrs[IfLinkUpDownTrapEnable])
	assert.Equal(t, IntegerValue(2), st.Attrs[IfPromiscuousMode])
	assert.Equal(t, IntegerValue(1), st.Attrs[IfConnectorPresent])
	assert.Equal(t, StringValue("\x02\x49\x46\x00\x00\x01"), st.Attrs[IfPhysAddress])
}

func TestRegisterInterfaceSpeedCaps(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	_, err := e.RegisterInterface(InterfaceDefinition{Index: 1, Name: "hundredgig", SpeedMbps: 100000})
	require.NoError(t, err)

	// ifSpeed pegs at the 32-bit ceiling; ifHighSpeed carries the truth
	assert.Equal(t, uint64(math.MaxUint32), attrUint(t, e, 1, IfSpeed))
	assert.Equal(t, uint64(100000), attrUint(t, e, 1, IfHighSpeed))
}

func TestRegisterInterfaceValidation(t *testing.T) {
	tests := []struct {
		name string
		def  InterfaceDefinition
	}{
		{"zero index", InterfaceDefinition{Name: "x", SpeedMbps: 10}},
		{"negative index", InterfaceDefinition{Index: -3, Name: "x", SpeedMbps: 10}},
		{"missing name", InterfaceDefinition{Index: 1, SpeedMbps: 10}},
		{"zero speed", InterfaceDefinition{Index: 1, Name: "x"}},
		{"in split out of range", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10, InSplit: 1.5}},
		{"base utilization out of range", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10, BaseUtilization: 2}},
		{"ratios do not sum", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10,
			Ratios: TrafficRatios{Unicast: 0.5, Multicast: 0.1, Broadcast: 0.1}}},
		{"negative ratio", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10,
			Ratios: TrafficRatios{Unicast: 1.2, Multicast: -0.1, Broadcast: -0.1}}},
		{"unknown pattern", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10, Pattern: "nope"}},
		{"bad phys address", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10, PhysAddress: "zz:00:00:00:00:00"}},
		{"short phys address", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10, PhysAddress: "02:00:00"}},
		{"admin status out of range", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10, AdminStatus: 9}},
		{"initial counter on non-counter", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10,
			InitialCounters: map[string]uint64{"ifDescr": 5}}},
		{"initial counter unknown key", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10,
			InitialCounters: map[string]uint64{"ifBogus": 5}}},
		{"flap interval too short", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10,
			Flap: FlapSchedule{Enabled: true, Interval: 5 * time.Second, DownDuration: 10 * time.Second}}},
		{"speed cycle too short", InterfaceDefinition{Index: 1, Name: "x", SpeedMbps: 10,
			SpeedCycle: SpeedSchedule{Enabled: true, Interval: time.Minute, SpeedsMbps: []uint64{100}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, Options{})
			_, err := e.RegisterInterface(tt.def)
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrInvalidConfig)
		})
	}
}

func TestRegisterInterfaceCollisions(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	_, err := e.RegisterInterface(gigDef(1, "eth0"))
	require.NoError(t, err)

	_, err = e.RegisterInterface(gigDef(1, "eth1"))
	assert.ErrorIs(t, err, util.ErrAlreadyExists)

	_, err = e.RegisterInterface(gigDef(2, "eth0"))
	assert.ErrorIs(t, err, util.ErrAlreadyExists)

	// failed registrations must not leak into the registry
	assert.Equal(t, []int{1}, e.Interfaces())
}

func TestInterfacesSorted(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	for _, idx := range []int{7, 2, 9, 4} {
		_, err := e.RegisterInterface(gigDef(idx, fmt.Sprintf("eth%d", idx)))
		require.NoError(t, err)
	}
	assert.Equal(t, []int{2, 4, 7, 9}, e.Interfaces())

	intf, err := e.Lookup(7)
	require.NoError(t, err)
	assert.Equal(t, "eth7", intf.Name())

	_, err = e.Lookup(5)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

// TestSteadyCounters pins down the arithmetic end to end: 1 Gbps at fixed
// 0.5 utilization and 0.6 in-split is exactly 37.5 MB/s inbound, so the
// octet counters are pure functions of elapsed time with no drift across
// repeated reads or rate refreshes.
func TestSteadyCounters(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	_, err := e.RegisterInterface(gigDef(1, "eth0"))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), attrUint(t, e, 1, IfInOctets))
	assert.Equal(t, uint64(0), attrUint(t, e, 1, IfHCInOctets))

	mc.AddTime(10 * time.Second)
	assert.Equal(t, uint64(375_000_000), attrUint(t, e, 1, IfInOctets))
	assert.Equal(t, uint64(375_000_000), attrUint(t, e, 1, IfHCInOctets))
	assert.Equal(t, uint64(250_000_000), attrUint(t, e, 1, IfOutOctets))
	// 37.5 MB/s / 512 B/pkt * 0.90 unicast = 65917.96875 pkt/s
	assert.Equal(t, uint64(659_179), attrUint(t, e, 1, IfInUcastPkts))

	// reads are idempotent: same instant, same value
	assert.Equal(t, uint64(375_000_000), attrUint(t, e, 1, IfInOctets))

	mc.AddTime(90 * time.Second) // t=100s
	assert.Equal(t, uint64(3_750_000_000), attrUint(t, e, 1, IfInOctets))
	assert.Equal(t, uint64(3_750_000_000), attrUint(t, e, 1, IfHCInOctets))

	// t=120s: 4.5e9 crosses the 32-bit ceiling; the pair diverges
	mc.AddTime(20 * time.Second)
	assert.Equal(t, uint64(4_500_000_000-(1<<32)), attrUint(t, e, 1, IfInOctets))
	assert.Equal(t, uint64(4_500_000_000), attrUint(t, e, 1, IfHCInOctets))

	info, err := e.CounterInfo(1, IfInOctets)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.WrapCount)
	assert.True(t, info.Wraps)
	assert.InDelta(t, float64((1<<32)-(4_500_000_000-(1<<32)))/37_500_000.0, info.SecondsToWrap, 0.01)

	hc, err := e.CounterInfo(1, IfHCInOctets)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), hc.WrapCount)
}

func TestInitialCounterSeeds(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	def := gigDef(1, "eth0")
	def.InitialCounters = map[string]uint64{
		"ifInOctets":    1000,
		"ifHCOutOctets": 1 << 33,
		"ifInErrors":    7,
	}
	_, err := e.RegisterInterface(def)
	require.NoError(t, err)

	// a seeded stream's partner inherits the seed, reduced to its width
	assert.Equal(t, uint64(1000), attrUint(t, e, 1, IfInOctets))
	assert.Equal(t, uint64(1000), attrUint(t, e, 1, IfHCInOctets))
	assert.Equal(t, uint64(0), attrUint(t, e, 1, IfOutOctets)) // 2^33 mod 2^32
	assert.Equal(t, uint64(1<<33), attrUint(t, e, 1, IfHCOutOctets))
	assert.Equal(t, uint64(7), attrUint(t, e, 1, IfInErrors))

	mc.AddTime(10 * time.Second)
	assert.Equal(t, uint64(375_001_000), attrUint(t, e, 1, IfInOctets))
	assert.Equal(t, uint64(375_001_000), attrUint(t, e, 1, IfHCInOctets))
}

func TestGetValueByKey(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	_, err := e.RegisterInterface(gigDef(3, "eth0"))
	require.NoError(t, err)
	mc.AddTime(2 * time.Second)

	v, ok := e.GetValue(3, "ifHCInOctets")
	require.True(t, ok)
	assert.Equal(t, Counter64Value(75_000_000), v)

	v, ok = e.GetValue(3, "ifOperStatus")
	require.True(t, ok)
	assert.Equal(t, IntegerValue(1), v)

	_, ok = e.GetValue(3, "ifBogus")
	assert.False(t, ok)
	_, ok = e.GetValue(9, "ifInOctets")
	assert.False(t, ok)
}

func TestLookupErrors(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	_, err := e.RegisterInterface(gigDef(1, "eth0"))
	require.NoError(t, err)

	assert.ErrorIs(t, e.TriggerLinkFlap(2, time.Second), util.ErrNotFound)
	assert.ErrorIs(t, e.ChangeSpeed(2, 100), util.ErrNotFound)
	assert.ErrorIs(t, e.SetAdminStatus(2, AdminDown), util.ErrNotFound)
	assert.ErrorIs(t, e.SetOperStatus(2, OperDormant), util.ErrNotFound)
	assert.ErrorIs(t, e.Pause(2), util.ErrNotFound)
	assert.ErrorIs(t, e.Resume(2), util.ErrNotFound)

	_, err = e.CounterInfo(2, IfInOctets)
	assert.ErrorIs(t, err, util.ErrNotFound)
	_, err = e.CounterInfo(1, IfDescr)
	assert.ErrorIs(t, err, util.ErrNotSupported)

	assert.ErrorIs(t, e.TriggerLinkFlap(1, 0), util.ErrInvalidConfig)
	assert.ErrorIs(t, e.ChangeSpeed(1, 0), util.ErrInvalidConfig)
	assert.ErrorIs(t, e.SetAdminStatus(1, 0), util.ErrInvalidConfig)
	assert.ErrorIs(t, e.SetOperStatus(1, 0), util.ErrInvalidConfig)
}

func TestAdminDownForcesOperDownAndFreezes(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	_, err := e.RegisterInterface(gigDef(1, "eth0"))
	require.NoError(t, err)

	mc.AddTime(10 * time.Second)
	require.Equal(t, uint64(375_000_000), attrUint(t, e, 1, IfInOctets))

	require.NoError(t, e.SetAdminStatus(1, AdminDown))
	assert.Equal(t, uint64(2), attrUint(t, e, 1, IfAdminStatus))
	assert.Equal(t, uint64(2), attrUint(t, e, 1, IfOperStatus))
	assert.Equal(t, uint64(1000), attrUint(t, e, 1, IfLastChange)) // 10s in ticks

	// frozen: time passes, the counter does not
	mc.AddTime(30 * time.Second)
	assert.Equal(t, uint64(375_000_000), attrUint(t, e, 1, IfInOctets))

	require.NoError(t, e.SetAdminStatus(1, AdminUp))
	assert.Equal(t, uint64(1), attrUint(t, e, 1, IfOperStatus))

	mc.AddTime(10 * time.Second) // t=50s, counting again since t=40s
	assert.Equal(t, uint64(750_000_000), attrUint(t, e, 1, IfInOctets))
}

func TestAdminDownAtRegistration(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	def := gigDef(1, "eth0")
	def.AdminStatus = AdminDown
	_, err := e.RegisterInterface(def)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), attrUint(t, e, 1, IfOperStatus))
	mc.AddTime(time.Hour)
	assert.Equal(t, uint64(0), attrUint(t, e, 1, IfInOctets))

	require.NoError(t, e.SetAdminStatus(1, AdminUp))
	assert.Equal(t, uint64(1), attrUint(t, e, 1, IfOperStatus))
	mc.AddTime(time.Second)
	assert.Equal(t, uint64(37_500_000), attrUint(t, e, 1, IfInOctets))
}

func TestSetOperStatusExternal(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	_, err := e.RegisterInterface(gigDef(1, "eth0"))
	require.NoError(t, err)

	// oper up is not allowed to contradict admin down
	require.NoError(t, e.SetAdminStatus(1, AdminDown))
	assert.ErrorIs(t, e.SetOperStatus(1, OperUp), util.ErrInvalidConfig)

	// an externally pinned status survives the admin round trip
	require.NoError(t, e.SetOperStatus(1, OperDormant))
	require.NoError(t, e.SetAdminStatus(1, AdminUp))
	assert.Equal(t, uint64(5), attrUint(t, e, 1, IfOperStatus))

	require.NoError(t, e.SetOperStatus(1, OperUp))
	assert.Equal(t, uint64(1), attrUint(t, e, 1, IfOperStatus))
}

func TestPauseResume(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	_, err := e.RegisterInterface(gigDef(1, "eth0"))
	require.NoError(t, err)

	mc.AddTime(5 * time.Second)
	require.Equal(t, uint64(187_500_000), attrUint(t, e, 1, IfInOctets))

	require.NoError(t, e.Pause(1))
	mc.AddTime(20 * time.Second)
	assert.Equal(t, uint64(187_500_000), attrUint(t, e, 1, IfInOctets))
	// pausing is not an oper event
	assert.Equal(t, uint64(1), attrUint(t, e, 1, IfOperStatus))

	require.NoError(t, e.Resume(1))
	mc.AddTime(4 * time.Second)
	assert.Equal(t, uint64(337_500_000), attrUint(t, e, 1, IfInOctets))
}

func TestInterfaceStateSnapshot(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	def := gigDef(2, "uplink0")
	def.Alias = "to-core"
	_, err := e.RegisterInterface(def)
	require.NoError(t, err)

	mc.AddTime(4 * time.Second)
	st, err := e.InterfaceState(2)
	require.NoError(t, err)

	assert.Equal(t, 2, st.Index)
	assert.Equal(t, "uplink0", st.Name)
	assert.Equal(t, mc.Now(), st.Taken)
	assert.Equal(t, AdminUp, st.AdminStatus)
	assert.Equal(t, OperUp, st.OperStatus)
	assert.Equal(t, StringValue("to-core"), st.Attrs[IfAlias])
	assert.Equal(t, Counter32Value(150_000_000), st.Attrs[IfInOctets])
	assert.Equal(t, Counter64Value(150_000_000), st.Attrs[IfHCInOctets])

	_, err = e.InterfaceState(9)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestUptimeTracksClock(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	epoch := e.Epoch()
	mc.AddTime(90 * time.Second)
	assert.Equal(t, 90*time.Second, e.Uptime())
	assert.Equal(t, epoch, e.Epoch())
}

func TestStartStopIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	require.False(t, e.Running())

	e.Start()
	require.True(t, e.Running())
	e.Start() // second start is a no-op
	require.True(t, e.Running())

	require.NoError(t, e.Stop())
	require.False(t, e.Running())
	require.NoError(t, e.Stop())
}

func TestAccelerationSpeedsUpTime(t *testing.T) {
	e, mc := newTestEngine(t, Options{})
	def := gigDef(1, "eth0")
	def.Acceleration = 100
	_, err := e.RegisterInterface(def)
	require.NoError(t, err)

	mc.AddTime(time.Second)
	// one wall second counts as one hundred
	assert.Equal(t, uint64(3_750_000_000), attrUint(t, e, 1, IfHCInOctets))
}
