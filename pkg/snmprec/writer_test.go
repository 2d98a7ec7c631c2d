package snmprec

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/WatchBeam/clock"

	"github.com/netsimkit/ifsim/internal/testutil"
	"github.com/netsimkit/ifsim/pkg/sim"
)

func snapshotEngine(t *testing.T) (*sim.Engine, *clock.MockClock) {
	t.Helper()
	mc := clock.NewMockClock()
	e := sim.New(sim.Options{Clock: mc, Rand: &testutil.FixedSource{R: 0.5}})

	_, err := e.RegisterInterface(sim.InterfaceDefinition{
		Index:           1,
		Name:            "Ethernet0",
		SpeedMbps:       1000,
		Pattern:         "constant_medium",
		BaseUtilization: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.RegisterInterface(sim.InterfaceDefinition{
		Index:       5,
		Name:        "Ethernet4",
		Alias:       "über-uplink",
		SpeedMbps:   10000,
		AdminStatus: sim.AdminDown,
	})
	if err != nil {
		t.Fatal(err)
	}
	return e, mc
}

func TestWriteEngineSnapshot(t *testing.T) {
	e, mc := snapshotEngine(t)
	mc.AddTime(10 * time.Second)

	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteEngine(e); err != nil {
		t.Fatalf("WriteEngine error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2+35*2 {
		t.Fatalf("got %d lines, want %d", len(lines), 2+35*2)
	}
	if lines[0] != "# ifsim snapshot: 2 interfaces, uptime 10s" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "1.3.6.1.2.1.2.1.0|2|2" {
		t.Errorf("ifNumber = %q", lines[1])
	}

	have := make(map[string]bool, len(lines))
	for _, l := range lines[1:] {
		have[l] = true
	}
	want := []string{
		// ifTable, interface 1
		"1.3.6.1.2.1.2.2.1.1.1|2|1",
		"1.3.6.1.2.1.2.2.1.2.1|4|Ethernet0",
		"1.3.6.1.2.1.2.2.1.3.1|2|6",
		"1.3.6.1.2.1.2.2.1.4.1|2|1500",
		"1.3.6.1.2.1.2.2.1.5.1|66|1000000000",
		"1.3.6.1.2.1.2.2.1.6.1|4x|024946000001",
		"1.3.6.1.2.1.2.2.1.7.1|2|1",
		"1.3.6.1.2.1.2.2.1.8.1|2|1",
		"1.3.6.1.2.1.2.2.1.9.1|67|0",
		"1.3.6.1.2.1.2.2.1.10.1|65|375000000",
		"1.3.6.1.2.1.2.2.1.16.1|65|250000000",
		// ifTable, interface 5: admin down since registration, counters frozen
		"1.3.6.1.2.1.2.2.1.1.5|2|5",
		"1.3.6.1.2.1.2.2.1.5.5|66|4294967295",
		"1.3.6.1.2.1.2.2.1.6.5|4x|024946000005",
		"1.3.6.1.2.1.2.2.1.7.5|2|2",
		"1.3.6.1.2.1.2.2.1.8.5|2|2",
		"1.3.6.1.2.1.2.2.1.10.5|65|0",
		// ifXTable
		"1.3.6.1.2.1.31.1.1.1.1.1|4|Ethernet0",
		"1.3.6.1.2.1.31.1.1.1.6.1|70|375000000",
		"1.3.6.1.2.1.31.1.1.1.6.5|70|0",
		"1.3.6.1.2.1.31.1.1.1.15.1|66|1000",
		"1.3.6.1.2.1.31.1.1.1.15.5|66|10000",
		"1.3.6.1.2.1.31.1.1.1.18.1|4|",
		"1.3.6.1.2.1.31.1.1.1.18.5|4x|c3bc6265722d75706c696e6b",
	}
	for _, w := range want {
		if !have[w] {
			t.Errorf("missing row %q", w)
		}
	}
}

func TestWriteEngineOIDOrder(t *testing.T) {
	e, mc := snapshotEngine(t)
	mc.AddTime(time.Second)

	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteEngine(e); err != nil {
		t.Fatalf("WriteEngine error: %v", err)
	}

	var prev []int
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		oid := parseOID(t, strings.SplitN(line, "|", 2)[0])
		if prev != nil && !oidLess(prev, oid) {
			t.Fatalf("OID order violated: %v before %v", prev, oid)
		}
		prev = oid
	}
}

func parseOID(t *testing.T, s string) []int {
	t.Helper()
	parts := strings.Split(s, ".")
	oid := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			t.Fatalf("bad OID %q: %v", s, err)
		}
		oid[i] = n
	}
	return oid
}

func oidLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func TestRender(t *testing.T) {
	cases := []struct {
		v     sim.Value
		tag   string
		value string
	}{
		{sim.IntegerValue(2), TagInteger, "2"},
		{sim.Counter32Value(100), TagCounter32, "100"},
		{sim.Counter64Value(1 << 40), TagCounter64, "1099511627776"},
		{sim.Gauge32Value(9), TagGauge32, "9"},
		{sim.TimeTicksValue(12345), TagTimeTicks, "12345"},
		{sim.StringValue("plain ascii"), TagOctetString, "plain ascii"},
		{sim.StringValue(""), TagOctetString, ""},
		{sim.StringValue("\x02\x49\x46"), TagOctetStringHex, "024946"},
		{sim.StringValue("tab\tseparated"), TagOctetStringHex, "74616209736570617261746564"},
	}
	for _, tc := range cases {
		tag, value := render(tc.v)
		if tag != tc.tag || value != tc.value {
			t.Errorf("render(%+v) = (%q, %q), want (%q, %q)", tc.v, tag, value, tc.tag, tc.value)
		}
	}
}
