// Package simspec loads scenario files: YAML descriptions of engine
// settings, custom traffic patterns, and the interfaces to simulate. A
// parsed File is applied to a sim.Engine in one call, so the CLI and tests
// share a single construction path.
package simspec

import (
	"fmt"
	"time"

	"github.com/netsimkit/ifsim/pkg/pattern"
	"github.com/netsimkit/ifsim/pkg/sim"
	"github.com/netsimkit/ifsim/pkg/util"
)

// File is a parsed scenario file.
type File struct {
	Engine     EngineBlock        `yaml:"engine,omitempty"`
	Patterns   map[string]Pattern `yaml:"patterns,omitempty"`
	Interfaces []Interface        `yaml:"interfaces"`
}

// EngineBlock tunes the engine the scenario runs on. Zero values take the
// engine defaults.
type EngineBlock struct {
	TickInterval       time.Duration `yaml:"tick_interval,omitempty"`
	HistorySize        int           `yaml:"history_size,omitempty"`
	Seed               string        `yaml:"seed,omitempty"`     // random stream name, default "ifsim"
	Location           string        `yaml:"location,omitempty"` // IANA zone for business-hours patterns
	RandomEvents       RandomEvents  `yaml:"random_events,omitempty"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold,omitempty"`
}

// RandomEvents switches on the scheduler's random fault injection.
type RandomEvents struct {
	Enabled     bool    `yaml:"enabled,omitempty"`
	Probability float64 `yaml:"probability,omitempty"` // per interface per tick
}

// Pattern defines a custom traffic pattern under a name of the scenario's
// choosing. Fields are kind-specific, mirroring pattern.Config; the pattern
// engine rejects configs whose fields do not fit their kind's ranges.
type Pattern struct {
	Kind     string  `yaml:"kind"`
	Variance float64 `yaml:"variance,omitempty"`

	// constant
	Utilization float64 `yaml:"utilization,omitempty"`

	// business_hours
	BaselineUtilization float64 `yaml:"baseline_utilization,omitempty"`
	PeakUtilization     float64 `yaml:"peak_utilization,omitempty"`
	PeakStartHour       int     `yaml:"peak_start_hour,omitempty"`
	PeakEndHour         int     `yaml:"peak_end_hour,omitempty"`

	// bursty
	IdleUtilization  float64       `yaml:"idle_utilization,omitempty"`
	BurstUtilization float64       `yaml:"burst_utilization,omitempty"`
	BurstInterval    time.Duration `yaml:"burst_interval,omitempty"`
	BurstDuration    time.Duration `yaml:"burst_duration,omitempty"`

	// server_load
	BaseUtilization float64 `yaml:"base_utilization,omitempty"`
	PeakMultiplier  float64 `yaml:"peak_multiplier,omitempty"`
	PeakProbability float64 `yaml:"peak_probability,omitempty"`
}

// Config materializes the block as a pattern engine configuration.
func (p Pattern) Config() pattern.Config {
	return pattern.Config{
		Kind:                pattern.Kind(p.Kind),
		Variance:            p.Variance,
		Utilization:         p.Utilization,
		BaselineUtilization: p.BaselineUtilization,
		PeakUtilization:     p.PeakUtilization,
		PeakStartHour:       p.PeakStartHour,
		PeakEndHour:         p.PeakEndHour,
		IdleUtilization:     p.IdleUtilization,
		BurstUtilization:    p.BurstUtilization,
		BurstInterval:       p.BurstInterval,
		BurstDuration:       p.BurstDuration,
		BaseUtilization:     p.BaseUtilization,
		PeakMultiplier:      p.PeakMultiplier,
		PeakProbability:     p.PeakProbability,
	}
}

// Interface describes one interface to register. Only index, name, and
// speed_mbps are required; everything else takes the registration defaults.
type Interface struct {
	Index int    `yaml:"index"`
	Name  string `yaml:"name"`
	Alias string `yaml:"alias,omitempty"`
	Descr string `yaml:"descr,omitempty"`

	Type        int    `yaml:"type,omitempty"`
	SpeedMbps   uint64 `yaml:"speed_mbps"`
	MTU         int    `yaml:"mtu,omitempty"`
	PhysAddress string `yaml:"phys_address,omitempty"`

	AdminStatus string `yaml:"admin_status,omitempty"` // up, down, or testing

	Pattern         string            `yaml:"pattern,omitempty"`
	BaseUtilization float64           `yaml:"base_utilization,omitempty"`
	InSplit         float64           `yaml:"in_split,omitempty"`
	Ratios          Ratios            `yaml:"ratios,omitempty"`
	ErrorRate       float64           `yaml:"error_rate,omitempty"`
	DiscardRate     float64           `yaml:"discard_rate,omitempty"`
	AvgPacketBytes  int               `yaml:"avg_packet_bytes,omitempty"`
	Acceleration    float64           `yaml:"acceleration,omitempty"`
	InitialCounters map[string]uint64 `yaml:"initial_counters,omitempty"`

	Flap       Flap       `yaml:"flap,omitempty"`
	SpeedCycle SpeedCycle `yaml:"speed_cycle,omitempty"`
}

// Ratios splits packet counts across unicast, multicast, and broadcast.
type Ratios struct {
	Unicast   float64 `yaml:"unicast,omitempty"`
	Multicast float64 `yaml:"multicast,omitempty"`
	Broadcast float64 `yaml:"broadcast,omitempty"`
}

// Flap schedules periodic link flaps.
type Flap struct {
	Enabled      bool          `yaml:"enabled,omitempty"`
	Interval     time.Duration `yaml:"interval,omitempty"`
	DownDuration time.Duration `yaml:"down_duration,omitempty"`
}

// SpeedCycle schedules periodic speed changes through a fixed sequence.
type SpeedCycle struct {
	Enabled    bool          `yaml:"enabled,omitempty"`
	Interval   time.Duration `yaml:"interval,omitempty"`
	SpeedsMbps []uint64      `yaml:"speeds_mbps,omitempty"`
}

// definition converts to the registration form. admin_status is the only
// field that can fail here; the rest is validated at registration.
func (i Interface) definition() (sim.InterfaceDefinition, error) {
	def := sim.InterfaceDefinition{
		Index:           i.Index,
		Name:            i.Name,
		Alias:           i.Alias,
		Descr:           i.Descr,
		Type:            i.Type,
		SpeedMbps:       i.SpeedMbps,
		MTU:             i.MTU,
		PhysAddress:     i.PhysAddress,
		Pattern:         i.Pattern,
		BaseUtilization: i.BaseUtilization,
		InSplit:         i.InSplit,
		Ratios: sim.TrafficRatios{
			Unicast:   i.Ratios.Unicast,
			Multicast: i.Ratios.Multicast,
			Broadcast: i.Ratios.Broadcast,
		},
		ErrorRate:       i.ErrorRate,
		DiscardRate:     i.DiscardRate,
		AvgPacketBytes:  i.AvgPacketBytes,
		Acceleration:    i.Acceleration,
		InitialCounters: i.InitialCounters,
		Flap: sim.FlapSchedule{
			Enabled:      i.Flap.Enabled,
			Interval:     i.Flap.Interval,
			DownDuration: i.Flap.DownDuration,
		},
		SpeedCycle: sim.SpeedSchedule{
			Enabled:    i.SpeedCycle.Enabled,
			Interval:   i.SpeedCycle.Interval,
			SpeedsMbps: i.SpeedCycle.SpeedsMbps,
		},
	}
	if i.AdminStatus != "" {
		st, ok := sim.ParseAdminStatus(i.AdminStatus)
		if !ok {
			return sim.InterfaceDefinition{}, fmt.Errorf(
				"admin_status must be up, down, or testing (got %q): %w",
				i.AdminStatus, util.ErrInvalidConfig)
		}
		def.AdminStatus = st
	}
	return def, nil
}
