// Package pattern computes instantaneous interface utilization from named
// traffic patterns and wall-clock time. Evaluation is deterministic apart
// from a bounded jitter drawn from an injectable randomness source, so tests
// can script the source and get exact values back.
package pattern

import (
	"sort"
	"sync"
	"time"

	"github.com/iti/rngstream"

	"github.com/netsimkit/ifsim/pkg/util"
)

// FallbackUtilization is returned for pattern names the engine does not
// know. Lookups never fail; unknown names degrade to a quiet trickle.
const FallbackUtilization = 0.1

// Source supplies uniform random numbers in [0,1). *rngstream.RngStream
// satisfies it natively; tests substitute scripted sources.
type Source interface {
	RandU01() float64
}

// Kind names a pattern evaluation strategy.
type Kind string

const (
	KindConstant      Kind = "constant"
	KindBusinessHours Kind = "business_hours"
	KindBursty        Kind = "bursty"
	KindServerLoad    Kind = "server_load"
)

// Config parameterizes one named pattern. Which fields matter depends on
// Kind; Variance applies to all kinds.
//
// Draw discipline per evaluation: every kind consumes exactly one uniform
// draw for jitter; server_load consumes one additional draw (first) for its
// peak test. Scripted sources in tests rely on this ordering.
type Config struct {
	Kind     Kind
	Variance float64 // jitter half-width, applied as ±uniform(0,Variance)

	// constant
	Utilization float64

	// business_hours
	BaselineUtilization float64
	PeakUtilization     float64
	PeakStartHour       int // inclusive, 0-23
	PeakEndHour         int // exclusive, 1-24

	// bursty
	IdleUtilization  float64
	BurstUtilization float64
	BurstInterval    time.Duration // idle time between bursts
	BurstDuration    time.Duration

	// server_load
	BaseUtilization float64
	PeakMultiplier  float64
	PeakProbability float64
}

// validate reports configuration problems for the kind.
func (c Config) validate(name string) error {
	b := &util.ValidationBuilder{}
	b.Add(c.Variance >= 0 && c.Variance <= 0.5, name+": variance must be in [0,0.5]")

	switch c.Kind {
	case KindConstant:
		b.Add(c.Utilization >= 0 && c.Utilization <= 1, name+": utilization must be in [0,1]")
	case KindBusinessHours:
		b.Add(c.BaselineUtilization >= 0 && c.BaselineUtilization <= 1, name+": baseline_utilization must be in [0,1]")
		b.Add(c.PeakUtilization >= 0 && c.PeakUtilization <= 1, name+": peak_utilization must be in [0,1]")
		b.Add(c.PeakStartHour >= 0 && c.PeakStartHour <= 23, name+": peak_start_hour must be in [0,23]")
		b.Add(c.PeakEndHour >= 1 && c.PeakEndHour <= 24, name+": peak_end_hour must be in [1,24]")
		b.Add(c.PeakStartHour < c.PeakEndHour, name+": peak_start_hour must precede peak_end_hour")
	case KindBursty:
		b.Add(c.IdleUtilization >= 0 && c.IdleUtilization <= 1, name+": idle_utilization must be in [0,1]")
		b.Add(c.BurstUtilization >= 0 && c.BurstUtilization <= 1, name+": burst_utilization must be in [0,1]")
		b.Add(c.BurstInterval > 0, name+": burst_interval must be positive")
		b.Add(c.BurstDuration > 0, name+": burst_duration must be positive")
	case KindServerLoad:
		b.Add(c.BaseUtilization >= 0 && c.BaseUtilization <= 1, name+": base_utilization must be in [0,1]")
		b.Add(c.PeakMultiplier >= 1, name+": peak_multiplier must be >= 1")
		b.Add(c.PeakProbability >= 0 && c.PeakProbability <= 1, name+": peak_probability must be in [0,1]")
	default:
		b.AddErrorf("%s: unknown pattern kind %q", name, c.Kind)
	}
	return b.Build()
}

// burstState is the per-interface memory behind KindBursty: when the last
// idle/burst transition happened and which side of it we are on.
type burstState struct {
	lastTransition time.Time
	active         bool
}

// Engine evaluates named patterns. Safe for concurrent use; the mutex also
// serializes access to the randomness source, which is not goroutine-safe.
type Engine struct {
	mu      sync.Mutex
	src     Source
	loc     *time.Location
	configs map[string]Config
	bursts  map[int]*burstState
}

// NewEngine creates a pattern engine preloaded with the built-in patterns.
// A nil source gets a default seeded stream; a nil location means local time
// for business-hours evaluation.
func NewEngine(src Source, loc *time.Location) *Engine {
	if src == nil {
		src = rngstream.New("pattern-engine")
	}
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		src:     src,
		loc:     loc,
		configs: Builtins(),
		bursts:  make(map[int]*burstState),
	}
	return e
}

// Define registers or replaces a named pattern after validating it.
func (e *Engine) Define(name string, cfg Config) error {
	if name == "" {
		return util.NewValidationError("pattern name must not be empty")
	}
	if err := cfg.validate(name); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs[name] = cfg
	return nil
}

// Has reports whether a pattern name resolves.
func (e *Engine) Has(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.configs[name]
	return ok
}

// Config returns the configuration behind a name.
func (e *Engine) Config(name string) (Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok := e.configs[name]
	return cfg, ok
}

// Names returns all defined pattern names, sorted.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.configs))
	for name := range e.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Utilization evaluates the named pattern for an interface at an instant.
// The result is always in [0,1]. Unknown names return FallbackUtilization.
func (e *Engine) Utilization(index int, name string, now time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok := e.configs[name]
	if !ok {
		return FallbackUtilization
	}

	var base float64
	switch cfg.Kind {
	case KindConstant:
		base = cfg.Utilization
	case KindBusinessHours:
		hour := now.In(e.loc).Hour()
		if hour >= cfg.PeakStartHour && hour < cfg.PeakEndHour {
			base = cfg.PeakUtilization
		} else {
			base = cfg.BaselineUtilization
		}
	case KindBursty:
		base = e.burstLevel(index, cfg, now)
	case KindServerLoad:
		base = cfg.BaseUtilization
		if e.src.RandU01() < cfg.PeakProbability {
			base *= cfg.PeakMultiplier
		}
	default:
		return FallbackUtilization
	}

	// One jitter draw per evaluation regardless of variance, so scripted
	// sources see a fixed consumption per call.
	r := e.src.RandU01()
	base += (2*r - 1) * cfg.Variance

	return clamp01(base)
}

// burstLevel advances the two-state idle/burst machine for one interface
// and returns its current level. Transitions fire purely on elapsed time
// since the previous transition; one call advances at most one transition.
func (e *Engine) burstLevel(index int, cfg Config, now time.Time) float64 {
	bs, ok := e.bursts[index]
	if !ok {
		bs = &burstState{lastTransition: now}
		e.bursts[index] = bs
	}
	elapsed := now.Sub(bs.lastTransition)
	if bs.active {
		if elapsed >= cfg.BurstDuration {
			bs.active = false
			bs.lastTransition = now
		}
	} else {
		if elapsed >= cfg.BurstInterval {
			bs.active = true
			bs.lastTransition = now
		}
	}
	if bs.active {
		return cfg.BurstUtilization
	}
	return cfg.IdleUtilization
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
