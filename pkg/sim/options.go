package sim

import (
	"time"

	"github.com/WatchBeam/clock"
	"github.com/iti/rngstream"

	"github.com/netsimkit/ifsim/pkg/pattern"
)

const (
	defaultTickInterval = time.Second
	defaultHistorySize  = 1000
	defaultErrorRateEPS = 10.0 // errors/sec before ErrorThresholdExceeded fires
	defaultRandomEventP = 0.001
)

// RandomEventConfig controls the scheduler's chaos injection: each tick,
// each healthy interface draws once against Probability and on a hit
// suffers a random link flap, speed change, or utilization spike.
type RandomEventConfig struct {
	Enabled     bool
	Probability float64 // per interface per tick; defaults to 0.001
}

// Options configures an Engine. The zero value is usable: real clock,
// seeded random stream, 1s ticks, 1000-event history, random events off.
type Options struct {
	// Clock supplies time. Tests inject clock.NewMockClock and drive
	// ticks directly; nil means the real clock.
	Clock clock.Clock

	// Rand supplies randomness for the pattern jitter and the scheduler's
	// random events. Nil means a fresh seeded stream.
	Rand pattern.Source

	// Location is used by business-hours patterns. Nil means local time.
	Location *time.Location

	TickInterval       time.Duration
	HistorySize        int
	RandomEvents       RandomEventConfig
	ErrorRateThreshold float64 // errors/sec, defaults to 10
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.C
	}
	if o.Rand == nil {
		o.Rand = rngstream.New("ifsim")
	}
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.HistorySize <= 0 {
		o.HistorySize = defaultHistorySize
	}
	if o.RandomEvents.Probability <= 0 {
		o.RandomEvents.Probability = defaultRandomEventP
	}
	if o.ErrorRateThreshold <= 0 {
		o.ErrorRateThreshold = defaultErrorRateEPS
	}
	return o
}
