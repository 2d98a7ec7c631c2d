// Package testutil provides shared helpers for unit tests (deterministic
// randomness sources) and, behind the integration build tag, helpers for
// talking to a test Redis container.
package testutil

import "time"

// Epoch is a fixed instant tests use as the engine epoch so expected counter
// values can be written down as constants.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// FixedSource returns the same value for every draw. R=0.5 zeroes the
// pattern engines' ±variance jitter, making utilization exact.
type FixedSource struct {
	R float64
}

// RandU01 implements the pattern randomness source.
func (s *FixedSource) RandU01() float64 {
	return s.R
}

// ScriptedSource replays a fixed sequence of draws, then returns 0.5 (the
// jitter-neutral value) once the script is exhausted.
type ScriptedSource struct {
	Values []float64
	next   int
}

// RandU01 implements the pattern randomness source.
func (s *ScriptedSource) RandU01() float64 {
	if s.next >= len(s.Values) {
		return 0.5
	}
	v := s.Values[s.next]
	s.next++
	return v
}

// Drawn reports how many values have been consumed from the script.
func (s *ScriptedSource) Drawn() int {
	return s.next
}
