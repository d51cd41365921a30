// Package tracker maintains the scrub bar position of a timeline section and
// turns pointer drags into seek requests.
package tracker

import (
	"math"

	"editorsync/internal/timemodel"
)

// DefaultEpsilon is the smallest position change, in percent, worth
// reporting.
const DefaultEpsilon = 0.1

// Scrub computes a section position in percent and remembers the last value.
type Scrub struct {
	Epsilon float64
	last    float64
	has     bool
}

// Last returns the last computed position.
func (s *Scrub) Last() float64 { return s.last }

// Compute returns the position of t within [start, start+dur]. Positions
// outside the section snap to exactly 0 or 100. A change smaller than
// Epsilon keeps the previous value. Non-finite inputs keep the previous
// value; a non-positive duration yields 0.
func (s *Scrub) Compute(t, start, dur float64) float64 {
	if !timemodel.Finite(t) || !timemodel.Finite(start) {
		return s.last
	}
	if !timemodel.Finite(dur) || dur <= 0 {
		return s.set(0)
	}
	if t < start {
		return s.set(0)
	}
	if t > start+dur {
		return s.set(100)
	}
	p := timemodel.PercentOfSection(t, start, dur)
	if s.has && math.Abs(p-s.last) < s.Epsilon {
		return s.last
	}
	return s.set(p)
}

func (s *Scrub) set(p float64) float64 {
	s.last = p
	s.has = true
	return p
}
