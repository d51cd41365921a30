// Package timemodel converts between absolute sector time (Unix seconds) and
// relative display time (seconds from a section or video start).
//
// A bare float64 is ambiguous: values above AbsoluteThreshold are treated as
// Unix timestamps, everything else as a relative offset. Classify is the only
// place that applies the heuristic; callers that know the domain should build
// a Time with Relative or Absolute instead.
package timemodel

import (
	"math"
	"time"
)

// AbsoluteThreshold is one year in seconds. A relative offset longer than a
// year is misclassified as absolute.
const AbsoluteThreshold = 365 * 24 * 60 * 60

// UndatedSector is the sector key for media without a calendar start time.
const UndatedSector = "undated"

// Domain tags a time value.
type Domain int

const (
	DomainRelative Domain = iota
	DomainAbsolute
)

func (d Domain) String() string {
	if d == DomainAbsolute {
		return "absolute"
	}
	return "relative"
}

// Time is a tagged time value.
type Time struct {
	Seconds float64
	Domain  Domain
}

// Relative returns a relative Time.
func Relative(s float64) Time { return Time{Seconds: s, Domain: DomainRelative} }

// Absolute returns an absolute Time in Unix seconds.
func Absolute(s float64) Time { return Time{Seconds: s, Domain: DomainAbsolute} }

// Classify tags v using the one-year heuristic.
func Classify(v float64) Time {
	if IsAbsolute(v) {
		return Absolute(v)
	}
	return Relative(v)
}

// IsAbsolute reports whether v is read as a Unix timestamp.
func IsAbsolute(v float64) bool {
	return finite(v) && v > AbsoluteThreshold
}

// IsAbsolute reports whether t is in the absolute domain.
func (t Time) IsAbsolute() bool { return t.Domain == DomainAbsolute }

// UTC returns the calendar instant of an absolute time.
func (t Time) UTC() time.Time {
	sec, frac := math.Modf(t.Seconds)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// ToRelative maps t onto an offset from ref. Absolute inputs have ref
// subtracted; relative inputs pass through. The result is never negative and
// non-finite inputs yield 0.
func ToRelative(t, ref float64) float64 {
	if !finite(t) {
		return 0
	}
	rel := t
	if IsAbsolute(t) {
		if !finite(ref) {
			return 0
		}
		rel = t - ref
	}
	if rel < 0 || !finite(rel) {
		return 0
	}
	return rel
}

// ToAbsolute returns ref+rel when ref is a calendar timestamp and rel
// unchanged otherwise.
func ToAbsolute(rel, ref float64) float64 {
	if !finite(rel) {
		rel = 0
	}
	if IsAbsolute(ref) {
		return ref + rel
	}
	return rel
}

// PercentOfSection interpolates t into [start, start+dur] as a percentage in
// [0, 100]. A non-positive or non-finite duration yields 0.
func PercentOfSection(t, start, dur float64) float64 {
	if !finite(dur) || dur <= 0 || !finite(t) || !finite(start) {
		return 0
	}
	return Clamp((t-start)/dur*100, 0, 100)
}

// SectorID returns the calendar date key (UTC, YYYY-MM-DD) for an absolute
// time and UndatedSector for a relative one.
func SectorID(t Time) string {
	if !t.IsAbsolute() || !finite(t.Seconds) {
		return UndatedSector
	}
	return t.UTC().Format("2006-01-02")
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool { return finite(v) }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
