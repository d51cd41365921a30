package persist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"editorsync/internal/editor"
)

func TestDecide(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	baseline := editor.Initial()
	added := editor.Initial()
	added.AddedFiles = []string{"/x.mp4"}

	tests := []struct {
		name     string
		now      time.Time
		next     editor.State
		baseline *editor.State
		kind     editor.Kind
		arm      bool
		delay    time.Duration
	}{
		{"no baseline", t0, editor.Initial(), nil, editor.KindSetMedia, true, 2 * time.Second},
		{"no baseline critical", t0, editor.Initial(), nil, editor.KindSetTracks, true, 500 * time.Millisecond},
		{"critical", t0, editor.Initial(), &baseline, editor.KindSetActiveVideo, true, 500 * time.Millisecond},
		{"time inside window", t0.Add(4 * time.Second), editor.Initial(), &baseline, editor.KindSetCurrentTime, false, 0},
		{"time after window", t0.Add(5 * time.Second), editor.Initial(), &baseline, editor.KindSetCurrentTime, true, 500 * time.Millisecond},
		{"time gated without baseline", t0.Add(time.Second), editor.Initial(), nil, editor.KindSetCurrentTime, false, 0},
		{"temporary", t0.Add(time.Hour), added, &baseline, editor.KindSetVolume, false, 0},
		{"structural insignificant", t0.Add(time.Hour), editor.Initial(), &baseline, editor.KindSetMedia, false, 0},
		{"structural inside interval", t0.Add(9 * time.Second), added, &baseline, editor.KindAddToAddedFiles, false, 0},
		{"structural after interval", t0.Add(10 * time.Second), added, &baseline, editor.KindAddToAddedFiles, true, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DebounceScheduler{Intervals: DefaultIntervals(), LastSave: t0}
			d := s.Decide(tt.now, tt.next, tt.baseline, tt.kind)
			assert.Equal(t, tt.arm, d.Arm, d.Reason)
			if tt.arm {
				assert.Equal(t, tt.delay, d.Delay)
			}
		})
	}
}

func TestShouldFireRejectsStaleGeneration(t *testing.T) {
	var s DebounceScheduler
	s.Cancel()
	gen := s.generation
	assert.True(t, s.ShouldFire(gen))
	s.Cancel()
	assert.False(t, s.ShouldFire(gen))
}
