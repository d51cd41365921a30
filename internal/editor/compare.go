package editor

import (
	"encoding/json"
	"reflect"
)

// SignificantEqual reports whether a and b are equal for save scheduling.
// Playback scalars such as CurrentTime, Volume and Scale are ignored.
func SignificantEqual(a, b State) bool {
	if a.ActiveVideoID != b.ActiveVideoID {
		return false
	}
	if !MontageEqual(a.MontageSchema, b.MontageSchema) {
		return false
	}
	if !tracksEqual(a.Tracks, b.Tracks) {
		return false
	}
	if !mediaEqual(a.Media, b.Media) {
		return false
	}
	return a.ActiveTrackID == b.ActiveTrackID &&
		a.CurrentLayout == b.CurrentLayout &&
		stringsEqual(a.AddedFiles, b.AddedFiles) &&
		a.HasMedia == b.HasMedia &&
		a.LayoutMode == b.LayoutMode &&
		panelsEqual(a.PanelLayouts, b.PanelLayouts)
}

// MontageEqual compares segments on id, start, end and source tracks.
func MontageEqual(a, b []MontageSegment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.StartTime != y.StartTime || !stringsEqual(x.SourceTrackIDs, y.SourceTrackIDs) {
			return false
		}
		switch {
		case x.EndTime == nil && y.EndTime == nil:
		case x.EndTime == nil || y.EndTime == nil:
			return false
		case *x.EndTime != *y.EndTime:
			return false
		}
	}
	return true
}

func tracksEqual(a, b []Track) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Type != y.Type || x.Name != y.Name {
			return false
		}
		xv, err1 := json.Marshal(x.Videos)
		yv, err2 := json.Marshal(y.Videos)
		if err1 != nil || err2 != nil || string(xv) != string(yv) {
			return false
		}
	}
	return true
}

func mediaEqual(a, b []MediaFile) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Path != y.Path || x.StartTime != y.StartTime || x.EndTime != y.EndTime {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func panelsEqual(a, b map[string][]float64) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
