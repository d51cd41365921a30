package editor

import (
	"sort"

	"editorsync/internal/timemodel"
)

// Section is one timeline sector: the tracks recorded on a calendar day, or
// the undated bucket for media without a capture time.
type Section struct {
	ID       string   `json:"id"`
	Start    float64  `json:"start"`
	End      float64  `json:"end"`
	Duration float64  `json:"duration"`
	TrackIDs []string `json:"trackIds"`
}

// Absolute reports whether the section lives in the Unix-timestamp domain.
func (s Section) Absolute() bool {
	return timemodel.IsAbsolute(s.Start)
}

// Sections derives the sector list from tracks, ordered by start time.
func Sections(tracks []Track) []Section {
	byID := map[string]*Section{}
	var ids []string
	for _, t := range tracks {
		if len(t.Videos) == 0 {
			continue
		}
		id := t.SectorID
		if id == "" {
			id = t.Videos[0].SectorID()
		}
		sec, ok := byID[id]
		if !ok {
			sec = &Section{ID: id, Start: t.StartTime, End: t.EndTime}
			byID[id] = sec
			ids = append(ids, id)
		}
		if t.StartTime < sec.Start {
			sec.Start = t.StartTime
		}
		if t.EndTime > sec.End {
			sec.End = t.EndTime
		}
		sec.TrackIDs = append(sec.TrackIDs, t.ID)
	}

	out := make([]Section, 0, len(ids))
	for _, id := range ids {
		sec := *byID[id]
		sec.Duration = sec.End - sec.Start
		out = append(out, sec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// SectionOf returns the section containing the video.
func SectionOf(sections []Section, v MediaFile) (Section, bool) {
	id := v.SectorID()
	for _, s := range sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}
