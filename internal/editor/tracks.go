package editor

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
)

const (
	TrackTypeVideo = "video"
	TrackTypeAudio = "audio"
)

// seriesPattern splits "name_0003.mp4" into the series base "name".
var seriesPattern = regexp.MustCompile(`^(.+?)(?:_(\d+))?\.([^.]+)$`)

var trackNamespace = uuid.MustParse("6f1c5a3e-2b7d-4c59-9a8e-0d4b1e7f3c21")

type trackKey struct{ sector, kind string }

// TrackID derives a stable id from sector, type and series name, so adding
// more files of the same series extends the existing track.
func TrackID(sector, kind, series string) string {
	return uuid.NewSHA1(trackNamespace, []byte(sector+"/"+kind+"/"+series)).String()
}

// SeriesName returns the base name shared by numbered recordings.
func SeriesName(fileName string) string {
	m := seriesPattern.FindStringSubmatch(fileName)
	if m == nil {
		return fileName
	}
	return m[1]
}

// BuildTracks groups media by sector, type and series into tracks. Indexes
// continue after the highest index already used in the same sector and type.
func BuildTracks(media []MediaFile, existing []Track) []Track {
	sorted := append([]MediaFile(nil), media...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	var order []trackKey
	bySector := map[trackKey][]MediaFile{}
	for _, m := range sorted {
		kind := TrackTypeAudio
		if m.IsVideo {
			kind = TrackTypeVideo
		}
		key := trackKey{m.SectorID(), kind}
		if _, ok := bySector[key]; !ok {
			order = append(order, key)
		}
		bySector[key] = append(bySector[key], m)
	}

	var tracks []Track
	for _, key := range order {
		next := maxIndex(existing, key.sector, key.kind)
		var seriesOrder []string
		series := map[string][]MediaFile{}
		for _, m := range bySector[key] {
			name := SeriesName(m.Name)
			if _, ok := series[name]; !ok {
				seriesOrder = append(seriesOrder, name)
			}
			series[name] = append(series[name], m)
		}

		for _, name := range seriesOrder {
			id := TrackID(key.sector, key.kind, name)
			if i := indexOfTrack(existing, id); i >= 0 {
				tracks = append(tracks, newTrack(id, existing[i].Name, key, existing[i].Index, series[name]))
				continue
			}
			next++
			label := "Video"
			if key.kind == TrackTypeAudio {
				label = "Audio"
			}
			tracks = append(tracks, newTrack(id, fmt.Sprintf("%s %d", label, next), key, next, series[name]))
		}
	}
	return tracks
}

func newTrack(id, name string, key trackKey, index int, videos []MediaFile) Track {
	t := Track{
		ID:       id,
		Name:     name,
		Type:     key.kind,
		Index:    index,
		SectorID: key.sector,
		Videos:   append([]MediaFile(nil), videos...),
		Volume:   1,
	}
	t.recompute()
	return t
}

func maxIndex(tracks []Track, sector, kind string) int {
	highest := 0
	for _, t := range tracks {
		if t.SectorID == sector && t.Type == kind && t.Index > highest {
			highest = t.Index
		}
	}
	return highest
}

// mergeTrack appends the videos of add that cur does not already hold.
func mergeTrack(cur, add Track) Track {
	videos := append([]MediaFile(nil), cur.Videos...)
	for _, v := range add.Videos {
		dup := false
		for _, have := range videos {
			if have.ID == v.ID {
				dup = true
				break
			}
		}
		if !dup {
			videos = append(videos, v)
		}
	}
	sort.SliceStable(videos, func(i, j int) bool { return videos[i].StartTime < videos[j].StartTime })
	cur.Videos = videos
	cur.recompute()
	return cur
}

func (t *Track) recompute() {
	t.StartTime, t.EndTime, t.CombinedDuration = 0, 0, 0
	if len(t.Videos) == 0 {
		return
	}
	t.StartTime = t.Videos[0].StartTime
	t.EndTime = t.Videos[len(t.Videos)-1].End()
	for _, v := range t.Videos {
		t.CombinedDuration += v.Duration
	}
}

// TimeRanges merges the spans of the track's videos, joining spans that
// touch or overlap.
func (t Track) TimeRanges() []TimeRange {
	var ranges []TimeRange
	for _, v := range t.Videos {
		r := TimeRange{Start: v.StartTime, End: v.End()}
		if n := len(ranges); n > 0 && r.Start <= ranges[n-1].End {
			if r.End > ranges[n-1].End {
				ranges[n-1].End = r.End
			}
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges
}
