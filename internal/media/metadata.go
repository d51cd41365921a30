package media

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Metadata struct {
	Duration      float64 // seconds
	Width         int
	Height        int
	VideoCodec    string
	AudioCodec    string
	AudioChannels int
	Bitrate       int64
	// CreationTime is the capture time from the container or stream tags.
	CreationTime *time.Time
}

// HasVideo reports whether a video stream was found.
func (m *Metadata) HasVideo() bool { return m.VideoCodec != "" }

type MetadataExtractor struct {
	ffprobePath string
	logger      zerolog.Logger
}

func NewMetadataExtractor(logger zerolog.Logger) *MetadataExtractor {
	ffprobePath := "ffprobe"
	if path, err := exec.LookPath("ffprobe"); err == nil {
		ffprobePath = path
	}

	return &MetadataExtractor{
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

func (m *MetadataExtractor) IsAvailable() bool {
	_, err := exec.LookPath(m.ffprobePath)
	return err == nil
}

func (m *MetadataExtractor) Extract(ctx context.Context, filePath string) (*Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	output, err := exec.CommandContext(ctx, m.ffprobePath, args...).Output()
	if err != nil {
		m.logger.Debug().Err(err).Str("file", filePath).Msg("ffprobe failed")
		return nil, err
	}

	return parseOutput(output)
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Channels    int               `json:"channels"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

type ffprobeFormat struct {
	Duration string            `json:"duration"`
	BitRate  string            `json:"bit_rate"`
	Tags     map[string]string `json:"tags"`
}

func parseOutput(output []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, err
	}

	meta := &Metadata{}

	if probe.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil && dur > 0 {
			meta.Duration = dur
		}
	}

	if probe.Format.BitRate != "" {
		if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
			meta.Bitrate = br
		}
	}

	meta.CreationTime = creationTime(probe.Format.Tags)

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			// Cover art in audio files shows up as a single-frame video stream.
			if stream.Disposition["attached_pic"] == 1 {
				continue
			}
			if meta.VideoCodec == "" {
				meta.VideoCodec = strings.ToUpper(stream.CodecName)
				meta.Width = stream.Width
				meta.Height = stream.Height
			}
		case "audio":
			if meta.AudioCodec == "" {
				meta.AudioCodec = strings.ToUpper(stream.CodecName)
				meta.AudioChannels = stream.Channels
			}
		}
		if meta.CreationTime == nil {
			meta.CreationTime = creationTime(stream.Tags)
		}
	}

	return meta, nil
}

var creationTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
}

func creationTime(tags map[string]string) *time.Time {
	raw := ""
	for k, v := range tags {
		if strings.EqualFold(k, "creation_time") {
			raw = strings.TrimSpace(v)
			break
		}
	}
	if raw == "" {
		return nil
	}
	for _, layout := range creationTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			// Cameras without a clock write the epoch.
			if t.Year() < 1971 {
				return nil
			}
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
