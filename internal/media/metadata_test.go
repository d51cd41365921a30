package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutput(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
			 "tags": {"creation_time": "2023-11-14T09:30:00.000000Z"}},
			{"codec_type": "audio", "codec_name": "aac", "channels": 2}
		],
		"format": {"duration": "61.500000", "bit_rate": "8000000", "tags": {}}
	}`)

	meta, err := parseOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 61.5, meta.Duration)
	assert.Equal(t, int64(8000000), meta.Bitrate)
	assert.Equal(t, "H264", meta.VideoCodec)
	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, "AAC", meta.AudioCodec)
	assert.Equal(t, 2, meta.AudioChannels)
	assert.True(t, meta.HasVideo())
	require.NotNil(t, meta.CreationTime)
	assert.Equal(t, time.Date(2023, 11, 14, 9, 30, 0, 0, time.UTC), *meta.CreationTime)
}

func TestParseOutputPrefersFormatTags(t *testing.T) {
	out := []byte(`{
		"streams": [{"codec_type": "audio", "codec_name": "mp3",
			"tags": {"creation_time": "2020-01-01T00:00:00Z"}}],
		"format": {"duration": "10", "tags": {"CREATION_TIME": "2023-11-14 10:00:00"}}
	}`)

	meta, err := parseOutput(out)
	require.NoError(t, err)
	require.NotNil(t, meta.CreationTime)
	assert.Equal(t, 2023, meta.CreationTime.Year())
	assert.False(t, meta.HasVideo())
}

func TestParseOutputSkipsCoverArt(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "audio", "codec_name": "mp3"},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 500, "height": 500,
			 "disposition": {"attached_pic": 1}}
		],
		"format": {"duration": "180"}
	}`)

	meta, err := parseOutput(out)
	require.NoError(t, err)
	assert.False(t, meta.HasVideo())
	assert.Zero(t, meta.Width)
	assert.Nil(t, meta.CreationTime)
}

func TestCreationTime(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		ok   bool
	}{
		{"rfc3339", map[string]string{"creation_time": "2023-11-14T09:30:00Z"}, true},
		{"space layout", map[string]string{"creation_time": "2023-11-14 09:30:00"}, true},
		{"epoch", map[string]string{"creation_time": "1970-01-01T00:00:00Z"}, false},
		{"garbage", map[string]string{"creation_time": "yesterday"}, false},
		{"missing", map[string]string{"title": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, creationTime(tt.tags) != nil)
		})
	}
}

func TestFormats(t *testing.T) {
	assert.True(t, IsSupportedMedia("CAM1_0001.MP4"))
	assert.True(t, IsSupportedAudio("mic.wav"))
	assert.False(t, IsSupportedVideo("mic.wav"))
	assert.False(t, IsSupportedMedia("notes.txt"))
	assert.Equal(t, "video/mp4", GetContentType("a.m4v"))
}
