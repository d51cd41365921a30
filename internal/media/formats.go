package media

import (
	"path/filepath"
	"strings"
)

var supportedVideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
	".mov":  true,
	".mts":  true,
	".wmv":  true,
	".flv":  true,
}

var supportedAudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

func IsSupportedVideo(filename string) bool {
	return supportedVideoExtensions[strings.ToLower(filepath.Ext(filename))]
}

func IsSupportedAudio(filename string) bool {
	return supportedAudioExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsSupportedMedia reports whether the file can be placed on the timeline.
func IsSupportedMedia(filename string) bool {
	return IsSupportedVideo(filename) || IsSupportedAudio(filename)
}

func GetContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mts":
		return "video/mp2t"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".flv":
		return "video/x-flv"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
