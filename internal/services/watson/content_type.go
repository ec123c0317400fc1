package watson

import (
	"path"
	"strings"
)

var contentTypes = map[string]string{
	".mp3":   "audio/mp3",
	".mpeg":  "audio/mpeg",
	".wav":   "audio/wav",
	".flac":  "audio/flac",
	".ogg":   "audio/ogg",
	".oga":   "audio/ogg",
	".opus":  "audio/ogg;codecs=opus",
	".webm":  "audio/webm",
	".mulaw": "audio/mulaw",
	".alaw":  "audio/alaw",
	".l16":   "audio/l16",
}

// ContentTypeFor picks the upload media type from the file extension, falling
// back to the configured default for unrecognized extensions.
func ContentTypeFor(sourceFile, fallback string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(sourceFile, "\\", "/")))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return "audio/mp3"
}
