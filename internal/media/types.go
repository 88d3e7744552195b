// Package media classifies stored payloads by MIME type and file extension.
package media

import "strings"

// MediaType classifies the kind of media asset.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
	MediaTypeFile  MediaType = "file"
)

// TypeOf maps a MIME type to its MediaType.
func TypeOf(mime string) MediaType {
	major, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mime)), "/")
	switch major {
	case "image":
		return MediaTypeImage
	case "audio":
		return MediaTypeAudio
	case "video":
		return MediaTypeVideo
	default:
		return MediaTypeFile
	}
}
