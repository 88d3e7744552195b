package media

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMime is reported when nothing better is known.
const DefaultMime = "application/octet-stream"

var extToMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".txt":  "text/plain",
}

var mimeToExt = map[string]string{
	"image/jpeg":       ".jpg",
	"image/jpg":        ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"image/webp":       ".webp",
	"audio/mpeg":       ".mp3",
	"audio/mp3":        ".mp3",
	"audio/mp4":        ".m4a",
	"audio/opus":       ".opus",
	"audio/wav":        ".wav",
	"audio/ogg":        ".ogg",
	"video/mp4":        ".mp4",
	"video/x-matroska": ".mkv",
	"video/webm":       ".webm",
	"video/quicktime":  ".mov",
	"application/pdf":  ".pdf",
	"application/zip":  ".zip",
	"text/plain":       ".txt",
}

// MimeFromExtension returns the MIME type for ext (with or without the dot).
func MimeFromExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if m, ok := extToMime[ext]; ok {
		return m
	}
	return DefaultMime
}

// ExtensionFromMime returns the canonical extension for mime, or "" when unknown.
func ExtensionFromMime(mime string) string {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mime)), ";")
	return mimeToExt[strings.TrimSpace(base)]
}

// Detect picks a MIME type for the file at path. A non-generic hint wins,
// then the extension, then content sniffing.
func Detect(path, hint string) string {
	if h := strings.TrimSpace(hint); h != "" && h != DefaultMime {
		return h
	}
	if m := MimeFromExtension(filepath.Ext(path)); m != DefaultMime {
		return m
	}
	f, err := os.Open(path)
	if err != nil {
		return DefaultMime
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return DefaultMime
	}
	return http.DetectContentType(buf[:n])
}

// EnsureExtension appends the extension implied by mime when name has none.
func EnsureExtension(name, mime string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	if ext := ExtensionFromMime(mime); ext != "" {
		return name + ext
	}
	return name
}
