package transfer

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/stowbot/internal/formats"
)

// Source is either a DirectSource or a RemoteSource.
type Source interface {
	isSource()
	// DisplayName is the best human-readable label for the payload.
	DisplayName() string
}

// DirectSource is a file already hosted by the chat platform.
type DirectSource struct {
	FileID string
	Name   string
	Mime   string
	Size   int64
}

func (DirectSource) isSource() {}

func (s DirectSource) DisplayName() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return s.FileID
}

// RemoteSource is a media page URL resolved through the extractor.
type RemoteSource struct {
	URL       string
	MediaID   string
	Title     string
	Uploader  string
	Duration  float64
	Selection formats.Selection
}

func (RemoteSource) isSource() {}

func (s RemoteSource) DisplayName() string {
	if title := strings.TrimSpace(s.Title); title != "" {
		return title
	}
	return s.URL
}

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// FileStem names the stored file, without extension. Separators in the title
// are replaced so the whole title survives as one name.
func (s RemoteSource) FileStem() string {
	for _, v := range []string{s.Title, s.MediaID} {
		if v = strings.TrimSpace(pathSeparators.Replace(v)); v != "" {
			return v
		}
	}
	return "video"
}

// Request is the in-memory record of one transfer attempt.
type Request struct {
	ID           string
	IdentityKey  string
	DeclaredSize int64
	Source       Source
	CreatedAt    time.Time
}

// NewID returns an 8-character request id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
