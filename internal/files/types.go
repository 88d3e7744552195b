package files

import "time"

// Artifact is a stored file owned by an identity.
type Artifact struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	Mime       string    `json:"mime"`
	StorageKey string    `json:"storage_key"`
	SourceURL  string    `json:"source_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CommitInput describes an object already written to storage, to be charged
// against IdentityID's quota and recorded.
type CommitInput struct {
	IdentityID string
	Name       string
	SizeBytes  int64
	Mime       string
	StorageKey string
	SourceURL  string
}

// Totals summarizes all stored artifacts.
type Totals struct {
	Count      int64 `json:"count"`
	TotalBytes int64 `json:"total_bytes"`
}
