// Package finalize persists a validated staged payload, charges it against
// the owner's quota and composes the link the user receives.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/memohai/stowbot/internal/files"
	"github.com/memohai/stowbot/internal/media"
	"github.com/memohai/stowbot/internal/quota"
	"github.com/memohai/stowbot/internal/storage"
	"github.com/memohai/stowbot/internal/transfer"
	"github.com/memohai/stowbot/internal/users"
)

// Committer charges a stored payload. quota.Guard implements it.
type Committer interface {
	Commit(ctx context.Context, in quota.CommitInput) (users.Identity, files.Artifact, error)
}

// Staged is a payload sitting in the staging area, already postchecked.
type Staged struct {
	Path      string
	Size      int64
	Name      string
	Mime      string
	SourceURL string
}

// Outcome is what a successful run hands back to the chat front end.
type Outcome struct {
	Artifact            files.Artifact
	URL                 string
	RemainingQuotaBytes int64
	LinkExpiry          time.Duration
}

type Service struct {
	store      storage.Provider
	committer  Committer
	linkExpiry time.Duration
	logger     *slog.Logger
}

func NewService(log *slog.Logger, store storage.Provider, committer Committer, linkExpiry time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:      store,
		committer:  committer,
		linkExpiry: linkExpiry,
		logger:     log.With(slog.String("service", "finalize")),
	}
}

// Persist uploads staged, builds its access URL and commits the charge. The
// uploaded object is removed again when anything after the upload fails.
func (s *Service) Persist(ctx context.Context, identity users.Identity, staged Staged) (Outcome, error) {
	if s.store == nil {
		return Outcome{}, transfer.StorageFailed(errors.New("storage provider not configured"))
	}
	mime := media.Detect(staged.Path, staged.Mime)
	name := media.EnsureExtension(strings.TrimSpace(staged.Name), mime)
	if name == "" {
		name = "file" + media.ExtensionFromMime(mime)
	}
	key := storage.NewKey(name)

	f, err := os.Open(staged.Path)
	if err != nil {
		return Outcome{}, transfer.TempResourceFailed(fmt.Errorf("open staged file: %w", err))
	}
	err = s.store.Put(ctx, key, f, staged.Size, mime)
	_ = f.Close()
	if err != nil {
		return Outcome{}, transfer.StorageFailed(fmt.Errorf("put object: %w", err))
	}

	url, err := s.store.AccessURL(ctx, key, name)
	if err != nil {
		s.discard(key)
		return Outcome{}, transfer.StorageFailed(fmt.Errorf("access url: %w", err))
	}

	updated, artifact, err := s.committer.Commit(ctx, quota.CommitInput{
		Identity:   identity,
		Name:       name,
		SizeBytes:  staged.Size,
		Mime:       mime,
		StorageKey: key,
		SourceURL:  staged.SourceURL,
	})
	if err != nil {
		s.discard(key)
		return Outcome{}, err
	}

	s.logger.Info("artifact stored",
		slog.String("identity", identity.Key),
		slog.String("artifact", artifact.ID),
		slog.Int64("size", staged.Size),
		slog.Int64("remaining", updated.RemainingQuotaBytes),
	)
	return Outcome{
		Artifact:            artifact,
		URL:                 url,
		RemainingQuotaBytes: updated.RemainingQuotaBytes,
		LinkExpiry:          s.linkExpiry,
	}, nil
}

// discard runs on a fresh context so a cancelled request still cleans up.
func (s *Service) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("discard stored object failed", slog.String("key", key), slog.Any("error", err))
	}
}
