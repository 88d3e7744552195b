// Package files records stored artifacts and charges them to identity quotas.
package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/stowbot/internal/db"
	"github.com/memohai/stowbot/internal/db/sqlc"
	"github.com/memohai/stowbot/internal/storage"
	"github.com/memohai/stowbot/internal/users"
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrInsufficientQuota = errors.New("insufficient quota")
)

// QuotaError is a refused charge carrying the quota left when it was refused.
type QuotaError struct {
	Remaining int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d bytes remaining", ErrInsufficientQuota, e.Remaining)
}

func (e *QuotaError) Is(target error) bool { return target == ErrInsufficientQuota }

type Service struct {
	pool    *pgxpool.Pool
	queries *sqlc.Queries
	store   storage.Provider
	logger  *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool, queries *sqlc.Queries, store storage.Provider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:    pool,
		queries: queries,
		store:   store,
		logger:  log.With(slog.String("service", "files")),
	}
}

// CommitTransfer deducts the artifact size from the identity's quota and
// inserts the artifact row in one transaction. The deduction only applies
// while the remaining quota stays strictly above the size; otherwise nothing
// is written and ErrInsufficientQuota is returned.
func (s *Service) CommitTransfer(ctx context.Context, in CommitInput) (users.Identity, Artifact, error) {
	if s.pool == nil || s.queries == nil {
		return users.Identity{}, Artifact{}, errors.New("files service not configured")
	}
	if in.SizeBytes <= 0 {
		return users.Identity{}, Artifact{}, fmt.Errorf("artifact size must be positive, got %d", in.SizeBytes)
	}
	identityID, err := db.ParseUUID(in.IdentityID)
	if err != nil {
		return users.Identity{}, Artifact{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return users.Identity{}, Artifact{}, fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	qtx := s.queries.WithTx(tx)

	identityRow, err := qtx.DeductQuota(ctx, sqlc.DeductQuotaParams{SizeBytes: in.SizeBytes, ID: identityID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsCheckViolation(err) {
			return users.Identity{}, Artifact{}, s.insufficient(ctx, identityID)
		}
		return users.Identity{}, Artifact{}, fmt.Errorf("deduct quota: %w", err)
	}

	mime := strings.TrimSpace(in.Mime)
	if mime == "" {
		mime = "application/octet-stream"
	}
	artifactRow, err := qtx.CreateArtifact(ctx, sqlc.CreateArtifactParams{
		IdentityID: identityID,
		Name:       in.Name,
		SizeBytes:  in.SizeBytes,
		Mime:       mime,
		StorageKey: in.StorageKey,
		SourceUrl:  db.Text(in.SourceURL),
	})
	if err != nil {
		return users.Identity{}, Artifact{}, fmt.Errorf("insert artifact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return users.Identity{}, Artifact{}, fmt.Errorf("commit transfer: %w", err)
	}
	return users.FromRow(identityRow), toArtifact(artifactRow), nil
}

// insufficient reads the quota that refused the charge. The deduct query
// returns no row in that case, so the identity is read separately.
func (s *Service) insufficient(ctx context.Context, identityID pgtype.UUID) error {
	row, err := s.queries.GetIdentityByID(ctx, identityID)
	if err != nil {
		s.logger.Warn("read quota after refused charge", slog.Any("error", err))
		return ErrInsufficientQuota
	}
	return &QuotaError{Remaining: row.RemainingQuotaBytes}
}

func (s *Service) Get(ctx context.Context, id string) (Artifact, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Artifact{}, err
	}
	row, err := s.queries.GetArtifact(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Artifact{}, ErrArtifactNotFound
		}
		return Artifact{}, err
	}
	return toArtifact(row), nil
}

// List returns artifacts newest first, optionally for a single identity.
func (s *Service) List(ctx context.Context, identityID string, limit, offset int32) ([]Artifact, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var (
		rows []sqlc.Artifact
		err  error
	)
	if strings.TrimSpace(identityID) == "" {
		rows, err = s.queries.ListArtifacts(ctx, sqlc.ListArtifactsParams{Limit: limit, Offset: offset})
	} else {
		pgID, parseErr := db.ParseUUID(identityID)
		if parseErr != nil {
			return nil, parseErr
		}
		rows, err = s.queries.ListArtifactsByIdentity(ctx, sqlc.ListArtifactsByIdentityParams{
			IdentityID: pgID,
			Limit:      limit,
			Offset:     offset,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	items := make([]Artifact, 0, len(rows))
	for _, row := range rows {
		items = append(items, toArtifact(row))
	}
	return items, nil
}

// Delete removes the stored object and then the row. Quota is not refunded.
func (s *Service) Delete(ctx context.Context, id string) error {
	artifact, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, artifact.StorageKey); err != nil {
			return fmt.Errorf("delete stored object: %w", err)
		}
	}
	pgID, _ := db.ParseUUID(artifact.ID)
	if err := s.queries.DeleteArtifact(ctx, pgID); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	s.logger.Info("artifact deleted", slog.String("artifact", artifact.ID), slog.String("key", artifact.StorageKey))
	return nil
}

// AccessURL returns a fresh download link for an artifact.
func (s *Service) AccessURL(ctx context.Context, artifact Artifact) (string, error) {
	if s.store == nil {
		return "", errors.New("storage not configured")
	}
	return s.store.AccessURL(ctx, artifact.StorageKey, artifact.Name)
}

func (s *Service) Totals(ctx context.Context) (Totals, error) {
	row, err := s.queries.ArtifactTotals(ctx)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Count: row.ArtifactCount, TotalBytes: row.TotalBytes}, nil
}

func toArtifact(row sqlc.Artifact) Artifact {
	return Artifact{
		ID:         db.UUIDString(row.ID),
		IdentityID: db.UUIDString(row.IdentityID),
		Name:       row.Name,
		SizeBytes:  row.SizeBytes,
		Mime:       row.Mime,
		StorageKey: row.StorageKey,
		SourceURL:  db.TextToString(row.SourceUrl),
		CreatedAt:  db.TimeFromPg(row.CreatedAt),
	}
}
