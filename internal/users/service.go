// Package users stores chat identities and their daily byte quotas.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/stowbot/internal/db"
	"github.com/memohai/stowbot/internal/db/sqlc"
)

var (
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrInvalidKey        = errors.New("identity key is required")
	ErrAlreadyPrivileged = errors.New("identity is already privileged")
	ErrAlreadyRequested  = errors.New("privilege already requested")
)

// Queries is the subset of sqlc queries the service needs.
type Queries interface {
	UpsertIdentity(ctx context.Context, arg sqlc.UpsertIdentityParams) (sqlc.Identity, error)
	GetIdentityByKey(ctx context.Context, key string) (sqlc.Identity, error)
	GetIdentityByID(ctx context.Context, id pgtype.UUID) (sqlc.Identity, error)
	ListIdentities(ctx context.Context, arg sqlc.ListIdentitiesParams) ([]sqlc.Identity, error)
	ResetDailyQuotas(ctx context.Context) (int64, error)
	ResetIdentityQuota(ctx context.Context, key string) (sqlc.Identity, error)
	SetPrivileged(ctx context.Context, arg sqlc.SetPrivilegedParams) (sqlc.Identity, error)
	RequestPrivilege(ctx context.Context, key string) (sqlc.Identity, error)
	CountIdentities(ctx context.Context) (int64, error)
}

type Service struct {
	queries Queries
	quotas  Quotas
	logger  *slog.Logger

	mu        sync.RWMutex
	listeners []PrivilegeListener
}

func NewService(log *slog.Logger, queries Queries, quotas Quotas) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		queries: queries,
		quotas:  quotas,
		logger:  log.With(slog.String("service", "users")),
	}
}

// OnPrivilegeChanged registers l to be told about SetPrivileged results.
func (s *Service) OnPrivilegeChanged(l PrivilegeListener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// GetOrCreate upserts the identity for p, refreshing its profile fields.
// New identities start with a full regular daily quota.
func (s *Service) GetOrCreate(ctx context.Context, p Profile) (Identity, error) {
	key := strings.TrimSpace(p.Key)
	if key == "" {
		return Identity{}, ErrInvalidKey
	}
	row, err := s.queries.UpsertIdentity(ctx, sqlc.UpsertIdentityParams{
		Key:                 key,
		Username:            db.Text(p.Username),
		FirstName:           db.Text(p.FirstName),
		LastName:            db.Text(p.LastName),
		RemainingQuotaBytes: s.quotas.Regular,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("upsert identity: %w", err)
	}
	return toIdentity(row), nil
}

func (s *Service) Get(ctx context.Context, key string) (Identity, error) {
	row, err := s.queries.GetIdentityByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		return Identity{}, notFound(err)
	}
	return toIdentity(row), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Identity, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Identity{}, err
	}
	row, err := s.queries.GetIdentityByID(ctx, pgID)
	if err != nil {
		return Identity{}, notFound(err)
	}
	return toIdentity(row), nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Identity, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	params := sqlc.ListIdentitiesParams{RowLimit: f.Limit, RowOffset: f.Offset}
	if f.PendingPrivilegeOnly {
		params.PrivilegeRequested = pgtype.Bool{Bool: true, Valid: true}
	}
	rows, err := s.queries.ListIdentities(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	items := make([]Identity, 0, len(rows))
	for _, row := range rows {
		items = append(items, toIdentity(row))
	}
	return items, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.queries.CountIdentities(ctx)
}

// ResetDailyQuotas refills every identity to its daily allowance.
func (s *Service) ResetDailyQuotas(ctx context.Context) (int64, error) {
	n, err := s.queries.ResetDailyQuotas(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset daily quotas: %w", err)
	}
	s.logger.Info("daily quotas reset", slog.Int64("identities", n))
	return n, nil
}

func (s *Service) ResetQuota(ctx context.Context, key string) (Identity, error) {
	row, err := s.queries.ResetIdentityQuota(ctx, strings.TrimSpace(key))
	if err != nil {
		return Identity{}, notFound(err)
	}
	return toIdentity(row), nil
}

// SetPrivileged grants or revokes privilege. The daily allowance follows the
// new class and any pending request is cleared.
func (s *Service) SetPrivileged(ctx context.Context, key string, privileged bool) (Identity, error) {
	daily := s.quotas.Regular
	if privileged {
		daily = s.quotas.Privileged
	}
	row, err := s.queries.SetPrivileged(ctx, sqlc.SetPrivilegedParams{
		IsPrivileged:       privileged,
		MaxDailyQuotaBytes: daily,
		Key:                strings.TrimSpace(key),
	})
	if err != nil {
		return Identity{}, notFound(err)
	}
	identity := toIdentity(row)
	s.logger.Info("privilege changed", slog.String("identity", identity.Key), slog.Bool("privileged", privileged))

	s.mu.RLock()
	listeners := append([]PrivilegeListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l.PrivilegeChanged(ctx, identity)
	}
	return identity, nil
}

// RequestPrivilege marks that the identity asked for privileged access.
func (s *Service) RequestPrivilege(ctx context.Context, key string) (Identity, error) {
	current, err := s.Get(ctx, key)
	if err != nil {
		return Identity{}, err
	}
	if current.IsPrivileged {
		return current, ErrAlreadyPrivileged
	}
	if current.PrivilegeRequested {
		return current, ErrAlreadyRequested
	}
	row, err := s.queries.RequestPrivilege(ctx, current.Key)
	if err != nil {
		return Identity{}, notFound(err)
	}
	return toIdentity(row), nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrIdentityNotFound
	}
	return err
}

func toIdentity(row sqlc.Identity) Identity {
	out := Identity{
		ID:                  db.UUIDString(row.ID),
		Key:                 row.Key,
		Username:            db.TextToString(row.Username),
		FirstName:           db.TextToString(row.FirstName),
		LastName:            db.TextToString(row.LastName),
		RemainingQuotaBytes: row.RemainingQuotaBytes,
		MaxDailyQuotaBytes:  row.MaxDailyQuotaBytes,
		IsPrivileged:        row.IsPrivileged,
		PrivilegeRequested:  row.PrivilegeRequested,
		CreatedAt:           db.TimeFromPg(row.CreatedAt),
		UpdatedAt:           db.TimeFromPg(row.UpdatedAt),
	}
	if row.PrivilegeRequestedAt.Valid {
		at := row.PrivilegeRequestedAt.Time
		out.PrivilegeRequestedAt = &at
	}
	return out
}

// FromRow converts a sqlc row; used by packages that update identities inside their own transactions.
func FromRow(row sqlc.Identity) Identity {
	return toIdentity(row)
}
