package files

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrations "github.com/memohai/stowbot/db"
	"github.com/memohai/stowbot/internal/config"
	"github.com/memohai/stowbot/internal/db"
	"github.com/memohai/stowbot/internal/db/sqlc"
	"github.com/memohai/stowbot/internal/users"
)

// Needs a migratable Postgres described by STOWBOT_TEST_PG_DATABASE (and the
// usual defaults for host/user); skipped otherwise.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbName := strings.TrimSpace(os.Getenv("STOWBOT_TEST_PG_DATABASE"))
	if dbName == "" {
		t.Skip("Skipping Postgres integration test: STOWBOT_TEST_PG_DATABASE not set")
	}
	cfg := config.Default().Postgres
	cfg.Database = dbName
	cfg.Password = os.Getenv("STOWBOT_TEST_PG_PASSWORD")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping Postgres integration test: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, db.RunMigrate(nil, cfg, mustSub(t), "up", nil))
	return pool
}

func mustSub(t *testing.T) fs.FS {
	t.Helper()
	sub, err := migrations.Migrations()
	require.NoError(t, err)
	return sub
}

func TestCommitTransfer_Integration(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	queries := sqlc.New(pool)

	identities := users.NewService(nil, queries, users.Quotas{Regular: 100 << 20, Privileged: 500 << 20})
	identity, err := identities.GetOrCreate(ctx, users.Profile{Key: "test-" + uuid.NewString()})
	require.NoError(t, err)

	svc := NewService(nil, pool, queries, nil)
	size := int64(42.5 * (1 << 20))
	updated, artifact, err := svc.CommitTransfer(ctx, CommitInput{
		IdentityID: identity.ID,
		Name:       "clip.mp4",
		SizeBytes:  size,
		Mime:       "video/mp4",
		StorageKey: "files/" + uuid.NewString() + "/clip.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100<<20)-size, updated.RemainingQuotaBytes)
	assert.Equal(t, identity.ID, artifact.IdentityID)

	// remaining == size must be rejected and leave nothing behind
	_, _, err = svc.CommitTransfer(ctx, CommitInput{
		IdentityID: identity.ID,
		Name:       "exact.bin",
		SizeBytes:  updated.RemainingQuotaBytes,
		StorageKey: "files/" + uuid.NewString() + "/exact.bin",
	})
	assert.ErrorIs(t, err, ErrInsufficientQuota)
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, updated.RemainingQuotaBytes, qe.Remaining)
	items, err := svc.List(ctx, identity.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCommitTransferConcurrentNeverOverdraws_Integration(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	queries := sqlc.New(pool)

	identities := users.NewService(nil, queries, users.Quotas{Regular: 100, Privileged: 100})
	identity, err := identities.GetOrCreate(ctx, users.Profile{Key: "test-" + uuid.NewString()})
	require.NoError(t, err)

	svc := NewService(nil, pool, queries, nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CommitTransfer(ctx, CommitInput{
				IdentityID: identity.ID,
				Name:       "part",
				SizeBytes:  30,
				StorageKey: "files/" + uuid.NewString() + "/part",
			})
			if err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, committed)

	final, err := identities.Get(ctx, identity.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(10), final.RemainingQuotaBytes)
}

func TestQuotaErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("commit: %w", &QuotaError{Remaining: 7})
	assert.ErrorIs(t, err, ErrInsufficientQuota)
	assert.Contains(t, err.Error(), "7 bytes remaining")
}

func TestCommitTransferValidatesInput(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, nil, nil, nil)
	_, _, err := svc.CommitTransfer(context.Background(), CommitInput{SizeBytes: 10})
	assert.Error(t, err)
}
