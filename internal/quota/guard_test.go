package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/stowbot/internal/files"
	"github.com/memohai/stowbot/internal/transfer"
	"github.com/memohai/stowbot/internal/users"
)

const mb = int64(1 << 20)

type fakeLedger struct {
	mu        sync.Mutex
	remaining map[string]int64
	commits   []files.CommitInput
	err       error
}

func (f *fakeLedger) CommitTransfer(_ context.Context, in files.CommitInput) (users.Identity, files.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return users.Identity{}, files.Artifact{}, f.err
	}
	if f.remaining[in.IdentityID] <= in.SizeBytes {
		return users.Identity{}, files.Artifact{}, &files.QuotaError{Remaining: f.remaining[in.IdentityID]}
	}
	f.remaining[in.IdentityID] -= in.SizeBytes
	f.commits = append(f.commits, in)
	return users.Identity{ID: in.IdentityID, RemainingQuotaBytes: f.remaining[in.IdentityID]},
		files.Artifact{ID: "a1", IdentityID: in.IdentityID, Name: in.Name, SizeBytes: in.SizeBytes}, nil
}

func newGuard(l Ledger) *Guard {
	return NewGuard(Ceilings{Regular: 2 << 30, Privileged: 5 << 30}, l)
}

func TestPrecheckRejectsOverQuota(t *testing.T) {
	t.Parallel()
	g := newGuard(nil)
	id := users.Identity{RemainingQuotaBytes: 50 * mb}

	err := g.Precheck(id, 60*mb)
	require.Error(t, err)
	te, ok := transfer.AsError(err)
	require.True(t, ok)
	assert.Equal(t, transfer.KindSizeExceeded, te.Kind)
	assert.Equal(t, transfer.LimitQuota, te.Limit)
	assert.Equal(t, 60*mb, te.Size)
	assert.Equal(t, 50*mb, te.LimitBytes)
}

func TestCheckStrictEquality(t *testing.T) {
	t.Parallel()
	g := newGuard(nil)
	id := users.Identity{RemainingQuotaBytes: 10 * mb}

	assert.Error(t, g.Postcheck(id, 10*mb))
	assert.NoError(t, g.Postcheck(id, 10*mb-1))
}

func TestPrecheckUnknownEstimatePasses(t *testing.T) {
	t.Parallel()
	g := newGuard(nil)
	id := users.Identity{RemainingQuotaBytes: 0}

	assert.NoError(t, g.Precheck(id, 0))
	assert.NoError(t, g.Precheck(id, -1))
	assert.Error(t, g.Postcheck(id, 0))
}

func TestCeilingDependsOnPrivilege(t *testing.T) {
	t.Parallel()
	g := newGuard(nil)
	huge := int64(100 << 30)

	regular := users.Identity{RemainingQuotaBytes: huge}
	err := g.Postcheck(regular, 3<<30)
	te, ok := transfer.AsError(err)
	require.True(t, ok)
	assert.Equal(t, transfer.LimitCeiling, te.Limit)
	assert.Equal(t, int64(2<<30), te.LimitBytes)

	privileged := users.Identity{RemainingQuotaBytes: huge, IsPrivileged: true}
	assert.NoError(t, g.Postcheck(privileged, 3<<30))
	assert.Error(t, g.Postcheck(privileged, 6<<30))
}

func TestCommitDeductsActualSize(t *testing.T) {
	t.Parallel()
	l := &fakeLedger{remaining: map[string]int64{"id-1": 100 * mb}}
	g := newGuard(l)

	actual := int64(42.5 * float64(mb))
	updated, artifact, err := g.Commit(context.Background(), CommitInput{
		Identity:   users.Identity{ID: "id-1", RemainingQuotaBytes: 100 * mb},
		Name:       "clip.mp4",
		SizeBytes:  actual,
		StorageKey: "files/x/clip.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(57.5*float64(mb)), updated.RemainingQuotaBytes)
	assert.Equal(t, actual, artifact.SizeBytes)
}

func TestCommitLostRaceIsQuotaExceeded(t *testing.T) {
	t.Parallel()
	l := &fakeLedger{remaining: map[string]int64{"id-1": 5}}
	g := newGuard(l)

	_, _, err := g.Commit(context.Background(), CommitInput{Identity: users.Identity{ID: "id-1", RemainingQuotaBytes: 50}, SizeBytes: 10})
	te, ok := transfer.AsError(err)
	require.True(t, ok)
	assert.Equal(t, transfer.KindSizeExceeded, te.Kind)
	assert.Equal(t, transfer.LimitQuota, te.Limit)
	assert.Equal(t, int64(5), te.LimitBytes, "reports the quota left after the concurrent charge")
}

func TestCommitBareQuotaRefusalFallsBackToCallerView(t *testing.T) {
	t.Parallel()
	g := newGuard(&fakeLedger{err: files.ErrInsufficientQuota})

	_, _, err := g.Commit(context.Background(), CommitInput{Identity: users.Identity{ID: "id-1", RemainingQuotaBytes: 50}, SizeBytes: 10})
	te, ok := transfer.AsError(err)
	require.True(t, ok)
	assert.Equal(t, transfer.KindSizeExceeded, te.Kind)
	assert.Equal(t, int64(50), te.LimitBytes)
}

func TestCommitLedgerFailureIsStorageFailed(t *testing.T) {
	t.Parallel()
	g := newGuard(&fakeLedger{err: errors.New("connection reset")})

	_, _, err := g.Commit(context.Background(), CommitInput{Identity: users.Identity{ID: "id-1"}, SizeBytes: 10})
	assert.Equal(t, transfer.KindStorageFailed, transfer.KindOf(err))

	_, _, err = NewGuard(Ceilings{}, nil).Commit(context.Background(), CommitInput{SizeBytes: 1})
	assert.Equal(t, transfer.KindStorageFailed, transfer.KindOf(err))
}

func TestLockSerializesPerIdentity(t *testing.T) {
	t.Parallel()
	g := newGuard(nil)

	unlock := g.Lock("42")
	acquired := make(chan struct{})
	go func() {
		u := g.Lock("42")
		close(acquired)
		u()
	}()

	// a different identity is not blocked
	other := g.Lock("43")
	other()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}

	assert.Eventually(t, func() bool { return g.locks.size() == 0 }, time.Second, 5*time.Millisecond)
}
