// Package quota enforces the per-identity size ceiling and daily byte quota,
// and is the only place that charges a transfer against an identity.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/memohai/stowbot/internal/files"
	"github.com/memohai/stowbot/internal/transfer"
	"github.com/memohai/stowbot/internal/users"
)

// Ledger atomically charges and records a stored artifact.
type Ledger interface {
	CommitTransfer(ctx context.Context, in files.CommitInput) (users.Identity, files.Artifact, error)
}

// Ceilings cap the size of a single transfer regardless of remaining quota.
type Ceilings struct {
	Regular    int64
	Privileged int64
}

// CommitInput is a validated, stored transfer ready to be charged.
type CommitInput struct {
	Identity   users.Identity
	Name       string
	SizeBytes  int64
	Mime       string
	StorageKey string
	SourceURL  string
}

type Guard struct {
	ceilings Ceilings
	ledger   Ledger
	locks    keyedMutex
}

func NewGuard(ceilings Ceilings, ledger Ledger) *Guard {
	return &Guard{ceilings: ceilings, ledger: ledger}
}

// Ceiling returns the single-transfer cap for identity.
func (g *Guard) Ceiling(identity users.Identity) int64 {
	if identity.IsPrivileged {
		return g.ceilings.Privileged
	}
	return g.ceilings.Regular
}

// Precheck validates an advisory size estimate before any bytes move.
// Unknown estimates (<= 0) pass.
func (g *Guard) Precheck(identity users.Identity, estimated int64) error {
	if estimated <= 0 {
		return nil
	}
	return g.check(identity, estimated)
}

// Postcheck validates the measured size of a staged payload.
func (g *Guard) Postcheck(identity users.Identity, actual int64) error {
	return g.check(identity, actual)
}

func (g *Guard) check(identity users.Identity, size int64) error {
	if ceiling := g.Ceiling(identity); ceiling > 0 && size > ceiling {
		return transfer.SizeExceeded(transfer.LimitCeiling, size, ceiling)
	}
	if size >= identity.RemainingQuotaBytes {
		return transfer.SizeExceeded(transfer.LimitQuota, size, identity.RemainingQuotaBytes)
	}
	return nil
}

// Commit charges in.SizeBytes and records the artifact. A concurrent charge
// that drained the quota first surfaces as SizeExceeded(quota).
func (g *Guard) Commit(ctx context.Context, in CommitInput) (users.Identity, files.Artifact, error) {
	if g.ledger == nil {
		return users.Identity{}, files.Artifact{}, transfer.StorageFailed(errors.New("quota ledger not configured"))
	}
	identity, artifact, err := g.ledger.CommitTransfer(ctx, files.CommitInput{
		IdentityID: in.Identity.ID,
		Name:       in.Name,
		SizeBytes:  in.SizeBytes,
		Mime:       in.Mime,
		StorageKey: in.StorageKey,
		SourceURL:  in.SourceURL,
	})
	if err != nil {
		if errors.Is(err, files.ErrInsufficientQuota) {
			remaining := in.Identity.RemainingQuotaBytes
			var qe *files.QuotaError
			if errors.As(err, &qe) {
				remaining = qe.Remaining
			}
			return users.Identity{}, files.Artifact{}, transfer.SizeExceeded(transfer.LimitQuota, in.SizeBytes, remaining)
		}
		return users.Identity{}, files.Artifact{}, transfer.StorageFailed(fmt.Errorf("commit quota: %w", err))
	}
	return identity, artifact, nil
}

// Lock serializes postcheck and commit for one identity. Call the returned
// function to unlock.
func (g *Guard) Lock(identityKey string) func() {
	return g.locks.lock(identityKey)
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			k.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
