package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResetter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeResetter) ResetDailyQuotas(context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func TestAddValidatesPattern(t *testing.T) {
	svc := NewService(nil)
	err := svc.Add(Job{Name: "bad", Pattern: "not a cron", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
	assert.Error(t, svc.Add(Job{Name: "", Pattern: "@daily", Run: func(context.Context) error { return nil }}))
	assert.Error(t, svc.Add(Job{Name: "x", Pattern: "@daily"}))
	assert.Empty(t, svc.Entries())
}

func TestTriggerRunsJob(t *testing.T) {
	svc := NewService(nil)
	r := &fakeResetter{}
	require.NoError(t, svc.Add(QuotaReset("0 0 * * *", r)))

	require.NoError(t, svc.Trigger(context.Background(), QuotaResetJob))
	assert.Equal(t, int32(1), r.calls.Load())

	r.err = errors.New("db down")
	err := svc.Trigger(context.Background(), QuotaResetJob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), QuotaResetJob)

	assert.ErrorIs(t, svc.Trigger(context.Background(), "missing"), ErrJobNotFound)
}

func TestAddReplacesAndRemove(t *testing.T) {
	svc := NewService(nil)
	noop := func(context.Context) error { return nil }
	require.NoError(t, svc.Add(Job{Name: "a", Pattern: "@hourly", Run: noop}))
	require.NoError(t, svc.Add(Job{Name: "a", Pattern: "@every 1m", Run: noop}))
	require.NoError(t, svc.Add(Job{Name: "b", Pattern: "*/5 * * * * *", Run: noop}))

	entries := svc.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "@every 1m", entries[0].Pattern)

	svc.Remove("a")
	assert.Len(t, svc.Entries(), 1)
}

func TestScheduledJobFires(t *testing.T) {
	svc := NewService(nil)
	fired := make(chan struct{}, 1)
	require.NoError(t, svc.Add(Job{Name: "tick", Pattern: "@every 1s", Run: func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}}))
	svc.Start()
	defer func() { _ = svc.Stop(context.Background()) }()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire")
	}
}
