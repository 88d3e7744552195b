package finalize

import (
	"context"
	"errors"

	"github.com/memohai/stowbot/internal/extractor"
	"github.com/memohai/stowbot/internal/transfer"
	"github.com/memohai/stowbot/internal/users"
)

// Failure is a caller-visible report of why a run stopped.
type Failure struct {
	Kind                transfer.Kind
	Limit               transfer.Limit
	Size                int64
	LimitBytes          int64
	BotDetected         bool
	TimedOut            bool
	RemainingQuotaBytes int64
	Cause               string
}

// Describe classifies err. Errors outside the transfer taxonomy are reported
// as storage failures so the caller always gets a kind.
func Describe(err error, identity users.Identity) Failure {
	f := Failure{RemainingQuotaBytes: identity.RemainingQuotaBytes}
	if err == nil {
		return f
	}
	f.TimedOut = errors.Is(err, context.DeadlineExceeded)

	te, ok := transfer.AsError(err)
	if !ok {
		f.Kind = transfer.KindStorageFailed
		f.Cause = err.Error()
		return f
	}
	f.Kind = te.Kind
	f.Limit = te.Limit
	f.Size = te.Size
	f.LimitBytes = te.LimitBytes
	if te.Kind == transfer.KindSizeExceeded && te.Limit == transfer.LimitQuota {
		f.RemainingQuotaBytes = te.LimitBytes
	}
	f.BotDetected = te.BotDetected || extractor.BotDetected(te.Err)
	if te.Err != nil {
		f.Cause = te.Err.Error()
	}
	return f
}

// Retryable reports whether trying the same request again later may succeed.
func (f Failure) Retryable() bool {
	switch f.Kind {
	case transfer.KindRateLimited, transfer.KindBusy, transfer.KindTempResourceFailed, transfer.KindStorageFailed:
		return true
	case transfer.KindTransferFailed, transfer.KindExtractionFailed:
		return !f.BotDetected
	default:
		return false
	}
}
