// Package transfer holds the request, source and error types shared by every
// stage of the download pipeline.
package transfer

import (
	"errors"
	"fmt"
)

// Kind classifies why a transfer stopped.
type Kind string

const (
	KindRateLimited        Kind = "rate_limited"
	KindBusy               Kind = "busy"
	KindSizeExceeded       Kind = "size_exceeded"
	KindExtractionFailed   Kind = "extraction_failed"
	KindTransferFailed     Kind = "transfer_failed"
	KindStorageFailed      Kind = "storage_failed"
	KindTempResourceFailed Kind = "temp_resource_failed"
)

// Limit names the bound a SizeExceeded error tripped.
type Limit string

const (
	LimitQuota   Limit = "quota"
	LimitCeiling Limit = "ceiling"
)

// Error is the single error type surfaced by the pipeline. Only the fields
// relevant to Kind are populated.
type Error struct {
	Kind Kind

	// SizeExceeded
	Limit      Limit
	Size       int64
	LimitBytes int64

	// ExtractionFailed
	BotDetected bool

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSizeExceeded:
		return fmt.Sprintf("%s: %d bytes over %s limit of %d bytes", e.Kind, e.Size, e.Limit, e.LimitBytes)
	case KindExtractionFailed:
		if e.BotDetected {
			return fmt.Sprintf("%s (bot detection): %v", e.Kind, e.Err)
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindBusy}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not a transfer error.
func KindOf(err error) Kind {
	if te, ok := AsError(err); ok {
		return te.Kind
	}
	return ""
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited}
}

func Busy() *Error {
	return &Error{Kind: KindBusy}
}

func SizeExceeded(limit Limit, size, limitBytes int64) *Error {
	return &Error{Kind: KindSizeExceeded, Limit: limit, Size: size, LimitBytes: limitBytes}
}

func ExtractionFailed(err error, botDetected bool) *Error {
	return &Error{Kind: KindExtractionFailed, Err: err, BotDetected: botDetected}
}

func TransferFailed(err error) *Error {
	return &Error{Kind: KindTransferFailed, Err: err}
}

func StorageFailed(err error) *Error {
	return &Error{Kind: KindStorageFailed, Err: err}
}

func TempResourceFailed(err error) *Error {
	return &Error{Kind: KindTempResourceFailed, Err: err}
}
