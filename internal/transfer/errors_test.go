package transfer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"busy", Busy(), KindBusy},
		{"wrapped size", fmt.Errorf("start: %w", SizeExceeded(LimitQuota, 10, 5)), KindSizeExceeded},
		{"storage", StorageFailed(errors.New("s3 down")), KindStorageFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.name)
	}
}

func TestErrorUnwrapAndIs(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := fmt.Errorf("stage: %w", TempResourceFailed(cause))

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &Error{Kind: KindTempResourceFailed})
	assert.NotErrorIs(t, err, &Error{Kind: KindBusy})

	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTempResourceFailed, te.Kind)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "size_exceeded: 60 bytes over quota limit of 50 bytes", SizeExceeded(LimitQuota, 60, 50).Error())
	assert.Equal(t, "rate_limited", RateLimited().Error())
	assert.Contains(t, ExtractionFailed(errors.New("Sign in to confirm"), true).Error(), "bot detection")
}

func TestSources(t *testing.T) {
	t.Parallel()

	var s Source = DirectSource{FileID: "f1", Name: " report.pdf "}
	assert.Equal(t, "report.pdf", s.DisplayName())
	s = DirectSource{FileID: "f1"}
	assert.Equal(t, "f1", s.DisplayName())
	s = RemoteSource{URL: "https://example.com/v"}
	assert.Equal(t, "https://example.com/v", s.DisplayName())
	s = RemoteSource{URL: "https://example.com/v", Title: "Clip"}
	assert.Equal(t, "Clip", s.DisplayName())
}

func TestRemoteFileStem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  RemoteSource
		want string
	}{
		{"title", RemoteSource{URL: "https://example.com/v", Title: " Clip "}, "Clip"},
		{"separators kept as one name", RemoteSource{Title: `AC/DC live \ 1979`}, `AC_DC live _ 1979`},
		{"media id without title", RemoteSource{URL: "https://example.com/watch?v=abc", MediaID: "abc"}, "abc"},
		{"nothing known", RemoteSource{URL: "https://example.com/watch?v=abc"}, "video"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.src.FileStem(), tt.name)
	}
}

func TestNewID(t *testing.T) {
	t.Parallel()

	a, b := NewID(), NewID()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}
