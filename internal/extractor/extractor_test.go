package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/stowbot/internal/formats"
)

type recordedCall struct {
	name string
	args []string
}

func fakeRunner(out string, err error, calls *[]recordedCall) Runner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name: name, args: append([]string(nil), args...)})
		return []byte(out), err
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want bool
	}{
		{"ERROR: Sign in to confirm you're not a bot", true},
		{"HTTP Error 429: Too Many Requests", true},
		{"Use --cookies-from-browser for authentication", true},
		{"The uploader is blocking this region", true},
		{"ERROR: Unsupported URL: https://example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.msg), tt.msg)
	}
}

func TestProbeDecodesCatalog(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	out := `{"id":"abc","title":"Clip","uploader":"someone","duration":12.5,
	  "formats":[{"format_id":"22","url":"https://cdn/x","ext":"mp4","vcodec":"avc1","height":720,"filesize":1000}]}`
	y := NewYTDLP(nil, Options{Binary: "ytdl", UserAgent: "UA/1", Runner: fakeRunner(out, nil, &calls)})

	cat, err := y.Probe(context.Background(), "https://example.com/watch")
	require.NoError(t, err)
	assert.Equal(t, "Clip", cat.Title)
	assert.Equal(t, "https://example.com/watch", cat.WebpageURL)
	require.Len(t, cat.Formats, 1)
	assert.Equal(t, int64(1000), cat.Formats[0].Size())

	require.Len(t, calls, 1)
	assert.Equal(t, "ytdl", calls[0].name)
	args := strings.Join(calls[0].args, " ")
	assert.Contains(t, args, "-J")
	assert.Contains(t, args, "--no-playlist")
	assert.Contains(t, args, "--user-agent UA/1")
	assert.Equal(t, "https://example.com/watch", calls[0].args[len(calls[0].args)-1])
}

func TestProbeClassifiesBotFailures(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	runErr := &exitError{err: errors.New("exit status 1"), stderr: "ERROR: Sign in to confirm you're not a bot"}
	y := NewYTDLP(nil, Options{Runner: fakeRunner("", runErr, &calls)})

	_, err := y.Probe(context.Background(), "https://example.com/watch")
	require.Error(t, err)
	assert.True(t, BotDetected(err))

	runErr = &exitError{err: errors.New("exit status 1"), stderr: "ERROR: Unsupported URL"}
	y = NewYTDLP(nil, Options{Runner: fakeRunner("", runErr, &calls)})
	_, err = y.Probe(context.Background(), "https://example.com/watch")
	require.Error(t, err)
	assert.False(t, BotDetected(err))
}

func TestProbeRejectsGarbage(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	y := NewYTDLP(nil, Options{Runner: fakeRunner("not json", nil, &calls)})
	_, err := y.Probe(context.Background(), "https://example.com/watch")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "probe", e.Op)
}

func TestFetchArguments(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	y := NewYTDLP(nil, Options{Runner: fakeRunner("", nil, &calls)})

	require.NoError(t, y.Fetch(context.Background(), "https://example.com/v", formats.Step{Selector: "137"}, "/tmp/stage-1"))
	require.NoError(t, y.Fetch(context.Background(), "https://example.com/v", formats.Step{Selector: "bestaudio", ExtractAudio: true}, "/tmp/stage-2"))
	require.Len(t, calls, 2)

	video := strings.Join(calls[0].args, " ")
	assert.Contains(t, video, "-f 137")
	assert.Contains(t, video, "-o /tmp/stage-1.%(ext)s")
	assert.NotContains(t, video, "--audio-format")

	audio := strings.Join(calls[1].args, " ")
	assert.Contains(t, audio, "-f bestaudio")
	assert.Contains(t, audio, "-x --audio-format mp3 --audio-quality 192K")
}

func TestFetchKeepsContextErrors(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	y := NewYTDLP(nil, Options{Runner: fakeRunner("", context.DeadlineExceeded, &calls)})
	err := y.Fetch(context.Background(), "https://example.com/v", formats.Step{Selector: "best"}, "/tmp/x")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, BotDetected(err))
}

func TestLastLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ERROR: boom", lastLine("[info] a\nERROR: boom\n\n"))
	assert.Equal(t, "", lastLine("   "))
}
