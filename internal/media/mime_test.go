package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeFromExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".mp4", "video/mp4"},
		{"MP3", "audio/mpeg"},
		{".JPEG", "image/jpeg"},
		{".xyz", DefaultMime},
		{"", DefaultMime},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MimeFromExtension(tt.ext), tt.ext)
	}
}

func TestExtensionFromMime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".mp3", ExtensionFromMime("audio/mpeg"))
	assert.Equal(t, ".txt", ExtensionFromMime("text/plain; charset=utf-8"))
	assert.Equal(t, "", ExtensionFromMime("application/x-unknown"))
}

func TestTypeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, MediaTypeVideo, TypeOf("video/mp4"))
	assert.Equal(t, MediaTypeAudio, TypeOf("Audio/MPEG"))
	assert.Equal(t, MediaTypeImage, TypeOf("image/png"))
	assert.Equal(t, MediaTypeFile, TypeOf("application/pdf"))
	assert.Equal(t, MediaTypeFile, TypeOf(""))
}

func TestDetect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.Equal(t, "video/webm", Detect(filepath.Join(dir, "missing.mp4"), "video/webm"))
	assert.Equal(t, "video/mp4", Detect(filepath.Join(dir, "missing.mp4"), DefaultMime))

	plain := filepath.Join(dir, "noext")
	require.NoError(t, os.WriteFile(plain, []byte("hello world"), 0o600))
	assert.Equal(t, "text/plain; charset=utf-8", Detect(plain, ""))

	assert.Equal(t, DefaultMime, Detect(filepath.Join(dir, "gone"), ""))
}

func TestEnsureExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "clip.mp4", EnsureExtension("clip", "video/mp4"))
	assert.Equal(t, "clip.webm", EnsureExtension("clip.webm", "video/mp4"))
	assert.Equal(t, "clip", EnsureExtension("clip", "application/x-unknown"))
}
