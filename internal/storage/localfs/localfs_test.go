package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/stowbot/internal/storage"
)

func TestPutAccessDelete(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)
	ctx := context.Background()
	key := "files/abc/my clip.mp4"

	require.NoError(t, s.Put(ctx, key, strings.NewReader("payload"), 7, "video/mp4"))
	data, err := os.ReadFile(filepath.Join(s.Root(), "files", "abc", "my clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	link, err := s.AccessURL(ctx, key, "my clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/files/abc/my%20clip.mp4", link)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.AccessURL(ctx, key, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, s.Delete(ctx, key))
}

func TestRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), "http://x")
	require.NoError(t, err)
	err = s.Put(context.Background(), "../../outside", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}

func TestNewRequiresRoot(t *testing.T) {
	t.Parallel()

	_, err := New(" ", "http://x")
	assert.Error(t, err)
}
