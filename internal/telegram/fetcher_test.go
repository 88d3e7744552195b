package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFiles struct {
	path string
}

func (s stubFiles) GetFile(cfg tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{FileID: cfg.FileID, FilePath: s.path}, nil
}

func TestFileFetcherDownloadsOverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/botTOKEN/documents/file_1.pdf" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "pdf-bytes")
	}))
	defer srv.Close()

	f := NewFileFetcher(stubFiles{path: "documents/file_1.pdf"}, "TOKEN", fileEndpointFor(srv.URL+"/bot%s/%s"))
	body, err := f.Open(context.Background(), "F1")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	f = NewFileFetcher(stubFiles{path: "documents/missing.pdf"}, "TOKEN", fileEndpointFor(srv.URL+"/bot%s/%s"))
	_, err = f.Open(context.Background(), "F2")
	assert.Error(t, err)
}

func TestFileFetcherReadsLocalServerPaths(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "file_9.bin")
	require.NoError(t, os.WriteFile(p, []byte("local"), 0o600))

	f := NewFileFetcher(stubFiles{path: p}, "TOKEN", "")
	body, err := f.Open(context.Background(), "F9")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestFileEndpointFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, tgbotapi.FileEndpoint, fileEndpointFor(""))
	assert.Equal(t, "http://tg-api:8081/file/bot%s/%s", fileEndpointFor("http://tg-api:8081/bot%s/%s"))
	assert.Equal(t, tgbotapi.FileEndpoint, fileEndpointFor("http://odd-endpoint"))
}
