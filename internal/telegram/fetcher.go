package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fileGetter interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// FileFetcher streams documents users sent to the bot.
type FileFetcher struct {
	api          fileGetter
	token        string
	fileEndpoint string
	client       *http.Client
}

// NewFileFetcher resolves files through api. fileEndpoint is a format string
// taking the token and the file path; empty means the public Bot API.
func NewFileFetcher(api fileGetter, token, fileEndpoint string) *FileFetcher {
	if strings.TrimSpace(fileEndpoint) == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}
	return &FileFetcher{
		api:          api,
		token:        token,
		fileEndpoint: fileEndpoint,
		client:       &http.Client{},
	}
}

// Open returns the file body. A local Bot API server started with --local
// reports absolute paths on its own disk, which are read directly.
func (f *FileFetcher) Open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	file, err := f.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return nil, errors.New("file path is empty")
	}
	if filepath.IsAbs(file.FilePath) {
		fh, err := os.Open(file.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open local file: %w", err)
		}
		return fh, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(f.fileEndpoint, f.token, file.FilePath), nil)
	if err != nil {
		return nil, fmt.Errorf("build file request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// fileEndpointFor derives the file download endpoint from a Bot API endpoint
// of the form "http://host/bot%s/%s".
func fileEndpointFor(apiEndpoint string) string {
	apiEndpoint = strings.TrimSpace(apiEndpoint)
	if apiEndpoint == "" {
		return tgbotapi.FileEndpoint
	}
	if i := strings.LastIndex(apiEndpoint, "/bot%s/%s"); i >= 0 {
		return apiEndpoint[:i] + "/file/bot%s/%s"
	}
	return tgbotapi.FileEndpoint
}
