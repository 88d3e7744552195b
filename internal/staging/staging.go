// Package staging allocates temporary files for in-flight transfers and
// guarantees their removal, including any siblings an external tool wrote
// next to them (base.mp4, base.part, base.webm.ytdl, ...).
package staging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/memohai/stowbot/internal/transfer"
)

const filePrefix = "stage-"

// Area is a directory dedicated to staging files.
type Area struct {
	dir    string
	logger *slog.Logger
}

// NewArea creates dir when missing.
func NewArea(log *slog.Logger, dir string) (*Area, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, transfer.TempResourceFailed(fmt.Errorf("resolve staging dir: %w", err))
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, transfer.TempResourceFailed(fmt.Errorf("create staging dir: %w", err))
	}
	return &Area{dir: abs, logger: log.With(slog.String("service", "staging"))}, nil
}

func (a *Area) Dir() string { return a.dir }

// Allocate reserves a unique base path. The base file exists and is empty.
func (a *Area) Allocate() (*Resource, error) {
	f, err := os.CreateTemp(a.dir, filePrefix+"*")
	if err != nil {
		return nil, transfer.TempResourceFailed(fmt.Errorf("allocate staging file: %w", err))
	}
	base := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(base)
		return nil, transfer.TempResourceFailed(fmt.Errorf("close staging file: %w", err))
	}
	return &Resource{base: base, logger: a.logger}, nil
}

// Purge removes staging files last modified before cutoff and returns how
// many were removed. It reclaims space left by crashed runs.
func (a *Area) Purge(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, transfer.TempResourceFailed(fmt.Errorf("read staging dir: %w", err))
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Resource is one allocated base path plus whatever siblings appear next to it.
type Resource struct {
	base   string
	logger *slog.Logger
}

// Base is the allocated path; tools may write base.<ext> alongside it.
func (r *Resource) Base() string { return r.base }

// Create truncates and opens the base file for writing.
func (r *Resource) Create() (*os.File, error) {
	f, err := os.Create(r.base)
	if err != nil {
		return nil, transfer.TempResourceFailed(fmt.Errorf("open staging file: %w", err))
	}
	return f, nil
}

// WriteFrom copies at most limit+1 bytes of src into the base file and
// returns the number written. limit <= 0 disables the bound.
func (r *Resource) WriteFrom(src io.Reader, limit int64) (int64, error) {
	f, err := r.Create()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if limit > 0 {
		src = &io.LimitedReader{R: src, N: limit + 1}
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return n, transfer.TransferFailed(fmt.Errorf("write staging file: %w", err))
	}
	if err := f.Sync(); err != nil {
		return n, transfer.TempResourceFailed(fmt.Errorf("sync staging file: %w", err))
	}
	return n, nil
}

// siblings lists base and every base.* file next to it.
func (r *Resource) siblings() ([]string, error) {
	dir, name := filepath.Split(r.base)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || (e.Name() != name && !strings.HasPrefix(e.Name(), name+".")) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// Largest picks the biggest file among base and its siblings. Tools such as
// the media extractor leave the empty base behind and write base.<ext>.
func (r *Resource) Largest() (string, int64, error) {
	paths, err := r.siblings()
	if err != nil {
		return "", 0, transfer.TempResourceFailed(fmt.Errorf("list staging files: %w", err))
	}
	best, bestSize := "", int64(-1)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = p, info.Size()
		}
	}
	if best == "" {
		return "", 0, transfer.TransferFailed(errors.New("no staged file produced"))
	}
	return best, bestSize, nil
}

// Reset removes every sibling but leaves base allocated, so a retried
// transfer does not pick up partial output of the previous attempt.
func (r *Resource) Reset() error {
	paths, err := r.siblings()
	if err != nil {
		return transfer.TempResourceFailed(fmt.Errorf("list staging files: %w", err))
	}
	var errs []error
	for _, p := range paths {
		if p == r.base {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return transfer.TempResourceFailed(errors.Join(errs...))
	}
	if err := os.Truncate(r.base, 0); err != nil {
		return transfer.TempResourceFailed(fmt.Errorf("truncate staging file: %w", err))
	}
	return nil
}

// Cleanup removes base and all siblings. It is safe to call more than once.
func (r *Resource) Cleanup() error {
	paths, err := r.siblings()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return transfer.TempResourceFailed(fmt.Errorf("list staging files: %w", err))
	}
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return transfer.TempResourceFailed(errors.Join(errs...))
	}
	r.logger.Debug("staging cleaned", slog.String("base", filepath.Base(r.base)), slog.Int("files", len(paths)))
	return nil
}
