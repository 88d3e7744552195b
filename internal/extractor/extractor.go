// Package extractor probes remote media pages and fetches a chosen variant
// through the yt-dlp command line tool.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/memohai/stowbot/internal/formats"
)

// Extractor is the remote media collaborator.
type Extractor interface {
	// Probe returns the catalog of variants available at url.
	Probe(ctx context.Context, url string) (formats.Catalog, error)
	// Fetch downloads url using step into destBase.<ext>.
	Fetch(ctx context.Context, url string, step formats.Step, destBase string) error
}

// Error carries the tool's diagnostic output.
type Error struct {
	Op          string
	Message     string
	BotDetected bool
	Err         error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

var botSignatures = []string{"sign in", "bot", "cookies", "blocking", "429", "too many requests"}

// Classify reports whether msg looks like anti-automation pushback from the remote site.
func Classify(msg string) bool {
	lower := strings.ToLower(msg)
	for _, sig := range botSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// BotDetected reports whether err carries an anti-automation classification.
func BotDetected(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.BotDetected
	}
	return false
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configure YTDLP.
type Options struct {
	Binary    string
	UserAgent string
	ExtraArgs []string
	Runner    Runner
}

// YTDLP implements Extractor with the yt-dlp binary.
type YTDLP struct {
	binary    string
	userAgent string
	extraArgs []string
	run       Runner
	logger    *slog.Logger
}

var _ Extractor = (*YTDLP)(nil)

func NewYTDLP(log *slog.Logger, opts Options) *YTDLP {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.Runner == nil {
		opts.Runner = execRunner
	}
	return &YTDLP{
		binary:    opts.Binary,
		userAgent: opts.UserAgent,
		extraArgs: opts.ExtraArgs,
		run:       opts.Runner,
		logger:    log.With(slog.String("service", "extractor")),
	}
}

func (y *YTDLP) commonArgs() []string {
	args := []string{"--no-playlist", "--no-warnings", "--quiet"}
	if y.userAgent != "" {
		args = append(args,
			"--user-agent", y.userAgent,
			"--add-header", "Accept-Language:en-US,en;q=0.9",
		)
	}
	return append(args, y.extraArgs...)
}

func (y *YTDLP) Probe(ctx context.Context, url string) (formats.Catalog, error) {
	args := append([]string{"-J"}, y.commonArgs()...)
	args = append(args, "--", url)

	out, err := y.run(ctx, y.binary, args...)
	if err != nil {
		return formats.Catalog{}, wrap("probe", err)
	}
	var catalog formats.Catalog
	if err := json.Unmarshal(out, &catalog); err != nil {
		return formats.Catalog{}, &Error{Op: "probe", Message: "decode catalog", Err: err}
	}
	if catalog.WebpageURL == "" {
		catalog.WebpageURL = url
	}
	y.logger.Debug("probed", slog.String("url", url), slog.Int("formats", len(catalog.Formats)))
	return catalog, nil
}

func (y *YTDLP) Fetch(ctx context.Context, url string, step formats.Step, destBase string) error {
	args := append([]string{
		"-f", step.Selector,
		"-o", destBase + ".%(ext)s",
		"--no-part",
		"--no-mtime",
	}, y.commonArgs()...)
	if step.ExtractAudio {
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", "192K")
	}
	args = append(args, "--", url)

	y.logger.Info("fetch", slog.String("url", url), slog.String("selector", step.Selector), slog.Bool("audio", step.ExtractAudio))
	if _, err := y.run(ctx, y.binary, args...); err != nil {
		return wrap("fetch "+step.Selector, err)
	}
	return nil
}

func wrap(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Op: op, Err: err}
	}
	msg := err.Error()
	var ee *exitError
	if errors.As(err, &ee) && ee.stderr != "" {
		msg = ee.stderr
	}
	return &Error{Op: op, Message: msg, BotDetected: Classify(msg), Err: err}
}

type exitError struct {
	err    error
	stderr string
}

func (e *exitError) Error() string {
	if e.stderr != "" {
		return fmt.Sprintf("%v: %s", e.err, e.stderr)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &exitError{err: err, stderr: lastLine(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// lastLine keeps the final non-empty line, which is where yt-dlp puts "ERROR: ...".
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
