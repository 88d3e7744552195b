// Package pipeline drives a transfer from the first chat request to a stored,
// charged artifact: rate limiting, size checks, format choice, admission,
// staging and finalization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/memohai/stowbot/internal/admission"
	"github.com/memohai/stowbot/internal/extractor"
	"github.com/memohai/stowbot/internal/finalize"
	"github.com/memohai/stowbot/internal/formats"
	"github.com/memohai/stowbot/internal/ratelimit"
	"github.com/memohai/stowbot/internal/staging"
	"github.com/memohai/stowbot/internal/transfer"
	"github.com/memohai/stowbot/internal/users"
)

var (
	// ErrSessionNotFound is returned for unknown, consumed or expired sessions.
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrFormatNotOffered is returned when a choice names a tier the offer did not contain.
	ErrFormatNotOffered = errors.New("format not offered")
	// ErrInvalidSource is returned for a nil or malformed source.
	ErrInvalidSource = errors.New("invalid transfer source")
)

// Identities loads and refreshes chat identities.
type Identities interface {
	GetOrCreate(ctx context.Context, p users.Profile) (users.Identity, error)
	Get(ctx context.Context, key string) (users.Identity, error)
}

// Guard checks sizes against an identity's limits. quota.Guard implements it.
type Guard interface {
	Ceiling(identity users.Identity) int64
	Precheck(identity users.Identity, estimated int64) error
	Postcheck(identity users.Identity, actual int64) error
	Lock(identityKey string) func()
}

// Finalizer persists and charges a validated payload.
type Finalizer interface {
	Persist(ctx context.Context, identity users.Identity, staged finalize.Staged) (finalize.Outcome, error)
}

// DirectFetcher streams a file hosted by the chat platform.
type DirectFetcher interface {
	Open(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Limiter    ratelimit.Limiter
	Identities Identities
	Guard      Guard
	Admission  *admission.Controller
	Extractor  extractor.Extractor
	Direct     DirectFetcher
	Staging    *staging.Area
	Finalizer  Finalizer
}

// Options bound the slow steps.
type Options struct {
	TransferTimeout   time.Duration
	ProbeTimeout      time.Duration
	MaxBytesPerSecond int64
}

// SubmitInput is a new request from the chat front end. Source is either a
// transfer.DirectSource or a transfer.RemoteSource carrying only its URL.
type SubmitInput struct {
	Profile users.Profile
	Source  transfer.Source
}

// Offer is a pending confirmation. The caller shows it to the user and later
// passes SessionID to Start or Cancel.
type Offer struct {
	SessionID string
	Identity  users.Identity
	Request   transfer.Request
	// Selection is empty for direct sources.
	Selection formats.Selection
	ExpiresAt time.Time
}

// Choice picks what to transfer for a session. It is ignored for direct sources.
type Choice struct {
	FormatID  string
	AudioOnly bool
}

type pending struct {
	request  transfer.Request
	identity users.Identity
}

// Stats is a snapshot of the admission state.
type Stats struct {
	InFlight int `json:"in_flight"`
	Capacity int `json:"capacity"`
	Pending  int `json:"pending"`
}

type Service struct {
	deps   Deps
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

func NewService(log *slog.Logger, deps Deps, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		logger: log.With(slog.String("service", "pipeline")),
	}
}

// Submit admits a new request and parks it as a session holding a transfer
// slot. For remote sources the media page is probed and its tiers returned.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Offer, error) {
	req := transfer.Request{
		ID:          transfer.NewID(),
		IdentityKey: strings.TrimSpace(in.Profile.Key),
		Source:      in.Source,
		CreatedAt:   s.now(),
	}
	s.report(ctx, req, StateRequested, nil)

	offer, err := s.submit(ctx, &req, in.Profile)
	if err != nil {
		s.fail(ctx, req, err)
		return Offer{}, err
	}
	s.report(ctx, req, StateAdmitted, nil)
	return offer, nil
}

func (s *Service) submit(ctx context.Context, req *transfer.Request, profile users.Profile) (Offer, error) {
	if req.IdentityKey == "" || req.Source == nil {
		return Offer{}, ErrInvalidSource
	}
	if err := s.admit(ctx, req.IdentityKey, req.CreatedAt); err != nil {
		return Offer{}, err
	}

	identity, err := s.deps.Identities.GetOrCreate(ctx, profile)
	if err != nil {
		return Offer{}, transfer.StorageFailed(fmt.Errorf("load identity: %w", err))
	}

	var selection formats.Selection
	switch src := req.Source.(type) {
	case transfer.DirectSource:
		if strings.TrimSpace(src.FileID) == "" {
			return Offer{}, ErrInvalidSource
		}
		req.DeclaredSize = src.Size
		if err := s.deps.Guard.Precheck(identity, src.Size); err != nil {
			return Offer{}, err
		}
	case transfer.RemoteSource:
		resolved, err := s.probe(ctx, src.URL)
		if err != nil {
			return Offer{}, err
		}
		req.Source = resolved
		selection = resolved.Selection
	default:
		return Offer{}, ErrInvalidSource
	}
	s.report(ctx, *req, StateSizeChecked, nil)

	tok, err := s.deps.Admission.TryReserve()
	if err != nil {
		return Offer{}, err
	}
	sess := s.deps.Admission.Register(req.ID, tok, &pending{request: *req, identity: identity})

	s.logger.Info("request admitted",
		slog.String("request", req.ID),
		slog.String("identity", req.IdentityKey),
		slog.String("source", req.Source.DisplayName()),
		slog.Int("in_flight", s.deps.Admission.InFlight()),
	)
	return Offer{
		SessionID: sess.ID,
		Identity:  identity,
		Request:   *req,
		Selection: selection,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// admit fails open when the limiter backend is unreachable.
func (s *Service) admit(ctx context.Context, key string, now time.Time) error {
	if s.deps.Limiter == nil {
		return nil
	}
	ok, err := s.deps.Limiter.Admit(ctx, key, now)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", slog.String("identity", key), slog.Any("error", err))
		return nil
	}
	if !ok {
		return transfer.RateLimited()
	}
	return nil
}

func (s *Service) probe(ctx context.Context, url string) (transfer.RemoteSource, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return transfer.RemoteSource{}, ErrInvalidSource
	}
	if s.deps.Extractor == nil {
		return transfer.RemoteSource{}, transfer.ExtractionFailed(errors.New("extractor not configured"), false)
	}
	pctx, cancel := withTimeout(ctx, s.opts.ProbeTimeout)
	defer cancel()

	catalog, err := s.deps.Extractor.Probe(pctx, url)
	if err != nil {
		return transfer.RemoteSource{}, transfer.ExtractionFailed(err, extractor.BotDetected(err))
	}
	selection := formats.Select(catalog.Formats)
	if len(selection.Video) == 0 {
		return transfer.RemoteSource{}, transfer.ExtractionFailed(errors.New("no downloadable formats"), false)
	}
	return transfer.RemoteSource{
		URL:       url,
		MediaID:   catalog.ID,
		Title:     catalog.Title,
		Uploader:  catalog.Uploader,
		Duration:  catalog.Duration,
		Selection: selection,
	}, nil
}

// Start runs the session's transfer to completion. The session is consumed
// whatever the outcome; staging is cleaned up and then the slot released on
// every exit.
func (s *Service) Start(ctx context.Context, sessionID string, choice Choice) (finalize.Outcome, error) {
	sess, ok := s.deps.Admission.Consume(sessionID)
	if !ok {
		return finalize.Outcome{}, ErrSessionNotFound
	}
	defer s.deps.Admission.Release(sess.Token)

	p, ok := sess.Payload.(*pending)
	if !ok {
		return finalize.Outcome{}, ErrSessionNotFound
	}
	out, err := s.run(ctx, p, choice)
	if err != nil {
		s.fail(ctx, p.request, err)
		return finalize.Outcome{}, err
	}
	s.report(ctx, p.request, StatePersisted, nil)
	return out, nil
}

type plan struct {
	estimate  int64
	name      string
	mime      string
	sourceURL string
	chain     formats.Chain
	direct    *transfer.DirectSource
}

func (s *Service) plan(p *pending, choice Choice) (plan, error) {
	switch src := p.request.Source.(type) {
	case transfer.DirectSource:
		return plan{estimate: src.Size, name: src.DisplayName(), mime: src.Mime, direct: &src}, nil
	case transfer.RemoteSource:
		var (
			tier formats.Tier
			ok   bool
		)
		if choice.AudioOnly {
			tier, ok = src.Selection.Audio, true
		} else {
			tier, ok = src.Selection.Lookup(choice.FormatID)
		}
		if !ok || len(tier.Candidate.Chain) == 0 {
			return plan{}, fmt.Errorf("%w: %q", ErrFormatNotOffered, choice.FormatID)
		}
		return plan{
			estimate:  tier.Candidate.EstimatedSize,
			name:      src.FileStem(),
			sourceURL: src.URL,
			chain:     tier.Candidate.Chain,
		}, nil
	default:
		return plan{}, ErrInvalidSource
	}
}

func (s *Service) run(ctx context.Context, p *pending, choice Choice) (finalize.Outcome, error) {
	req := p.request
	pl, err := s.plan(p, choice)
	if err != nil {
		return finalize.Outcome{}, err
	}

	identity, err := s.reload(ctx, p.identity)
	if err != nil {
		return finalize.Outcome{}, err
	}
	if err := s.deps.Guard.Precheck(identity, pl.estimate); err != nil {
		return finalize.Outcome{}, err
	}

	res, err := s.deps.Staging.Allocate()
	if err != nil {
		return finalize.Outcome{}, err
	}
	defer func() {
		if cerr := res.Cleanup(); cerr != nil {
			s.logger.Warn("staging cleanup failed", slog.String("request", req.ID), slog.Any("error", cerr))
		}
	}()

	s.report(ctx, req, StateStaging, nil)
	if pl.direct != nil {
		err = s.stageDirect(ctx, res, *pl.direct, s.deps.Guard.Ceiling(identity))
	} else {
		err = s.stageRemote(ctx, req, res, pl)
	}
	if err != nil {
		return finalize.Outcome{}, err
	}

	path, size, err := res.Largest()
	if err != nil {
		return finalize.Outcome{}, err
	}
	if size == 0 {
		return finalize.Outcome{}, transfer.TransferFailed(errors.New("transfer produced an empty file"))
	}

	unlock := s.deps.Guard.Lock(identity.Key)
	defer unlock()

	identity, err = s.reload(ctx, identity)
	if err != nil {
		return finalize.Outcome{}, err
	}
	if err := s.deps.Guard.Postcheck(identity, size); err != nil {
		return finalize.Outcome{}, err
	}
	s.report(ctx, req, StateValidated, nil)

	name := pl.name
	if pl.direct == nil {
		name = strings.TrimSpace(name) + filepath.Ext(path)
	}
	return s.deps.Finalizer.Persist(ctx, identity, finalize.Staged{
		Path:      path,
		Size:      size,
		Name:      name,
		Mime:      pl.mime,
		SourceURL: pl.sourceURL,
	})
}

func (s *Service) reload(ctx context.Context, identity users.Identity) (users.Identity, error) {
	fresh, err := s.deps.Identities.Get(ctx, identity.Key)
	if err != nil {
		return users.Identity{}, transfer.StorageFailed(fmt.Errorf("reload identity: %w", err))
	}
	return fresh, nil
}

// stageDirect streams a chat-hosted file into res. The copy stops one byte
// past the ceiling so an oversized payload fails postcheck without being
// read in full.
func (s *Service) stageDirect(ctx context.Context, res *staging.Resource, src transfer.DirectSource, ceiling int64) error {
	if s.deps.Direct == nil {
		return transfer.TransferFailed(errors.New("direct fetcher not configured"))
	}
	tctx, cancel := withTimeout(ctx, s.opts.TransferTimeout)
	defer cancel()

	body, err := s.deps.Direct.Open(tctx, src.FileID)
	if err != nil {
		return transfer.TransferFailed(fmt.Errorf("open %s: %w", src.DisplayName(), err))
	}
	defer func() { _ = body.Close() }()

	_, err = res.WriteFrom(newThrottledReader(tctx, body, s.opts.MaxBytesPerSecond), ceiling)
	return err
}

// stageRemote walks the fallback chain, one attempt per step.
func (s *Service) stageRemote(ctx context.Context, req transfer.Request, res *staging.Resource, pl plan) error {
	if s.deps.Extractor == nil {
		return transfer.TransferFailed(errors.New("extractor not configured"))
	}
	tctx, cancel := withTimeout(ctx, s.opts.TransferTimeout)
	defer cancel()

	var lastErr error
	for i, step := range pl.chain {
		if i > 0 {
			if err := res.Reset(); err != nil {
				return err
			}
		}
		s.reportStep(ctx, req, i+1, len(pl.chain))
		err := s.deps.Extractor.Fetch(tctx, pl.sourceURL, step, res.Base())
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Warn("fetch step failed",
			slog.String("request", req.ID),
			slog.String("selector", step.Selector),
			slog.Int("step", i+1),
			slog.Int("steps", len(pl.chain)),
			slog.Any("error", err),
		)
		if tctx.Err() != nil {
			break
		}
	}
	te := transfer.TransferFailed(fmt.Errorf("fallback chain %q exhausted: %w", pl.chain.String(), lastErr))
	te.BotDetected = extractor.BotDetected(lastErr)
	return te
}

// Cancel drops a pending session and frees its slot.
func (s *Service) Cancel(sessionID string) bool {
	ok := s.deps.Admission.Cancel(sessionID)
	if ok {
		s.logger.Info("session cancelled", slog.String("session", sessionID))
	}
	return ok
}

// Pending returns the offer still parked under sessionID.
func (s *Service) Pending(sessionID string) (transfer.Request, bool) {
	sess, ok := s.deps.Admission.Peek(sessionID)
	if !ok {
		return transfer.Request{}, false
	}
	p, ok := sess.Payload.(*pending)
	if !ok {
		return transfer.Request{}, false
	}
	return p.request, true
}

func (s *Service) Stats() Stats {
	return Stats{
		InFlight: s.deps.Admission.InFlight(),
		Capacity: s.deps.Admission.Capacity(),
		Pending:  s.deps.Admission.Pending(),
	}
}

func (s *Service) fail(ctx context.Context, req transfer.Request, err error) {
	state := StateStorageFailed
	if te, ok := transfer.AsError(err); ok {
		state = stateFor(te.Kind)
	}
	level := slog.LevelWarn
	if state == StateRateLimited || state == StateBusy || state == StateSizeExceeded {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "request stopped",
		slog.String("request", req.ID),
		slog.String("identity", req.IdentityKey),
		slog.String("state", string(state)),
		slog.Any("error", err),
	)
	s.report(ctx, req, state, err)
}

func (s *Service) report(ctx context.Context, req transfer.Request, state State, err error) {
	if r := reporterFrom(ctx); r != nil {
		r.Transition(ctx, Event{RequestID: req.ID, IdentityKey: req.IdentityKey, State: state, Err: err})
	}
}

func (s *Service) reportStep(ctx context.Context, req transfer.Request, step, steps int) {
	if r := reporterFrom(ctx); r != nil {
		r.Transition(ctx, Event{RequestID: req.ID, IdentityKey: req.IdentityKey, State: StateStaging, Step: step, Steps: steps})
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
