// Package domsnap captures faithful full-page screenshots of live web
// pages. It loads a URL in a real Chrome instance, blocks and removes
// chat and consent widgets, flattens sticky overlays, scrolls lazy
// content into existence, waits for the page to go quiet, and only then
// takes pixels.
package domsnap

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/domsnap/internal/blocklist"
	"github.com/hazyhaar/domsnap/internal/browser"
	"github.com/hazyhaar/domsnap/internal/consent"
	"github.com/hazyhaar/domsnap/internal/idgen"
	"github.com/hazyhaar/domsnap/internal/journal"
	"github.com/hazyhaar/domsnap/internal/prepare"
	"github.com/hazyhaar/domsnap/internal/safety"
	"github.com/hazyhaar/domsnap/internal/sink"
)

// Service owns the browser, the suppression catalogues, the journal,
// and the delivery backends, and runs the capture pipeline.
type Service struct {
	cfg     *Config
	logger  *slog.Logger
	manager *browser.Manager
	filter  *browser.RequestFilter
	clicker *consent.Clicker
	journal *journal.Journal
	sinks   []sink.Sink
	newID   idgen.Generator

	// sem bounds concurrent page handles across all requests.
	sem chan struct{}

	// capture seams, overridden in API tests.
	capture    func(ctx context.Context, req *CaptureRequest) (*CapturedImage, error)
	capturePDF func(ctx context.Context, req *CaptureRequest) ([]byte, error)

	mu     sync.Mutex
	closed bool
}

// New assembles a Service from configuration. Start must be called
// before captures are accepted.
func New(cfg *Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:    cfg,
		logger: logger,
		manager: browser.NewManager(browser.Config{
			RemoteURL:       cfg.Browser.Remote,
			MemoryLimit:     cfg.Browser.MemoryLimit,
			RecycleInterval: cfg.Browser.RecycleInterval,
			NoSandbox:       cfg.Browser.NoSandbox,
			Stealth:         cfg.Browser.Stealth,
			Logger:          logger,
		}),
		newID: idgen.Prefixed("cap_", idgen.UUIDv7()),
		sem:   make(chan struct{}, cfg.Capture.MaxConcurrent),
	}
	s.capture = s.doCapture
	s.capturePDF = s.doCapturePDF

	if cfg.Consent.AutoAccept {
		s.clicker = &consent.Clicker{Rules: cfg.Consent.Rules, Logger: logger}
	}

	s.sinks = append(s.sinks, sink.File{})
	if cfg.Webhook.URL != "" {
		s.sinks = append(s.sinks, sink.NewWebhook(cfg.Webhook.URL,
			sink.WithWebhookRetries(cfg.Webhook.Retries),
			sink.WithWebhookLogger(logger)))
	}

	return s, nil
}

// Start launches the browser, compiles the request filter, and opens
// the journal. Missing blocklists degrade to built-in patterns only.
func (s *Service) Start(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return err
	}

	var matchers []browser.Matcher
	if len(s.cfg.Blocklists) > 0 {
		rules, err := blocklist.NewFetcher(blocklist.WithLogger(s.logger)).Fetch(ctx, s.cfg.Blocklists)
		if err != nil {
			s.logger.Warn("domsnap: blocklists unavailable, using built-in patterns only", "error", err)
		} else {
			matchers = append(matchers, rules)
		}
	}

	filter, err := browser.NewRequestFilter(prepare.NetworkPatterns(), s.logger, matchers...)
	if err != nil {
		return fmt.Errorf("domsnap: compile request filter: %w", err)
	}
	s.filter = filter

	if s.cfg.Journal.Path != "" {
		j, err := journal.Open(s.cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("domsnap: open journal: %w", err)
		}
		s.journal = j
	}

	return nil
}

// Close releases the browser and every backend. Safe to call twice.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	for _, sk := range s.sinks {
		sk.Close()
	}
	if s.journal != nil {
		s.journal.Close()
	}
	return s.manager.Close()
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// checkRequest validates req and applies the service-level guards that
// need configuration or network access: the private-target check and
// output path confinement. A confined output path is resolved in place.
func (s *Service) checkRequest(req *CaptureRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if !s.cfg.Capture.AllowPrivateTargets {
		if err := safety.CheckTargetURL(req.URL); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if req.OutputPath != "" && s.cfg.Capture.OutputDir != "" {
		resolved, err := safety.ConfinePath(s.cfg.Capture.OutputDir, req.OutputPath)
		if err != nil {
			return fmt.Errorf("%w: output_path: %v", ErrInvalidRequest, err)
		}
		req.OutputPath = resolved
	}
	return nil
}

// Capture runs the full pipeline for one request: validate, acquire a
// page, suppress, navigate, prepare, shoot, restore, close.
func (s *Service) Capture(ctx context.Context, req *CaptureRequest) (*CapturedImage, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrClosed
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	return s.capture(ctx, req)
}

// CapturePDF runs the same preparation pipeline but renders the page
// to a PDF document instead of an image.
func (s *Service) CapturePDF(ctx context.Context, req *CaptureRequest) ([]byte, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrClosed
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	return s.capturePDF(ctx, req)
}

// CaptureBatch runs every request independently and reports per-URL
// outcomes; one failed URL never aborts its siblings. Concurrency is
// bounded by the service-wide page cap.
func (s *Service) CaptureBatch(ctx context.Context, reqs []CaptureRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))

	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := reqs[i]
			item := BatchItem{URL: req.URL}
			img, err := s.Capture(ctx, &req)
			if err != nil {
				item.Error = err.Error()
			} else {
				item.Success = true
				item.Data = base64.StdEncoding.EncodeToString(img.Data)
			}
			items[i] = item
		}(i)
	}
	wg.Wait()

	return items
}

// Recent returns the newest journal entries, or an empty slice when the
// journal is disabled.
func (s *Service) Recent(ctx context.Context, limit int) ([]*journal.Entry, error) {
	if s.journal == nil {
		return []*journal.Entry{}, nil
	}
	return s.journal.Recent(ctx, limit)
}
