package domsnap

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/domsnap/internal/browser"
	"github.com/hazyhaar/domsnap/internal/journal"
	"github.com/hazyhaar/domsnap/internal/prepare"
	"github.com/hazyhaar/domsnap/internal/sink"
)

func (s *Service) doCapture(ctx context.Context, req *CaptureRequest) (*CapturedImage, error) {
	start := time.Now()
	w, h := req.viewport()
	entry := &journal.Entry{
		ID:       s.newID(),
		URL:      req.URL,
		Format:   string(req.format()),
		Width:    w,
		Height:   h,
		FullPage: req.IsFullPage(),
	}

	data, overlays, err := s.runPipeline(ctx, req, func(pg *browser.Page) ([]byte, error) {
		return pg.Screenshot(req.IsFullPage(), string(req.format()), req.quality())
	})
	entry.Overlays = overlays
	entry.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		entry.Status = journal.StatusFailed
		entry.Error = err.Error()
		s.record(ctx, entry, nil, "")
		return nil, err
	}

	entry.Status = journal.StatusOK
	entry.ByteSize = len(data)
	s.record(ctx, entry, data, req.OutputPath)
	s.logger.Info("domsnap: captured",
		"capture_id", entry.ID,
		"url", req.URL,
		"format", entry.Format,
		"bytes", entry.ByteSize,
		"overlays", overlays,
		"duration_ms", entry.DurationMs)

	return &CapturedImage{Data: data, Format: req.format()}, nil
}

// record journals the outcome and hands it to every sink. Neither step
// can fail the capture itself; the pixels are already in hand.
func (s *Service) record(ctx context.Context, e *journal.Entry, data []byte, path string) {
	if s.journal != nil {
		if _, err := s.journal.Record(ctx, e); err != nil {
			s.logger.Warn("domsnap: journal write failed", "capture_id", e.ID, "error", err)
		}
	}
	res := &sink.Result{
		ID:         e.ID,
		URL:        e.URL,
		Format:     e.Format,
		Status:     e.Status,
		Error:      e.Error,
		Width:      e.Width,
		Height:     e.Height,
		FullPage:   e.FullPage,
		ByteSize:   e.ByteSize,
		DurationMs: e.DurationMs,
		Path:       path,
		Data:       data,
	}
	for _, sk := range s.sinks {
		if err := sk.Deliver(ctx, res); err != nil {
			s.logger.Warn("domsnap: sink delivery failed", "capture_id", e.ID, "error", err)
		}
	}
}

// runPipeline drives one page through the capture sequence: open,
// intercept, arm suppression, navigate (racing the consent clicker),
// flatten overlays, provoke lazy content, wait for quiescence, shoot.
// The overlay restore runs exactly once before the page closes, and a
// restore failure fails an otherwise successful capture.
func (s *Service) runPipeline(ctx context.Context, req *CaptureRequest, shoot func(pg *browser.Page) ([]byte, error)) (data []byte, overlays int, err error) {
	timeout := req.timeout()
	w, h := req.viewport()

	pg, err := s.manager.OpenPage(ctx, browser.PageOptions{Width: w, Height: h, Timeout: timeout})
	if err != nil {
		return nil, 0, fmt.Errorf("domsnap: open page: %w", err)
	}
	defer pg.Close()

	if s.filter != nil {
		pg.Intercept(s.filter)
	}

	sup := &prepare.Suppressor{Logger: s.logger}
	disposeSuppression, supErr := sup.Arm(pg)
	if supErr != nil {
		s.logger.Warn("domsnap: widget suppression unavailable", "url", req.URL, "error", supErr)
		disposeSuppression = func() {}
	}
	disposed := false
	defer func() {
		if !disposed {
			disposeSuppression()
		}
	}()

	var consentDone <-chan struct{}
	if s.clicker != nil {
		consentDone = pg.OnLoad(func() {
			s.clicker.AcceptAll(ctx, pg, s.cfg.Consent.Wait)
		})
	}

	if err := pg.Navigate(ctx, req.URL, req.waitUntil().condition()); err != nil {
		return nil, 0, fmt.Errorf("domsnap: navigate: %w", err)
	}

	if consentDone != nil {
		// The clicker bounds itself by Consent.Wait; the extra second
		// covers its shutdown, so a stuck page cannot park us here.
		guard := time.NewTimer(s.cfg.Consent.Wait + time.Second)
		select {
		case <-consentDone:
			guard.Stop()
		case <-guard.C:
		case <-ctx.Done():
			guard.Stop()
			return nil, 0, ctx.Err()
		}
	}

	overlays, err = prepare.NeutralizeOverlays(pg)
	if err != nil {
		return nil, 0, fmt.Errorf("domsnap: neutralize overlays: %w", err)
	}
	defer func() {
		if rerr := prepare.RestoreOverlays(pg); rerr != nil {
			s.logger.Warn("domsnap: restore overlays failed", "url", req.URL, "error", rerr)
			if err == nil {
				data, err = nil, fmt.Errorf("domsnap: restore overlays: %w", rerr)
			}
		}
	}()

	sleepCtx(ctx, s.cfg.Capture.SettleDelay)

	if req.IsFullPage() {
		m, merr := prepare.ReadScrollMetrics(pg)
		if merr != nil {
			return nil, overlays, fmt.Errorf("domsnap: read scroll metrics: %w", merr)
		}
		budget := scrollBudget(timeout, m, s.cfg.Capture.MaxScrollTimeout)
		stability := budget / 10
		if stability > s.cfg.Capture.MaxStabilityTimeout {
			stability = s.cfg.Capture.MaxStabilityTimeout
		}
		step := m.ViewportHeight * 80 / 100
		if step <= 0 {
			step = h * 80 / 100
		}
		scroller := &prepare.Scroller{
			Monitor:     &prepare.Monitor{Logger: s.logger},
			SettleDelay: s.cfg.Capture.SettleDelay,
			Logger:      s.logger,
		}
		sopts := prepare.ScrollOptions{
			MaxTimeout:       budget,
			StepPx:           step,
			StabilityTimeout: stability,
		}
		if serr := scroller.ScrollToBottomAndBack(ctx, pg, sopts); serr != nil {
			return nil, overlays, fmt.Errorf("domsnap: scroll: %w", serr)
		}
	}

	quiet := &prepare.Monitor{Logger: s.logger}
	quiet.WaitForQuiescence(ctx, pg, s.cfg.Capture.FinalQuiescence)

	disposed = true
	disposeSuppression()

	data, err = shoot(pg)
	if err != nil {
		return nil, overlays, fmt.Errorf("domsnap: capture: %w", err)
	}
	return data, overlays, nil
}

// scrollBudget scales the request timeout by how many viewport-heights
// of document there are to walk, clamped to the configured ceiling. A
// taller page earns proportionally more time to reach its bottom.
func scrollBudget(base time.Duration, m prepare.ScrollMetrics, ceiling time.Duration) time.Duration {
	screens := 1
	if m.ViewportHeight > 0 {
		screens = (m.DocumentHeight + m.ViewportHeight - 1) / m.ViewportHeight
		if screens < 1 {
			screens = 1
		}
	}
	budget := time.Duration(screens) * base
	if ceiling > 0 && budget > ceiling {
		budget = ceiling
	}
	return budget
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
