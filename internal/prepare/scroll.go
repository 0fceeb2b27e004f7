package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ScrollMetrics is a snapshot of the page's scroll geometry.
type ScrollMetrics struct {
	ViewportHeight int
	DocumentHeight int
	ScrollTop      int
}

const jsScrollMetrics = `() => ({
	viewportHeight: window.innerHeight,
	documentHeight: Math.max(
		document.body ? document.body.scrollHeight : 0,
		document.body ? document.body.offsetHeight : 0,
		document.documentElement.clientHeight,
		document.documentElement.scrollHeight,
		document.documentElement.offsetHeight
	),
	scrollTop: window.pageYOffset || document.documentElement.scrollTop || 0,
})`

const jsScrollBy = `(step) => { window.scrollBy(0, step); }`

const jsScrollTo = `(y) => { window.scrollTo(0, y); }`

// ReadScrollMetrics reads the current scroll geometry.
func ReadScrollMetrics(pg Evaler) (ScrollMetrics, error) {
	res, err := pg.Eval(jsScrollMetrics)
	if err != nil {
		return ScrollMetrics{}, fmt.Errorf("prepare: scroll metrics: %w", err)
	}
	return ScrollMetrics{
		ViewportHeight: res.Value.Get("viewportHeight").Int(),
		DocumentHeight: res.Value.Get("documentHeight").Int(),
		ScrollTop:      res.Value.Get("scrollTop").Int(),
	}, nil
}

// ScrollOptions bounds one scroll run.
type ScrollOptions struct {
	// MaxTimeout bounds the forward loop as a whole.
	MaxTimeout time.Duration
	// StepPx is the forward scroll distance per iteration.
	StepPx int
	// StabilityTimeout is the per-step budget handed to the Monitor.
	StabilityTimeout time.Duration
}

// Scroller drives the page to the bottom in adaptive steps so lazy
// content materializes, then returns to the top.
type Scroller struct {
	Monitor *Monitor

	// StableIterations is how many consecutive unchanged document
	// heights end the loop early. Default: 3.
	StableIterations int

	// SettleDelay is the pause after returning to the top, letting
	// scroll-triggered transitions finish. Default: 500ms.
	SettleDelay time.Duration

	Logger *slog.Logger
}

func (s *Scroller) monitor() *Monitor {
	if s.Monitor != nil {
		return s.Monitor
	}
	return &Monitor{}
}

func (s *Scroller) stableIterations() int {
	if s.StableIterations > 0 {
		return s.StableIterations
	}
	return 3
}

func (s *Scroller) settleDelay() time.Duration {
	if s.SettleDelay > 0 {
		return s.SettleDelay
	}
	return 500 * time.Millisecond
}

func (s *Scroller) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ScrollToBottomAndBack runs the adaptive loop: read metrics, stop at
// the geometric bottom or once the document height has stopped growing,
// otherwise step forward and let the Monitor absorb whatever the step
// triggered. Whatever ends the loop, the page is scrolled back to the
// top and given a settle delay, so the capture sees the page at rest
// from offset 0.
func (s *Scroller) ScrollToBottomAndBack(ctx context.Context, pg Evaler, opts ScrollOptions) error {
	log := s.logger()
	start := time.Now()

	lastHeight := -1
	stable := 0
	steps := 0

	var loopErr error
	for time.Since(start) < opts.MaxTimeout {
		m, err := ReadScrollMetrics(pg)
		if err != nil {
			loopErr = err
			break
		}

		if m.ScrollTop+m.ViewportHeight >= m.DocumentHeight {
			break
		}

		if m.DocumentHeight == lastHeight {
			stable++
			if stable >= s.stableIterations() {
				log.Debug("prepare: document height stopped growing",
					"height", m.DocumentHeight, "steps", steps)
				break
			}
		} else {
			stable = 0
			lastHeight = m.DocumentHeight
		}

		if _, err := pg.Eval(jsScrollBy, opts.StepPx); err != nil {
			loopErr = fmt.Errorf("prepare: scroll step: %w", err)
			break
		}
		steps++

		s.monitor().WaitForQuiescence(ctx, pg, opts.StabilityTimeout)

		if ctx.Err() != nil {
			break
		}
	}

	// The capture must represent the page at rest from the top, so the
	// return scroll runs no matter how the loop ended.
	if _, err := pg.Eval(jsScrollTo, 0); err != nil {
		if loopErr == nil {
			loopErr = fmt.Errorf("prepare: scroll to top: %w", err)
		}
	} else {
		sleepCtx(ctx, s.settleDelay())
	}

	if loopErr != nil {
		return loopErr
	}

	log.Debug("prepare: scroll complete",
		"steps", steps, "elapsed", time.Since(start))
	return nil
}
