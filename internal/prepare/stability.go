package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sample is one structural snapshot of the page: how many images and
// iframes exist, and how many network resources are still in flight.
type Sample struct {
	Images   int
	Iframes  int
	InFlight int
}

func (s Sample) countsEqual(o Sample) bool {
	return s.Images == o.Images && s.Iframes == o.Iframes
}

const jsSample = `() => ({
	images: document.images.length,
	iframes: document.getElementsByTagName('iframe').length,
	inflight: performance.getEntriesByType('resource').filter((e) => !e.responseEnd).length,
})`

// Monitor decides when a page has gone quiescent: structural counts
// stopped changing and the network went silent.
type Monitor struct {
	// Interval between polls. Default: 500ms.
	Interval time.Duration
	// Grace is the delay before the confirmatory sample. Default: 500ms.
	Grace time.Duration

	Logger *slog.Logger
}

func (m *Monitor) interval() time.Duration {
	if m.Interval > 0 {
		return m.Interval
	}
	return 500 * time.Millisecond
}

func (m *Monitor) grace() time.Duration {
	if m.Grace > 0 {
		return m.Grace
	}
	return 500 * time.Millisecond
}

func (m *Monitor) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// TakeSample reads one structural snapshot. Cheap and read-only.
func (m *Monitor) TakeSample(pg Evaler) (Sample, error) {
	res, err := pg.Eval(jsSample)
	if err != nil {
		return Sample{}, fmt.Errorf("prepare: sample: %w", err)
	}
	return Sample{
		Images:   res.Value.Get("images").Int(),
		Iframes:  res.Value.Get("iframes").Int(),
		InFlight: res.Value.Get("inflight").Int(),
	}, nil
}

// WaitForQuiescence polls until the page is stable or the budget runs
// out. A candidate lull must survive a confirmatory sample after the
// grace delay; two measurements landing in a brief gap between loads
// would otherwise pass for stability. Best-effort: on timeout or
// sampling failure it logs and returns, never failing the pipeline.
func (m *Monitor) WaitForQuiescence(ctx context.Context, pg Evaler, timeout time.Duration) {
	log := m.logger()
	deadline := time.Now().Add(timeout)

	prev, err := m.TakeSample(pg)
	if err != nil {
		log.Warn("prepare: quiescence sampling failed", "error", err)
		return
	}

	for time.Now().Before(deadline) {
		if !sleepCtx(ctx, m.interval()) {
			return
		}
		cur, err := m.TakeSample(pg)
		if err != nil {
			log.Warn("prepare: quiescence sampling failed", "error", err)
			return
		}

		if cur.countsEqual(prev) && cur.InFlight == 0 {
			if !sleepCtx(ctx, m.grace()) {
				return
			}
			confirm, err := m.TakeSample(pg)
			if err != nil {
				log.Warn("prepare: quiescence sampling failed", "error", err)
				return
			}
			if confirm.countsEqual(cur) && confirm.InFlight == 0 {
				return
			}
			prev = confirm
			continue
		}
		prev = cur
	}

	log.Warn("prepare: quiescence timeout", "timeout", timeout)
}
