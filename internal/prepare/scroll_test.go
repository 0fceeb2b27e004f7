package prepare

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

func metricsObj(viewport, document, top int) *proto.RuntimeRemoteObject {
	return obj(map[string]interface{}{
		"viewportHeight": viewport,
		"documentHeight": document,
		"scrollTop":      top,
	})
}

func quickScroller() *Scroller {
	return &Scroller{
		Monitor:     &Monitor{Interval: time.Millisecond, Grace: time.Millisecond},
		SettleDelay: time.Millisecond,
	}
}

func quickOpts() ScrollOptions {
	return ScrollOptions{
		MaxTimeout:       2 * time.Second,
		StepPx:           640,
		StabilityTimeout: 2 * time.Millisecond,
	}
}

func countEvals(pg *fakePage, js string) int {
	n := 0
	for _, e := range pg.evals {
		if e == js {
			n++
		}
	}
	return n
}

func TestReadScrollMetrics_ReadsGeometry(t *testing.T) {
	pg := &fakePage{fn: func(int, string, []interface{}) (*proto.RuntimeRemoteObject, error) {
		return metricsObj(800, 4200, 120), nil
	}}

	m, err := ReadScrollMetrics(pg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.ViewportHeight != 800 || m.DocumentHeight != 4200 || m.ScrollTop != 120 {
		t.Fatalf("metrics: got %+v", m)
	}
}

func TestScroll_ShortPageGoesStraightBack(t *testing.T) {
	pg := &fakePage{fn: func(_ int, js string, _ []interface{}) (*proto.RuntimeRemoteObject, error) {
		if js == jsScrollMetrics {
			return metricsObj(800, 600, 0), nil
		}
		return obj(nil), nil
	}}

	if err := quickScroller().ScrollToBottomAndBack(context.Background(), pg, quickOpts()); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if n := countEvals(pg, jsScrollBy); n != 0 {
		t.Fatalf("short page stepped %d times, want 0", n)
	}
	if n := countEvals(pg, jsScrollTo); n != 1 {
		t.Fatalf("return scroll ran %d times, want 1", n)
	}
}

func TestScroll_ReachesBottomThenReturnsToTop(t *testing.T) {
	top := 0
	pg := &fakePage{}
	pg.fn = func(_ int, js string, args []interface{}) (*proto.RuntimeRemoteObject, error) {
		switch js {
		case jsScrollMetrics:
			return metricsObj(800, 2400, top), nil
		case jsScrollBy:
			top += args[0].(int)
		case jsScrollTo:
			top = args[0].(int)
		}
		return obj(nil), nil
	}

	if err := quickScroller().ScrollToBottomAndBack(context.Background(), pg, quickOpts()); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if top != 0 {
		t.Fatalf("final scroll offset: got %d, want 0", top)
	}
	// 2400px document, 800px viewport, 640px steps: several forward
	// steps before the bottom test trips.
	if n := countEvals(pg, jsScrollBy); n < 2 {
		t.Fatalf("forward steps: got %d, want >= 2", n)
	}
}

func TestScroll_GrowingPageStopsAtTimeout(t *testing.T) {
	height := 2000
	pg := &fakePage{}
	pg.fn = func(_ int, js string, _ []interface{}) (*proto.RuntimeRemoteObject, error) {
		if js == jsScrollMetrics {
			height += 1000 // infinite feed: always more below
			return metricsObj(800, height, 0), nil
		}
		return obj(nil), nil
	}

	opts := quickOpts()
	opts.MaxTimeout = 40 * time.Millisecond

	start := time.Now()
	err := quickScroller().ScrollToBottomAndBack(context.Background(), pg, opts)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if elapsed < opts.MaxTimeout {
		t.Fatalf("growing page finished after %s, want >= %s", elapsed, opts.MaxTimeout)
	}
	// Bounded: the loop stops checking once MaxTimeout has passed, so
	// the overrun is at most one iteration plus the settle delay.
	if elapsed > opts.MaxTimeout+time.Second {
		t.Fatalf("growing page ran %s, want bounded near %s", elapsed, opts.MaxTimeout)
	}
	if n := countEvals(pg, jsScrollTo); n != 1 {
		t.Fatalf("return scroll ran %d times, want 1", n)
	}
}

func TestScroll_StableHeightCutsLoopShort(t *testing.T) {
	pg := &fakePage{fn: func(_ int, js string, _ []interface{}) (*proto.RuntimeRemoteObject, error) {
		if js == jsScrollMetrics {
			// Tall page whose scroll position never advances, as when
			// scrolling is hijacked. Height never changes either.
			return metricsObj(800, 50000, 0), nil
		}
		return obj(nil), nil
	}}

	s := quickScroller()
	opts := quickOpts()
	opts.MaxTimeout = 10 * time.Second

	start := time.Now()
	if err := s.ScrollToBottomAndBack(context.Background(), pg, opts); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("stable height should cut the loop short, took %s", elapsed)
	}
	if n := countEvals(pg, jsScrollBy); n != s.stableIterations() {
		t.Fatalf("forward steps: got %d, want %d", n, s.stableIterations())
	}
}

func TestScroll_MetricsErrorStillReturnsToTop(t *testing.T) {
	pg := &fakePage{}
	pg.fn = func(_ int, js string, _ []interface{}) (*proto.RuntimeRemoteObject, error) {
		if js == jsScrollMetrics {
			return nil, errors.New("target crashed")
		}
		return obj(nil), nil
	}

	err := quickScroller().ScrollToBottomAndBack(context.Background(), pg, quickOpts())
	if err == nil {
		t.Fatal("want error when metrics cannot be read")
	}
	if n := countEvals(pg, jsScrollTo); n != 1 {
		t.Fatalf("return scroll ran %d times, want 1 even on error", n)
	}
}
