package browser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// WaitCondition selects the navigation completion signal.
type WaitCondition string

const (
	WaitLoad              WaitCondition = "load"
	WaitDOMReady          WaitCondition = "domcontentloaded"
	WaitNetworkIdle       WaitCondition = "networkidle0"
	WaitNetworkMostlyIdle WaitCondition = "networkidle2"
)

func (w WaitCondition) lifecycleEvent() proto.PageLifecycleEventName {
	switch w {
	case WaitDOMReady:
		return proto.PageLifecycleEventNameDOMContentLoaded
	case WaitNetworkIdle:
		return proto.PageLifecycleEventNameNetworkIdle
	case WaitNetworkMostlyIdle:
		return proto.PageLifecycleEventNameNetworkAlmostIdle
	default:
		return proto.PageLifecycleEventNameLoad
	}
}

// PageOptions configures a new capture page.
type PageOptions struct {
	Width   int
	Height  int
	Timeout time.Duration // default per-operation timeout for the page
}

// Page wraps a Rod page with capture-specific setup. Exactly one capture
// is bound to a Page; Close must run whatever happened before it.
type Page struct {
	page    *rod.Page
	router  *rod.HijackRouter
	timeout time.Duration
	manager *Manager
}

// OpenPage creates a blank tab sized to the requested viewport. The page
// counts as an in-flight capture until Close.
func (m *Manager) OpenPage(ctx context.Context, opts PageOptions) (*Page, error) {
	b, err := m.acquire()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		m.release()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.Width > 0 && opts.Height > 0 {
		err = page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Width,
			Height:            opts.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			page.Close()
			m.release()
			return nil, fmt.Errorf("browser: set viewport: %w", err)
		}
	}

	return &Page{page: page, timeout: opts.Timeout, manager: m}, nil
}

// Navigate drives the page to url and waits for the requested lifecycle
// event. A wait that outlives the page timeout is a navigation failure.
func (p *Page) Navigate(ctx context.Context, url string, cond WaitCondition) error {
	navCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pg := p.page.Context(navCtx)
	wait := pg.WaitNavigation(cond.lifecycleEvent())
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if navCtx.Err() != nil {
		return fmt.Errorf("browser: navigate %s: timeout after %s", url, p.timeout)
	}
	return nil
}

// OnLoad registers fn to run once the page fires its load event. The
// callback runs on its own goroutine; the returned channel closes when
// it has finished (or when the load wait gave up).
func (p *Page) OnLoad(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.page.Timeout(p.timeout).WaitLoad(); err != nil {
			return
		}
		fn()
	}()
	return done
}

// Eval runs a function-form script in the page context.
func (p *Page) Eval(js string, jsArgs ...interface{}) (*proto.RuntimeRemoteObject, error) {
	return p.page.Timeout(p.timeout).Eval(js, jsArgs...)
}

// EvalOnNewDocument arms a raw script to run at document start in every
// new document on this page, before the page's own scripts.
func (p *Page) EvalOnNewDocument(js string) error {
	_, err := p.page.EvalOnNewDocument(js)
	if err != nil {
		return fmt.Errorf("browser: eval on new document: %w", err)
	}
	return nil
}

// Screenshot captures the page as an encoded image. Quality applies to
// lossy formats only and is never sent for PNG.
func (p *Page) Screenshot(fullPage bool, format string, quality int) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{}
	switch format {
	case "jpeg":
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		if quality > 0 {
			req.Quality = gson.Int(quality)
		}
	default:
		req.Format = proto.PageCaptureScreenshotFormatPng
	}

	data, err := p.page.Timeout(p.timeout).Screenshot(fullPage, req)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// PDF renders the page through Chrome's print pipeline.
func (p *Page) PDF() ([]byte, error) {
	r, err := p.page.Timeout(p.timeout).PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: pdf: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("browser: pdf read: %w", err)
	}
	return data, nil
}

// Intercept installs the request filter on this page. Must be called
// before Navigate so early requests are classified too.
func (p *Page) Intercept(filter *RequestFilter) {
	p.router = applyFilter(p.page, filter)
}

// Close tears the page down unconditionally and releases the in-flight
// slot. Safe to call once per page.
func (p *Page) Close() error {
	if p.router != nil {
		p.router.Stop()
		p.router = nil
	}
	var err error
	if p.page != nil {
		err = p.page.Close()
		p.page = nil
	}
	if p.manager != nil {
		p.manager.release()
		p.manager = nil
	}
	return err
}
