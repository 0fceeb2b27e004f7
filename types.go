package domsnap

import (
	"time"

	"github.com/hazyhaar/domsnap/internal/browser"
)

// Format selects the capture encoding.
type Format string

// Capture formats: jpeg is lossy with a quality setting, png lossless.
const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// WaitUntil selects the navigation completion signal.
type WaitUntil string

// Navigation wait conditions.
const (
	// WaitLoad waits for the window load event.
	WaitLoad WaitUntil = "load"
	// WaitDOMReady waits for the DOM to be parsed.
	WaitDOMReady WaitUntil = "domcontentloaded"
	// WaitNetworkIdle waits until no connection has been open for 500ms.
	WaitNetworkIdle WaitUntil = "networkidle0"
	// WaitNetworkLax waits until at most two connections remain open.
	WaitNetworkLax WaitUntil = "networkidle2"
)

func (w WaitUntil) condition() browser.WaitCondition {
	switch w {
	case WaitLoad:
		return browser.WaitLoad
	case WaitDOMReady:
		return browser.WaitDOMReady
	case WaitNetworkIdle:
		return browser.WaitNetworkIdle
	default:
		return browser.WaitNetworkMostlyIdle
	}
}

// CaptureRequest describes one page capture.
type CaptureRequest struct {
	// URL is the absolute http(s) address of the page to capture.
	URL string `json:"url" yaml:"url"`

	// Width and Height size the viewport. Defaults: 1280×800.
	Width  int `json:"width,omitempty" yaml:"width"`
	Height int `json:"height,omitempty" yaml:"height"`

	// FullPage selects a capture spanning the whole scrollable height
	// rather than just the viewport. Default: true.
	FullPage *bool `json:"full_page,omitempty" yaml:"full_page"`

	// Format is the image encoding. Default: png.
	Format Format `json:"format,omitempty" yaml:"format"`

	// Quality applies to the jpeg format only, 1-100. Ignored for png.
	Quality int `json:"quality,omitempty" yaml:"quality"`

	// WaitUntil is the navigation signal to wait for. Default: networkidle2.
	WaitUntil WaitUntil `json:"wait_until,omitempty" yaml:"wait_until"`

	// TimeoutMs bounds navigation, in milliseconds. Default: 30000.
	// Full-page preparation scales this budget with measured page height.
	TimeoutMs int `json:"timeout_ms,omitempty" yaml:"timeout_ms"`

	// OutputPath, when set, additionally writes the capture to this
	// server-side file.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path"`
}

// IsFullPage reports whether a full-page capture was requested.
func (r *CaptureRequest) IsFullPage() bool {
	return r.FullPage == nil || *r.FullPage
}

func (r *CaptureRequest) format() Format {
	if r.Format == "" {
		return FormatPNG
	}
	return r.Format
}

func (r *CaptureRequest) waitUntil() WaitUntil {
	if r.WaitUntil == "" {
		return WaitNetworkLax
	}
	return r.WaitUntil
}

func (r *CaptureRequest) timeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// quality returns the effective encoding quality: 0 for lossless
// formats so the quality parameter never reaches the encoder.
func (r *CaptureRequest) quality() int {
	if r.format() != FormatJPEG {
		return 0
	}
	if r.Quality == 0 {
		return 80
	}
	return r.Quality
}

func (r *CaptureRequest) viewport() (width, height int) {
	width, height = r.Width, r.Height
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 800
	}
	return width, height
}

// CapturedImage is the encoded capture handed back to the caller.
type CapturedImage struct {
	Data   []byte
	Format Format
}

// BatchRequest is the body of POST /screenshots/batch.
type BatchRequest struct {
	URLs []CaptureRequest `json:"urls"`
}

// BatchItem is the per-URL outcome of a batch capture.
type BatchItem struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"` // base64-encoded image
	Error   string `json:"error,omitempty"`
}
