package domsnap

import (
	"fmt"
	"net/url"
)

const (
	maxURLLen    = 4096
	maxDimension = 16384
	maxTimeoutMs = 300_000 // 5 minutes
	maxBatchURLs = 50
)

// Validate checks a capture request. It runs before any browser
// resource is allocated, so a malformed request never costs a page.
func (r *CaptureRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	if len(r.URL) > maxURLLen {
		return fmt.Errorf("%w: url exceeds %d characters", ErrInvalidRequest, maxURLLen)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidRequest, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: url must be absolute http or https", ErrInvalidRequest)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidRequest)
	}

	if r.Width < 0 || r.Width > maxDimension {
		return fmt.Errorf("%w: width must be between 1 and %d", ErrInvalidRequest, maxDimension)
	}
	if r.Height < 0 || r.Height > maxDimension {
		return fmt.Errorf("%w: height must be between 1 and %d", ErrInvalidRequest, maxDimension)
	}
	if r.Quality < 0 || r.Quality > 100 {
		return fmt.Errorf("%w: quality must be between 1 and 100", ErrInvalidRequest)
	}

	switch r.Format {
	case "", FormatJPEG, FormatPNG:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, r.Format)
	}
	switch r.WaitUntil {
	case "", WaitLoad, WaitDOMReady, WaitNetworkIdle, WaitNetworkLax:
	default:
		return fmt.Errorf("%w: unknown wait_until %q", ErrInvalidRequest, r.WaitUntil)
	}

	if r.TimeoutMs < 0 || r.TimeoutMs > maxTimeoutMs {
		return fmt.Errorf("%w: timeout_ms must be between 1 and %d", ErrInvalidRequest, maxTimeoutMs)
	}
	return nil
}
