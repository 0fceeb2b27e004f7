package domsnap

import "errors"

// ErrInvalidRequest is returned when a capture request fails validation,
// before any browser resource is allocated.
var ErrInvalidRequest = errors.New("domsnap: invalid request")

// ErrClosed is returned for captures submitted after Close.
var ErrClosed = errors.New("domsnap: service closed")
