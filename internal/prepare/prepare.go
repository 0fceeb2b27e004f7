// Package prepare readies a live page for a faithful full-page capture:
// it flattens fixed/sticky overlays, suppresses chat and consent widgets,
// detects lazy-load quiescence, and drives the adaptive scroll loop.
// All DOM state lives in the page's own script context behind reserved
// window keys; the Go side only sends self-contained scripts and reads
// serializable results.
package prepare

import (
	"context"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Evaler is the slice of the page surface the in-page helpers drive.
type Evaler interface {
	Eval(js string, jsArgs ...interface{}) (*proto.RuntimeRemoteObject, error)
}

// Injector additionally arms scripts that run at document start, before
// the page's own scripts.
type Injector interface {
	Evaler
	EvalOnNewDocument(js string) error
}

// sleepCtx sleeps for d or until ctx is done. Reports false when ctx
// ended the sleep early.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
