package prepare

import (
	_ "embed"
	"fmt"
)

//go:embed overlay.js
var overlayJS []byte

// NeutralizeOverlays flattens every fixed/sticky element on the page so
// a stitched full-page capture does not repeat them at each scroll
// offset. Returns the number of elements recorded for restore.
func NeutralizeOverlays(pg Evaler) (int, error) {
	if _, err := pg.Eval(string(overlayJS)); err != nil {
		return 0, fmt.Errorf("prepare: install overlay runtime: %w", err)
	}
	res, err := pg.Eval(`() => window.__domsnap_overlay.neutralize()`)
	if err != nil {
		return 0, fmt.Errorf("prepare: neutralize overlays: %w", err)
	}
	return res.Value.Int(), nil
}

// RestoreOverlays writes back the inline styles recorded by
// NeutralizeOverlays and clears the record slot. Calling it without a
// prior neutralize, or twice, is a no-op.
func RestoreOverlays(pg Evaler) error {
	if _, err := pg.Eval(string(overlayJS)); err != nil {
		return fmt.Errorf("prepare: install overlay runtime: %w", err)
	}
	if _, err := pg.Eval(`() => window.__domsnap_overlay.restore()`); err != nil {
		return fmt.Errorf("prepare: restore overlays: %w", err)
	}
	return nil
}
