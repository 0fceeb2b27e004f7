// Package consent dismisses cookie-consent dialogs that gate page
// content. Widget suppression only hides a dialog; vendors that hold
// back scripts or media until consent is given need the accept control
// actually clicked, which is what this package does.
package consent

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Evaler is the page surface the clicker drives.
type Evaler interface {
	Eval(js string, jsArgs ...interface{}) (*proto.RuntimeRemoteObject, error)
}

// Rule pairs the presence probe of one consent platform with its
// accept control. Rules are tried in order; the first present dialog
// wins.
type Rule struct {
	Vendor   string `json:"vendor" yaml:"vendor"`
	Presence string `json:"presence" yaml:"presence"`
	Accept   string `json:"accept" yaml:"accept"`
}

// DefaultRules covers the consent platforms most common in the wild.
func DefaultRules() []Rule {
	return []Rule{
		{
			Vendor:   "onetrust",
			Presence: "#onetrust-banner-sdk",
			Accept:   "#onetrust-accept-btn-handler",
		},
		{
			Vendor:   "cookiebot",
			Presence: "#CybotCookiebotDialog",
			Accept:   "#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
		},
		{
			Vendor:   "quantcast",
			Presence: "#qc-cmp2-container",
			Accept:   "#qc-cmp2-container button[mode='primary']",
		},
		{
			Vendor:   "didomi",
			Presence: "#didomi-popup",
			Accept:   "#didomi-notice-agree-button",
		},
		{
			Vendor:   "cookieconsent",
			Presence: ".cc-window",
			Accept:   ".cc-btn.cc-allow",
		},
	}
}

const jsAccept = `(rules) => {
	for (const rule of rules) {
		let dialog = null;
		try { dialog = document.querySelector(rule.presence); } catch (e) { continue; }
		if (!dialog) continue;
		let btn = null;
		try { btn = document.querySelector(rule.accept); } catch (e) {}
		if (!btn) return { vendor: rule.vendor, clicked: false };
		try { btn.click(); } catch (e) { return { vendor: rule.vendor, clicked: false }; }
		return { vendor: rule.vendor, clicked: true };
	}
	return { vendor: '', clicked: false };
}`

// Clicker polls a page for known consent dialogs and accepts the first
// one it recognizes.
type Clicker struct {
	// Rules to probe with. Nil means DefaultRules.
	Rules []Rule

	// PollInterval between probes. Default: 250ms.
	PollInterval time.Duration

	Logger *slog.Logger
}

func (c *Clicker) rules() []Rule {
	if c.Rules != nil {
		return c.Rules
	}
	return DefaultRules()
}

func (c *Clicker) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return 250 * time.Millisecond
}

func (c *Clicker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// AcceptAll probes for a consent dialog until one is accepted or wait
// elapses. Best effort: a page without a dialog, a dialog whose button
// never renders, and an eval failure all end the same way, with
// clicked false. The vendor of a dialog that was seen is returned even
// when its button was never clicked.
func (c *Clicker) AcceptAll(ctx context.Context, pg Evaler, wait time.Duration) (vendor string, clicked bool) {
	log := c.logger()
	rules := c.rules()
	deadline := time.Now().Add(wait)

	for {
		res, err := pg.Eval(jsAccept, rules)
		if err != nil {
			log.Debug("consent: probe failed", "error", err)
			return vendor, false
		}
		if v := res.Value.Get("vendor").Str(); v != "" {
			vendor = v
		}
		if res.Value.Get("clicked").Bool() {
			log.Info("consent: dialog accepted", "vendor", vendor)
			return vendor, true
		}

		if !time.Now().Before(deadline) {
			return vendor, false
		}
		if !sleepCtx(ctx, c.pollInterval()) {
			return vendor, false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
