package prepare

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed widgets.js
var widgetsJS []byte

const selectorsMarker = "__DOMSNAP_SELECTORS__"

// vendorSelectors catalogues the DOM containers of known chat and
// consent widgets, grouped by vendor because several use multiple
// unrelated selector shapes.
var vendorSelectors = map[string][]string{
	"intercom": {
		"#intercom-container",
		".intercom-lightweight-app",
		"iframe[name='intercom-notifications-frame']",
	},
	"drift": {
		"#drift-widget-container",
		".drift-frame-controller",
		"iframe#drift-widget",
	},
	"crisp": {
		"#crisp-chatbox",
		".crisp-client",
	},
	"zendesk": {
		"#launcher",
		"iframe#webWidget",
		"iframe[title='Button to launch messaging window']",
		".zopim",
	},
	"tawk": {
		"#tawkchat-container",
		"iframe[title='chat widget']",
	},
	"livechat": {
		"#chat-widget-container",
		"#livechat-compact-container",
	},
	"freshchat": {
		"#fc_frame",
		".fc-widget-normal",
	},
	"hubspot": {
		"#hubspot-messages-iframe-container",
		".hs-cookie-notification-position-bottom",
	},
	"facebook": {
		".fb_dialog",
		"iframe[data-testid='bubble_iframe']",
	},
	"olark": {
		"#olark-wrapper",
		".olark-launch-button-wrapper",
	},
	"onetrust": {
		"#onetrust-consent-sdk",
		"#onetrust-banner-sdk",
		".onetrust-pc-dark-filter",
	},
	"cookiebot": {
		"#CybotCookiebotDialog",
		"#CookiebotWidget",
	},
	"quantcast": {
		"#qc-cmp2-container",
		".qc-cmp2-container",
	},
	"didomi": {
		"#didomi-host",
		"#didomi-popup",
	},
	"usercentrics": {
		"#usercentrics-root",
		"#uc-banner-modal",
	},
	"generic-consent": {
		"[class*='cookie-banner']",
		"[id*='cookie-banner']",
		"[class*='cookie-consent']",
		"[id*='cookie-consent']",
		".cc-window",
	},
}

// vendorNetworkPatterns catalogues the request URL patterns of the same
// vendors. A * matches any run of characters; everything else is a
// plain substring.
var vendorNetworkPatterns = map[string][]string{
	"intercom":  {"widget.intercom.io", "js.intercomcdn.com", "api-iam.intercom.io"},
	"drift":     {"js.driftt.com", "api.drift.com", "widget.drift.com"},
	"crisp":     {"client.crisp.chat", "*.crisp.chat/*"},
	"zendesk":   {"static.zdassets.com", "ekr.zdassets.com", "*.zopim.com/*"},
	"tawk":      {"embed.tawk.to", "*.tawk.to/*"},
	"livechat":  {"cdn.livechatinc.com", "*.livechatinc.com/*"},
	"freshchat": {"wchat.freshchat.com", "*.freshchat.com/*"},
	"hubspot":   {"js.hs-scripts.com", "js.usemessages.com"},
	"facebook":  {"connect.facebook.net/*/sdk/xfbml.customerchat.js"},
	"olark":     {"static.olark.com"},
	"onetrust":  {"cdn.cookielaw.org", "*.onetrust.com/*"},
	"cookiebot": {"consent.cookiebot.com", "*.cookiebot.com/*"},
	"quantcast": {"cmp.quantcast.com", "quantcast.mgr.consensu.org"},
	"didomi":    {"sdk.privacy-center.org", "*.didomi.io/*"},
	"usercentrics": {
		"app.usercentrics.eu",
		"*.usercentrics.eu/*",
	},
}

// Selectors returns the flattened selector catalogue, deterministically
// ordered.
func Selectors() []string {
	return flatten(vendorSelectors)
}

// NetworkPatterns returns the flattened URL pattern catalogue for the
// request filter.
func NetworkPatterns() []string {
	return flatten(vendorNetworkPatterns)
}

func flatten(byVendor map[string][]string) []string {
	vendors := make([]string, 0, len(byVendor))
	for v := range byVendor {
		vendors = append(vendors, v)
	}
	sort.Strings(vendors)

	var out []string
	for _, v := range vendors {
		out = append(out, byVendor[v]...)
	}
	return out
}

// Suppressor arms the DOM-level widget suppression runtime on a page.
// Network-level blocking is handled separately by the request filter;
// the two catalogues above keep them in step.
type Suppressor struct {
	Logger *slog.Logger
}

// Arm installs the suppression runtime so it runs at document start on
// the next navigation, and best-effort on the current document. The
// returned disposer stops the runtime's observer and interval; call it
// before capture so nothing keeps mutating the page.
func (s *Suppressor) Arm(pg Injector) (func(), error) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	js, err := suppressionScript()
	if err != nil {
		return nil, err
	}

	if err := pg.EvalOnNewDocument(js); err != nil {
		return nil, fmt.Errorf("prepare: arm widget suppression: %w", err)
	}

	// Cover the current document too; before navigation this is a blank
	// page and the install is a harmless no-op.
	if _, err := pg.Eval(js); err != nil {
		log.Debug("prepare: widget suppression on current document", "error", err)
	}

	dispose := func() {
		_, err := pg.Eval(`() => {
			if (window.__domsnap_widgets) {
				window.__domsnap_widgets.dispose();
			}
		}`)
		if err != nil {
			log.Debug("prepare: widget suppression dispose", "error", err)
		}
	}
	return dispose, nil
}

func suppressionScript() (string, error) {
	sel, err := json.Marshal(Selectors())
	if err != nil {
		return "", fmt.Errorf("prepare: marshal selectors: %w", err)
	}
	js := strings.Replace(string(widgetsJS), selectorsMarker, string(sel), 1)
	return js, nil
}
