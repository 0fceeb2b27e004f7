package domsnap

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domsnap/internal/consent"
)

// Config is the top-level service configuration.
type Config struct {
	// Listen is the HTTP bind address.
	Listen string `yaml:"listen"`

	// AuthTokenHash is the bcrypt hash of the API bearer token.
	// Empty disables authentication.
	AuthTokenHash string `yaml:"auth_token_hash"`

	Browser BrowserConfig `yaml:"browser"`
	Capture CaptureConfig `yaml:"capture"`

	// Blocklists are filter-list URLs (EasyList syntax) compiled into
	// the request filter at startup, on top of the built-in widget
	// patterns.
	Blocklists []string `yaml:"blocklists"`

	Consent ConsentConfig `yaml:"consent"`
	Journal JournalConfig `yaml:"journal"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty launches a local one.
	Remote          string        `yaml:"remote"`
	MemoryLimit     int64         `yaml:"memory_limit"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	NoSandbox       bool          `yaml:"no_sandbox"`
	Stealth         bool          `yaml:"stealth"`
}

// CaptureConfig bounds the capture pipeline.
type CaptureConfig struct {
	// MaxConcurrent caps concurrent page handles across all requests,
	// batch items included. Default: 4.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxScrollTimeout is the hard ceiling on the height-adjusted
	// scroll budget. Default: 2m.
	MaxScrollTimeout time.Duration `yaml:"max_scroll_timeout"`

	// MaxStabilityTimeout caps the per-scroll-step stability budget.
	// Default: 10s.
	MaxStabilityTimeout time.Duration `yaml:"max_stability_timeout"`

	// SettleDelay is the pause after overlay neutralization and after
	// the return scroll. Default: 500ms.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// FinalQuiescence is the stability budget spent right before
	// pixels are taken. Default: 2s.
	FinalQuiescence time.Duration `yaml:"final_quiescence"`

	// AllowPrivateTargets permits capture URLs that resolve to loopback
	// or private-range addresses. Off by default so a shared instance
	// cannot be pointed at its own network.
	AllowPrivateTargets bool `yaml:"allow_private_targets"`

	// OutputDir, when set, confines every output_path beneath it.
	// Requested paths are reinterpreted relative to this directory.
	OutputDir string `yaml:"output_dir"`
}

// ConsentConfig controls automatic consent-dialog acceptance.
type ConsentConfig struct {
	// AutoAccept enables clicking the accept control of recognized
	// consent dialogs after navigation.
	AutoAccept bool `yaml:"auto_accept"`

	// Wait bounds how long the accept hook may hold up a capture.
	// Default: 3s.
	Wait time.Duration `yaml:"wait"`

	// Rules override the built-in consent vendor rules.
	Rules []consent.Rule `yaml:"rules"`
}

// JournalConfig controls the capture journal.
type JournalConfig struct {
	// Path of the SQLite journal database. Empty disables the journal.
	Path string `yaml:"path"`
}

// WebhookConfig controls capture-result notification.
type WebhookConfig struct {
	// URL to POST capture results to. Empty disables the webhook.
	URL     string `yaml:"url"`
	Retries int    `yaml:"retries"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Capture.MaxConcurrent <= 0 {
		c.Capture.MaxConcurrent = 4
	}
	if c.Capture.MaxScrollTimeout <= 0 {
		c.Capture.MaxScrollTimeout = 2 * time.Minute
	}
	if c.Capture.MaxStabilityTimeout <= 0 {
		c.Capture.MaxStabilityTimeout = 10 * time.Second
	}
	if c.Capture.SettleDelay <= 0 {
		c.Capture.SettleDelay = 500 * time.Millisecond
	}
	if c.Capture.FinalQuiescence <= 0 {
		c.Capture.FinalQuiescence = 2 * time.Second
	}
	if c.Consent.Wait <= 0 {
		c.Consent.Wait = 3 * time.Second
	}
	if c.Webhook.Retries <= 0 {
		c.Webhook.Retries = 3
	}
}
