package domsnap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domsnap.yaml")
	content := `
listen: ":9090"
browser:
  no_sandbox: true
  recycle_interval: 1h
capture:
  max_concurrent: 8
  max_scroll_timeout: 90s
  allow_private_targets: true
  output_dir: /var/lib/domsnap/shots
blocklists:
  - https://easylist.to/easylist/easylist.txt
consent:
  auto_accept: true
  wait: 5s
journal:
  path: /var/lib/domsnap/journal.db
webhook:
  url: https://hooks.example.com/captures
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("listen: got %q", cfg.Listen)
	}
	if !cfg.Browser.NoSandbox {
		t.Error("no_sandbox should be set")
	}
	if cfg.Browser.RecycleInterval != time.Hour {
		t.Errorf("recycle_interval: got %v", cfg.Browser.RecycleInterval)
	}
	if cfg.Capture.MaxConcurrent != 8 {
		t.Errorf("max_concurrent: got %d", cfg.Capture.MaxConcurrent)
	}
	if cfg.Capture.MaxScrollTimeout != 90*time.Second {
		t.Errorf("max_scroll_timeout: got %v", cfg.Capture.MaxScrollTimeout)
	}
	if !cfg.Capture.AllowPrivateTargets {
		t.Error("allow_private_targets should be set")
	}
	if cfg.Capture.OutputDir != "/var/lib/domsnap/shots" {
		t.Errorf("output_dir: got %q", cfg.Capture.OutputDir)
	}
	if len(cfg.Blocklists) != 1 {
		t.Errorf("blocklists: got %v", cfg.Blocklists)
	}
	if !cfg.Consent.AutoAccept || cfg.Consent.Wait != 5*time.Second {
		t.Errorf("consent: %+v", cfg.Consent)
	}
	if cfg.Journal.Path != "/var/lib/domsnap/journal.db" {
		t.Errorf("journal path: got %q", cfg.Journal.Path)
	}
	if cfg.Webhook.URL != "https://hooks.example.com/captures" {
		t.Errorf("webhook url: got %q", cfg.Webhook.URL)
	}

	// Unset fields still get defaults.
	if cfg.Capture.SettleDelay != 500*time.Millisecond {
		t.Errorf("settle_delay default: got %v", cfg.Capture.SettleDelay)
	}
	if cfg.Browser.MemoryLimit != 1<<30 {
		t.Errorf("memory_limit default: got %d", cfg.Browser.MemoryLimit)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigFile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("listen: [unterminated"), 0o644)
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Listen != ":8080" {
		t.Errorf("listen: got %q", cfg.Listen)
	}
	if cfg.Capture.MaxConcurrent != 4 {
		t.Errorf("max_concurrent: got %d", cfg.Capture.MaxConcurrent)
	}
	if cfg.Capture.MaxScrollTimeout != 2*time.Minute {
		t.Errorf("max_scroll_timeout: got %v", cfg.Capture.MaxScrollTimeout)
	}
	if cfg.Capture.FinalQuiescence != 2*time.Second {
		t.Errorf("final_quiescence: got %v", cfg.Capture.FinalQuiescence)
	}
	if cfg.Consent.Wait != 3*time.Second {
		t.Errorf("consent wait: got %v", cfg.Consent.Wait)
	}
	if cfg.Webhook.Retries != 3 {
		t.Errorf("webhook retries: got %d", cfg.Webhook.Retries)
	}
}
