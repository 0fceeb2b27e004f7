package safety

import (
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckTargetURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/page", false},
		{"http://example.com/", false},
		{"ftp://example.com/file", true},
		{"javascript:alert(1)", true},
		{"https:///no-host", true},
		{"http://127.0.0.1:8080/admin", true},
		{"http://10.0.0.5/internal", true},
		{"http://192.168.1.1/router", true},
		{"http://172.16.0.1/", true},
		{"http://169.254.169.254/latest/meta-data/", true},
		{"http://[::1]/api", true},
		{"http://0.0.0.0/", true},
		{"http://8.8.8.8/", false},
	}
	for _, tt := range tests {
		err := CheckTargetURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckTargetURL(%q) error=%v, wantErr=%v", tt.url, err, tt.wantErr)
		}
	}
}

func TestCheckTargetURL_PrivateSentinel(t *testing.T) {
	err := CheckTargetURL("http://127.0.0.1/")
	if !errors.Is(err, ErrPrivateTarget) {
		t.Fatalf("expected ErrPrivateTarget, got %v", err)
	}
}

func TestConfinePath(t *testing.T) {
	base := filepath.FromSlash("/var/lib/domsnap/shots")
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"page.png", false},
		{"2026/08/page.png", false},
		{"../page.png", true},
		{"a/../../outside.png", true},
		{"..", true},
		{"/etc/passwd", false}, // absolute inputs become base-relative
	}
	for _, tt := range tests {
		got, err := ConfinePath(base, tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ConfinePath(%q) error=%v, wantErr=%v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && !strings.HasPrefix(got, base) {
			t.Errorf("ConfinePath(%q) = %q, escapes %q", tt.input, got, base)
		}
	}
}

func TestConfinePath_Sentinel(t *testing.T) {
	_, err := ConfinePath("/tmp/out", "../../etc/crontab")
	if !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("expected ErrPathTraversal, got %v", err)
	}
}

func TestLimitedReadAll(t *testing.T) {
	data := strings.Repeat("x", 100)

	got, err := LimitedReadAll(strings.NewReader(data), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}

	if _, err := LimitedReadAll(strings.NewReader(data), 50); err == nil {
		t.Fatal("expected error for oversized body")
	}
	if _, err := LimitedReadAll(strings.NewReader(data), 100); err != nil {
		t.Fatalf("exact-size body should pass, got %v", err)
	}
}

func TestInternalIP(t *testing.T) {
	tests := []struct {
		ip       string
		internal bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.0.1", true},
		{"169.254.169.254", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fe80::1", true},
		{"fc00::1", true},
		{"8.8.8.8", false},
		{"93.184.216.34", false},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		ip := net.ParseIP(tt.ip)
		if ip == nil {
			t.Fatalf("failed to parse IP %q", tt.ip)
		}
		if got := internalIP(ip); got != tt.internal {
			t.Errorf("internalIP(%s) = %v, want %v", tt.ip, got, tt.internal)
		}
	}
}
