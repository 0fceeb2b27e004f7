package blocklist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompile_DomainAnchor(t *testing.T) {
	rs := Compile([]string{"||ads.example.com^"})

	if !rs.Match("https://ads.example.com/banner.js") {
		t.Fatal("anchored domain should match")
	}
	if !rs.Match("https://sub.ads.example.com/x") {
		t.Fatal("subdomain of anchored domain should match")
	}
	if rs.Match("https://example.com/ads") {
		t.Fatal("parent domain must not match")
	}
	if rs.Match("https://notads.example.com/x") {
		t.Fatal("sibling domain must not match")
	}
}

func TestCompile_SubstringAndWildcard(t *testing.T) {
	rs := Compile([]string{
		"/pixel/track",
		"banner*.gif",
	})

	if !rs.Match("https://cdn.example.com/pixel/track?id=1") {
		t.Fatal("substring rule should match")
	}
	if !rs.Match("https://cdn.example.com/banner_728x90.gif") {
		t.Fatal("wildcard rule should match")
	}
	if rs.Match("https://cdn.example.com/logo.png") {
		t.Fatal("unrelated URL must not match")
	}
}

func TestCompile_SkipsCommentsAndCosmetic(t *testing.T) {
	rs := Compile([]string{
		"! comment line",
		"[Adblock Plus 2.0]",
		"example.com##.ad-container",
		"",
	})
	if rs.Len() != 0 {
		t.Fatalf("rules: got %d, want 0", rs.Len())
	}
}

func TestCompile_ExceptionOverrides(t *testing.T) {
	rs := Compile([]string{
		"||metrics.example.com^",
		"@@||metrics.example.com/allowed",
	})

	if rs.Match("https://metrics.example.com/allowed/ping") {
		t.Fatal("exception should override block")
	}
	if !rs.Match("https://metrics.example.com/other") {
		t.Fatal("non-excepted path should still block")
	}
}

func TestCompile_StripsOptions(t *testing.T) {
	rs := Compile([]string{"||tracker.example.net^$third-party,script"})
	if !rs.Match("https://tracker.example.net/t.js") {
		t.Fatal("rule with options should still block on its body")
	}
}

func TestFetch_MergesLists(t *testing.T) {
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("||ads-a.example^\n! comment\n"))
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("||ads-b.example^\n"))
	}))
	defer srvB.Close()

	f := NewFetcher()
	rs, err := f.Fetch(context.Background(), []string{srvA.URL, srvB.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if !rs.Match("https://ads-a.example/x") || !rs.Match("https://ads-b.example/y") {
		t.Fatal("rules from both lists should match")
	}
}

func TestFetch_SkipsFailedList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("||ok.example^\n"))
	}))
	defer srv.Close()

	f := NewFetcher()
	rs, err := f.Fetch(context.Background(), []string{srv.URL, "http://127.0.0.1:1/unreachable"})
	if err != nil {
		t.Fatalf("fetch with one bad list should not error: %v", err)
	}
	if !rs.Match("https://ok.example/z") {
		t.Fatal("surviving list should be compiled")
	}
}

func TestFetch_AllFailedErrors(t *testing.T) {
	f := NewFetcher()
	_, err := f.Fetch(context.Background(), []string{"http://127.0.0.1:1/unreachable"})
	if err == nil {
		t.Fatal("expected error when no list loads")
	}
}
