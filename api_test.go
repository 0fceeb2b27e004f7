package domsnap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/domsnap/internal/dbopen"
	"github.com/hazyhaar/domsnap/internal/journal"

	_ "modernc.org/sqlite"
)

// testService builds a Service with the capture pipeline stubbed out.
// The browser manager is deliberately nil: any handler path that
// touches it before validation passes would panic the test.
func testService(t *testing.T) *Service {
	t.Helper()
	cfg := defaultConfig()
	cfg.applyDefaults()
	s := &Service{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		sem:    make(chan struct{}, cfg.Capture.MaxConcurrent),
	}
	s.capture = func(_ context.Context, req *CaptureRequest) (*CapturedImage, error) {
		return &CapturedImage{Data: []byte("img-bytes"), Format: req.format()}, nil
	}
	s.capturePDF = func(_ context.Context, _ *CaptureRequest) ([]byte, error) {
		return []byte("%PDF-1.4 stub"), nil
	}
	return s
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPI_Health(t *testing.T) {
	h := testService(t).Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != 200 {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body: %q", w.Body.String())
	}
}

func TestAPI_ScreenshotReturnsImage(t *testing.T) {
	// WHAT: A valid capture request answers with raw image bytes.
	// WHY: Binary-out keeps single captures curl-friendly.
	h := testService(t).Handler()

	w := postJSON(t, h, "/screenshot", `{"url":"https://example.com"}`)
	if w.Code != 200 {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %q", ct)
	}
	if w.Body.String() != "img-bytes" {
		t.Errorf("body: got %q", w.Body.String())
	}
}

func TestAPI_ScreenshotJPEGContentType(t *testing.T) {
	h := testService(t).Handler()

	w := postJSON(t, h, "/screenshot", `{"url":"https://example.com","format":"jpeg"}`)
	if w.Code != 200 {
		t.Fatalf("status: got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type: got %q", ct)
	}
}

func TestAPI_BadInputAnsweredBeforeBrowser(t *testing.T) {
	// WHAT: Validation failures 400 without touching the browser.
	// WHY: testService leaves manager nil; reaching it would panic.
	h := testService(t).Handler()

	for name, body := range map[string]string{
		"not json":    `{`,
		"missing url": `{}`,
		"bad scheme":  `{"url":"ftp://example.com/file"}`,
		"bad quality": `{"url":"https://example.com","quality":101}`,
	} {
		w := postJSON(t, h, "/screenshot", body)
		if w.Code != 400 {
			t.Errorf("%s: got %d, want 400", name, w.Code)
		}
		if !strings.Contains(w.Header().Get("Content-Type"), "application/json") {
			t.Errorf("%s: content type %q", name, w.Header().Get("Content-Type"))
		}
	}
}

func TestAPI_BatchIsolatesFailures(t *testing.T) {
	// WHAT: One bad URL in a batch fails only its own slot.
	// WHY: Callers submit mixed lists; the batch itself never aborts.
	s := testService(t)
	s.capture = func(_ context.Context, req *CaptureRequest) (*CapturedImage, error) {
		if strings.Contains(req.URL, "down.example") {
			return nil, errors.New("navigate: connection refused")
		}
		return &CapturedImage{Data: []byte("ok"), Format: req.format()}, nil
	}
	h := s.Handler()

	body := `{"urls":[
		{"url":"https://good.example.com"},
		{"url":"not a url"},
		{"url":"https://down.example.com"}
	]}`
	w := postJSON(t, h, "/screenshots/batch", body)
	if w.Code != 200 {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results []BatchItem `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results: got %d, want 3", len(resp.Results))
	}
	if !resp.Results[0].Success || resp.Results[0].Data == "" {
		t.Errorf("first item should succeed with data: %+v", resp.Results[0])
	}
	if resp.Results[1].Success || resp.Results[1].Error == "" {
		t.Errorf("second item should fail validation: %+v", resp.Results[1])
	}
	if resp.Results[2].Success || !strings.Contains(resp.Results[2].Error, "refused") {
		t.Errorf("third item should carry the pipeline error: %+v", resp.Results[2])
	}
}

func TestAPI_BatchRejectsEmptyAndOversize(t *testing.T) {
	h := testService(t).Handler()

	if w := postJSON(t, h, "/screenshots/batch", `{"urls":[]}`); w.Code != 400 {
		t.Errorf("empty batch: got %d, want 400", w.Code)
	}

	var sb bytes.Buffer
	sb.WriteString(`{"urls":[`)
	for i := 0; i <= maxBatchURLs; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"url":"https://example.com/%d"}`, i)
	}
	sb.WriteString(`]}`)
	if w := postJSON(t, h, "/screenshots/batch", sb.String()); w.Code != 400 {
		t.Errorf("oversize batch: got %d, want 400", w.Code)
	}
}

func TestAPI_PDFContentType(t *testing.T) {
	h := testService(t).Handler()

	w := postJSON(t, h, "/pdf", `{"url":"https://example.com"}`)
	if w.Code != 200 {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type: got %q", ct)
	}
}

func TestAPI_RecentWithoutJournal(t *testing.T) {
	h := testService(t).Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/captures/recent", nil))

	if w.Code != 200 {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"captures":[]`) {
		t.Errorf("body: %q", w.Body.String())
	}
}

func TestAPI_RecentReadsJournal(t *testing.T) {
	s := testService(t)
	s.journal = journal.New(dbopen.OpenMemory(t, dbopen.WithSchema(journal.Schema)), nil)
	if _, err := s.journal.Record(context.Background(), &journal.Entry{
		URL: "https://example.com", Format: "png", Status: journal.StatusOK,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/captures/recent?limit=5", nil))
	if w.Code != 200 {
		t.Fatalf("status: got %d", w.Code)
	}

	var resp struct {
		Captures []journal.Entry `json:"captures"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Captures) != 1 || resp.Captures[0].URL != "https://example.com" {
		t.Errorf("captures: %+v", resp.Captures)
	}
}

func TestAPI_BearerAuth(t *testing.T) {
	// WHAT: With a token hash configured, requests need the bearer
	// token; /health stays open for probes.
	s := testService(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	s.cfg.AuthTokenHash = string(hash)
	h := s.Handler()

	w := postJSON(t, h, "/screenshot", `{"url":"https://example.com"}`)
	if w.Code != 401 {
		t.Fatalf("no token: got %d, want 401", w.Code)
	}

	req := httptest.NewRequest("POST", "/screenshot", strings.NewReader(`{"url":"https://example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("with token: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != 200 {
		t.Fatalf("health: got %d", w.Code)
	}
}

func TestAPI_ClosedServiceAnswers503(t *testing.T) {
	s := testService(t)
	s.closed = true
	h := s.Handler()

	w := postJSON(t, h, "/screenshot", `{"url":"https://example.com"}`)
	if w.Code != 503 {
		t.Fatalf("status: got %d, want 503", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: url is required", ErrInvalidRequest), 400},
		{ErrClosed, 503},
		{fmt.Errorf("domsnap: navigate: %w", context.DeadlineExceeded), 504},
		{errors.New("chrome crashed"), 500},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v): got %d, want %d", c.err, got, c.want)
		}
	}
}
