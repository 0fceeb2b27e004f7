// Package blocklist fetches and compiles ad/tracker filter lists into a
// ruleset consulted during request interception. It understands the
// network-rule subset of the EasyList syntax: domain anchors
// (||example.com^), plain substrings, * wildcards, and @@ exceptions.
// Element-hiding rules and rule options are ignored.
package blocklist

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hazyhaar/domsnap/internal/safety"
)

// maxListBytes caps one fetched filter list. The largest lists in common
// use are a few MiB.
const maxListBytes = 16 << 20

// Ruleset is a compiled blocking ruleset. Safe for concurrent use after
// compilation.
type Ruleset struct {
	domains    map[string]struct{}
	substrings []string
	wildcards  []*regexp.Regexp
	exceptions []string
}

// Compile parses filter-list lines into a Ruleset.
func Compile(lines []string) *Ruleset {
	rs := &Ruleset{domains: make(map[string]struct{})}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
			continue
		}
		// Element-hiding and scriptlet rules operate on the DOM, not the network.
		if strings.Contains(line, "##") || strings.Contains(line, "#@#") || strings.Contains(line, "#?#") {
			continue
		}
		// Drop rule options; the bare body is still a useful match.
		if i := strings.LastIndex(line, "$"); i > 0 {
			line = line[:i]
		}

		if strings.HasPrefix(line, "@@") {
			body := strings.Trim(strings.TrimPrefix(line, "@@"), "|^")
			if body != "" {
				rs.exceptions = append(rs.exceptions, body)
			}
			continue
		}

		if strings.HasPrefix(line, "||") {
			dom := strings.TrimPrefix(line, "||")
			dom = strings.TrimRight(dom, "^")
			if dom != "" && !strings.ContainsAny(dom, "/*") {
				rs.domains[strings.ToLower(dom)] = struct{}{}
				continue
			}
			line = dom
		}

		line = strings.Trim(line, "|^")
		if line == "" {
			continue
		}
		if strings.Contains(line, "*") {
			if re := wildcardRegexp(line); re != nil {
				rs.wildcards = append(rs.wildcards, re)
			}
			continue
		}
		rs.substrings = append(rs.substrings, line)
	}

	return rs
}

func wildcardRegexp(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile(strings.Join(parts, ".*"))
	if err != nil {
		return nil
	}
	return re
}

// Match reports whether rawURL is blocked by the ruleset.
func (r *Ruleset) Match(rawURL string) bool {
	for _, e := range r.exceptions {
		if strings.Contains(rawURL, e) {
			return false
		}
	}

	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host := strings.ToLower(u.Hostname())
		for h := host; h != ""; {
			if _, ok := r.domains[h]; ok {
				return true
			}
			i := strings.Index(h, ".")
			if i < 0 {
				break
			}
			h = h[i+1:]
		}
	}

	for _, s := range r.substrings {
		if strings.Contains(rawURL, s) {
			return true
		}
	}
	for _, re := range r.wildcards {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled rules.
func (r *Ruleset) Len() int {
	return len(r.domains) + len(r.substrings) + len(r.wildcards)
}

// Fetcher downloads and compiles remote filter lists.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads every list URL and compiles the union. A list that
// fails to download is logged and skipped; Fetch errors only when lists
// were requested and none could be loaded.
func (f *Fetcher) Fetch(ctx context.Context, listURLs []string) (*Ruleset, error) {
	var lines []string
	loaded := 0

	for _, lu := range listURLs {
		ls, err := f.fetchOne(ctx, lu)
		if err != nil {
			f.logger.Warn("blocklist: list skipped", "url", lu, "error", err)
			continue
		}
		lines = append(lines, ls...)
		loaded++
	}

	if len(listURLs) > 0 && loaded == 0 {
		return Compile(nil), fmt.Errorf("blocklist: no list could be loaded")
	}

	rs := Compile(lines)
	f.logger.Info("blocklist: compiled", "lists", loaded, "rules", rs.Len())
	return rs, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, listURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("blocklist: new request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blocklist: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blocklist: status %d", resp.StatusCode)
	}

	body, err := safety.LimitedReadAll(resp.Body, maxListBytes)
	if err != nil {
		return nil, fmt.Errorf("blocklist: read: %w", err)
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("blocklist: read: %w", err)
	}
	return lines, nil
}
