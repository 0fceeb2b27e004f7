package browser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Decision is the outcome of classifying one outgoing request.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionAbort
)

// Matcher is an extra ruleset consulted for every request URL, in
// addition to the filter's own patterns.
type Matcher interface {
	Match(url string) bool
}

// compiledPattern is one suppression pattern: a plain substring, or a
// wildcard expression where * stands for any run of characters.
type compiledPattern struct {
	raw string
	sub string // plain substring match when re is nil
	re  *regexp.Regexp
}

func compilePattern(p string) (compiledPattern, error) {
	if !strings.Contains(p, "*") {
		return compiledPattern{raw: p, sub: p}, nil
	}
	parts := strings.Split(p, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile(strings.Join(parts, ".*"))
	if err != nil {
		return compiledPattern{}, fmt.Errorf("browser: pattern %q: %w", p, err)
	}
	return compiledPattern{raw: p, re: re}, nil
}

func (c compiledPattern) match(url string) bool {
	if c.re != nil {
		return c.re.MatchString(url)
	}
	return strings.Contains(url, c.sub)
}

// RequestFilter classifies outgoing request URLs. Every request gets
// exactly one decision; the default is continue.
type RequestFilter struct {
	patterns []compiledPattern
	matchers []Matcher
	logger   *slog.Logger
}

// NewRequestFilter compiles the pattern list. Extra matchers (compiled
// filter-list rulesets) are consulted after the explicit patterns.
func NewRequestFilter(patterns []string, logger *slog.Logger, matchers ...Matcher) (*RequestFilter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &RequestFilter{logger: logger, matchers: matchers}
	for _, p := range patterns {
		cp, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		f.patterns = append(f.patterns, cp)
	}
	return f, nil
}

// Decide classifies one request URL.
func (f *RequestFilter) Decide(rawURL string) Decision {
	for _, p := range f.patterns {
		if p.match(rawURL) {
			return DecisionAbort
		}
	}
	for _, m := range f.matchers {
		if m.Match(rawURL) {
			return DecisionAbort
		}
	}
	return DecisionContinue
}

// applyFilter installs request interception on the page. The handler
// must resolve every request: a classification panic is swallowed and
// the request continued so the page never hangs on an undecided load.
func applyFilter(page *rod.Page, f *RequestFilter) *rod.HijackRouter {
	router := page.HijackRequests()

	router.MustAdd("*", func(ctx *rod.Hijack) {
		defer func() {
			if r := recover(); r != nil {
				f.logger.Warn("browser: intercept handler recovered", "panic", r)
				ctx.ContinueRequest(&proto.FetchContinueRequest{})
			}
		}()

		if f.Decide(ctx.Request.URL().String()) == DecisionAbort {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()

	return router
}
