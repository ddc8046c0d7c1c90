package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dhcgn/patent-reminders/model"
)

// Options captures the filtering configuration. Header patterns run against
// the decoded "From", "Subject" and "Date" lines, body patterns against the
// normalized content.
type Options struct {
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// Hit counts how many messages a pattern matched.
type Hit struct {
	Kind    string `json:"kind"`
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

type pattern struct {
	kind string
	re   *regexp.Regexp
}

// Filter holds compiled regex patterns for filtering messages.
type Filter struct {
	includeMode   bool
	excludeMode   bool
	includeHeader []pattern
	includeBody   []pattern
	excludeHeader []pattern
	excludeBody   []pattern

	mu   sync.Mutex
	hits map[*regexp.Regexp]int
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeHeader, err := compilePatterns("include-header", opts.IncludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	includeBody, err := compilePatterns("include-body", opts.IncludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	excludeHeader, err := compilePatterns("exclude-header", opts.ExcludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	excludeBody, err := compilePatterns("exclude-body", opts.ExcludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	includeActive := len(includeHeader) > 0 || len(includeBody) > 0
	excludeActive := len(excludeHeader) > 0 || len(excludeBody) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return &Filter{
		includeMode:   includeActive,
		excludeMode:   excludeActive,
		includeHeader: includeHeader,
		includeBody:   includeBody,
		excludeHeader: excludeHeader,
		excludeBody:   excludeBody,
		hits:          make(map[*regexp.Regexp]int),
	}, nil
}

// Active reports whether any pattern is configured.
func (f *Filter) Active() bool {
	return f.includeMode || f.excludeMode
}

// Allows returns true if the message passes the filter criteria.
func (f *Filter) Allows(msg model.NormalizedMessage) bool {
	if !f.Active() {
		return true
	}
	return f.AllowsText(HeaderText(msg.DecodedMessage), msg.Content)
}

// AllowsText applies the filter to already rendered header and body text.
func (f *Filter) AllowsText(header, body string) bool {
	if f.includeMode {
		matched := f.matchAny(f.includeHeader, header) || f.matchAny(f.includeBody, body)
		return matched
	}

	if f.excludeMode {
		if f.matchAny(f.excludeHeader, header) || f.matchAny(f.excludeBody, body) {
			return false
		}
	}

	return true
}

// Hits returns the match counters in configuration order.
func (f *Filter) Hits() []Hit {
	f.mu.Lock()
	defer f.mu.Unlock()

	var hits []Hit
	for _, group := range [][]pattern{f.includeHeader, f.includeBody, f.excludeHeader, f.excludeBody} {
		for _, p := range group {
			hits = append(hits, Hit{Kind: p.kind, Pattern: p.re.String(), Count: f.hits[p.re]})
		}
	}
	return hits
}

// HeaderText renders the decoded header fields header patterns see.
func HeaderText(msg model.DecodedMessage) string {
	var b strings.Builder
	b.WriteString("From: ")
	b.WriteString(msg.Sender)
	b.WriteString("\nSubject: ")
	b.WriteString(msg.Subject)
	b.WriteString("\nDate: ")
	b.WriteString(msg.Date)
	b.WriteString("\n")
	return b.String()
}

func compilePatterns(kind string, patterns []string) ([]pattern, error) {
	compiled := make([]pattern, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		compiled = append(compiled, pattern{kind: kind, re: re})
	}
	return compiled, nil
}

func (f *Filter) matchAny(patterns []pattern, text string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, p := range patterns {
		if p.re.MatchString(text) {
			f.mu.Lock()
			f.hits[p.re]++
			f.mu.Unlock()
			return true
		}
	}
	return false
}
