package reconcile

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// urlPattern finds URLs embedded in free text.
var urlPattern = regexp.MustCompile(`https?://[^\s<>")\]]+`)

// LinkRule recognizes one kind of link by its host and path. Hosts are
// glob patterns ("*.frame.io"); PathContains is an optional substring
// the URL path must carry.
type LinkRule struct {
	Field        string
	Hosts        []string
	PathContains string
}

// defaultLinkRules recognize the link kinds the team pastes into notes:
// review-tool links and document links.
var defaultLinkRules = []LinkRule{
	{Field: "frameio_url", Hosts: []string{"f.io", "*.f.io", "frame.io", "*.frame.io"}},
	{Field: "script_url", Hosts: []string{"docs.google.com"}, PathContains: "/document"},
	{Field: "script_url", Hosts: []string{"notion.so", "*.notion.so"}},
}

// LinkExtractor scans note text for recognizable links.
type LinkExtractor struct {
	rules []LinkRule
}

// NewLinkExtractor creates an extractor with the default rule table.
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{rules: defaultLinkRules}
}

// NewLinkExtractorWithRules creates an extractor with a custom table.
func NewLinkExtractorWithRules(rules []LinkRule) *LinkExtractor {
	return &LinkExtractor{rules: rules}
}

// Extract returns the first URL of each recognized kind found in text,
// keyed by semantic field name. Unrecognized URLs are ignored.
func (e *LinkExtractor) Extract(text string) map[string]string {
	found := make(map[string]string)
	for _, raw := range urlPattern.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, ".,;:")
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		for _, rule := range e.rules {
			if _, ok := found[rule.Field]; ok {
				continue
			}
			if !rule.matches(host, u.Path) {
				continue
			}
			found[rule.Field] = raw
		}
	}
	return found
}

func (r LinkRule) matches(host, path string) bool {
	if r.PathContains != "" && !strings.Contains(path, r.PathContains) {
		return false
	}
	for _, glob := range r.Hosts {
		if ok, err := doublestar.Match(glob, host); err == nil && ok {
			return true
		}
	}
	return false
}
