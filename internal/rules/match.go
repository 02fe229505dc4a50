package rules

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"consentgate/internal/domain"
)

// urlMatcher evaluates rule URL patterns. Compiled regexes are cached per
// pattern; a compile failure is logged once and the pattern behaves as
// "does not match" from then on, never as an error.
type urlMatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
	broken   map[string]bool
}

func newURLMatcher(logger *slog.Logger) *urlMatcher {
	return &urlMatcher{
		logger:   logger,
		compiled: make(map[string]*regexp.Regexp),
		broken:   make(map[string]bool),
	}
}

func (m *urlMatcher) matches(rule domain.DisplayRule, url string) bool {
	if rule.IsWildcard() {
		return true
	}
	switch rule.MatchType {
	case domain.MatchExact:
		return url == rule.URLPattern
	case domain.MatchContains:
		return strings.Contains(url, rule.URLPattern)
	case domain.MatchStartsWith:
		return strings.HasPrefix(url, rule.URLPattern)
	case domain.MatchRegex:
		return m.matchRegex(rule, url)
	default:
		m.logger.Warn("unknown match type, treating as non-match",
			"rule_id", rule.ID.String(), "match_type", string(rule.MatchType))
		return false
	}
}

func (m *urlMatcher) matchRegex(rule domain.DisplayRule, url string) bool {
	m.mu.Lock()
	re, ok := m.compiled[rule.URLPattern]
	if !ok && !m.broken[rule.URLPattern] {
		var err error
		re, err = regexp.Compile(rule.URLPattern)
		if err != nil {
			m.broken[rule.URLPattern] = true
			m.mu.Unlock()
			m.logger.Warn("rule regex failed to compile, treating as non-match",
				"rule_id", rule.ID.String(), "error", err.Error())
			return false
		}
		m.compiled[rule.URLPattern] = re
	}
	m.mu.Unlock()

	if re == nil {
		return false
	}
	return re.MatchString(url)
}
