package classify

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"consentgate/internal/host"
	"consentgate/internal/snapshot"
)

// Well-known category names. A snapshot may configure any category name; the
// engine only treats these two specially.
const (
	// CategoryNecessary marks resources that are never blocked.
	CategoryNecessary = "necessary"
	// CategoryUnclassified is returned when no table row matches. Never
	// blocked.
	CategoryUnclassified = "unclassified"
)

// Patterns prefixed with this marker are compiled as regular expressions;
// everything else matches as a case-insensitive substring. An unparseable
// regex is logged and behaves as "does not match".
const regexMarker = "re:"

// Classifier maps a pending resource declaration to a category using ordered
// location/content pattern tables. Classification is deterministic and total:
// every resource maps to exactly one of a configured category, "necessary",
// or "unclassified".
type Classifier struct {
	logger *slog.Logger
	table  []snapshot.CategoryPatterns

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
	broken   map[string]bool
}

// New builds a classifier over the snapshot's tables followed by the built-in
// defaults. Configured rows win: a default row for a category the snapshot
// already configured is skipped.
func New(configured []snapshot.CategoryPatterns, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	table := make([]snapshot.CategoryPatterns, 0, len(configured)+len(defaultTable))
	seen := make(map[string]bool, len(configured))
	for _, row := range configured {
		table = append(table, row)
		seen[row.Category] = true
	}
	for _, row := range defaultTable {
		if !seen[row.Category] {
			table = append(table, row)
		}
	}
	return &Classifier{
		logger:   logger,
		table:    table,
		compiled: make(map[string]*regexp.Regexp),
		broken:   make(map[string]bool),
	}
}

// Classify returns the category for a resource. An explicit per-resource
// override attribute always wins over pattern matching; a resource marked
// necessary is never blocked regardless of the tables.
func (c *Classifier) Classify(res host.Resource) string {
	if override, ok := res.Attrs[host.OverrideAttr]; ok && override != "" {
		if override == host.NecessaryValue {
			return CategoryNecessary
		}
		return override
	}

	// First-match-wins: a resource matches at most the first category whose
	// pattern list matches.
	for _, row := range c.table {
		if c.anyMatch(row.LocationPatterns, res.Location) {
			return row.Category
		}
		if c.anyMatch(row.ContentPatterns, res.Inline) {
			return row.Category
		}
	}
	return CategoryUnclassified
}

// Blockable reports whether a category is subject to gating at all.
func Blockable(category string) bool {
	return category != CategoryNecessary && category != CategoryUnclassified
}

func (c *Classifier) anyMatch(patterns []string, subject string) bool {
	if subject == "" {
		return false
	}
	for _, p := range patterns {
		if c.match(p, subject) {
			return true
		}
	}
	return false
}

func (c *Classifier) match(pattern, subject string) bool {
	if pattern == "" {
		return false
	}
	if expr, ok := strings.CutPrefix(pattern, regexMarker); ok {
		return c.matchRegex(expr, subject)
	}
	return strings.Contains(strings.ToLower(subject), strings.ToLower(pattern))
}

func (c *Classifier) matchRegex(expr, subject string) bool {
	c.mu.Lock()
	re, ok := c.compiled[expr]
	if !ok && !c.broken[expr] {
		var err error
		re, err = regexp.Compile(expr)
		if err != nil {
			c.broken[expr] = true
			c.mu.Unlock()
			c.logger.Warn("classification pattern failed to compile, treating as non-match",
				"pattern", expr, "error", err.Error())
			return false
		}
		c.compiled[expr] = re
	}
	c.mu.Unlock()

	if re == nil {
		return false
	}
	return re.MatchString(subject)
}
