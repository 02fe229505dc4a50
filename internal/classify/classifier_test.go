package classify

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"consentgate/internal/host"
	"consentgate/internal/snapshot"
)

func testClassifier(rows []snapshot.CategoryPatterns) *Classifier {
	return New(rows, slog.New(slog.DiscardHandler))
}

func TestClassify_LocationPatterns(t *testing.T) {
	c := testClassifier(nil)

	tests := []struct {
		location string
		want     string
	}{
		{"https://www.google-analytics.com/analytics.js", "analytics"},
		{"https://connect.facebook.net/en_US/fbevents.js", "marketing"},
		{"https://www.youtube.com/embed/xyz", "functional"},
		{"https://cdn.example.com/app.js", CategoryUnclassified},
		{"", CategoryUnclassified},
	}
	for _, tt := range tests {
		got := c.Classify(host.Resource{Kind: host.KindScript, Location: tt.location})
		assert.Equal(t, tt.want, got, tt.location)
	}
}

func TestClassify_InlineContentPatterns(t *testing.T) {
	c := testClassifier(nil)

	got := c.Classify(host.Resource{
		Kind:   host.KindScript,
		Inline: "window.dataLayer=window.dataLayer||[];gtag('js',new Date());",
	})
	assert.Equal(t, "analytics", got)

	got = c.Classify(host.Resource{Kind: host.KindScript, Inline: "fbq('init','123');"})
	assert.Equal(t, "marketing", got)
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// A configured row listing a default-marketing host ahead of the default
	// table claims the resource for its own category.
	rows := []snapshot.CategoryPatterns{
		{Category: "custom", LocationPatterns: []string{"doubleclick.net"}},
	}
	c := testClassifier(rows)

	got := c.Classify(host.Resource{Location: "https://stats.g.doubleclick.net/pix.js"})
	assert.Equal(t, "custom", got)
}

func TestClassify_ConfiguredRowReplacesDefaultForSameCategory(t *testing.T) {
	rows := []snapshot.CategoryPatterns{
		{Category: "analytics", LocationPatterns: []string{"our-own-metrics.example"}},
	}
	c := testClassifier(rows)

	// The configured analytics row no longer knows google-analytics.com and
	// the default analytics row was skipped, so this stays unclassified.
	got := c.Classify(host.Resource{Location: "https://www.google-analytics.com/a.js"})
	assert.Equal(t, CategoryUnclassified, got)

	got = c.Classify(host.Resource{Location: "https://our-own-metrics.example/t.js"})
	assert.Equal(t, "analytics", got)
}

func TestClassify_OverrideAttributeWins(t *testing.T) {
	c := testClassifier(nil)

	got := c.Classify(host.Resource{
		Location: "https://www.google-analytics.com/analytics.js",
		Attrs:    map[string]string{host.OverrideAttr: "marketing"},
	})
	assert.Equal(t, "marketing", got)
}

func TestClassify_NecessaryNeverBlocked(t *testing.T) {
	c := testClassifier(nil)

	got := c.Classify(host.Resource{
		Location: "https://www.google-analytics.com/analytics.js",
		Attrs:    map[string]string{host.OverrideAttr: host.NecessaryValue},
	})
	assert.Equal(t, CategoryNecessary, got)
	assert.False(t, Blockable(got))
	assert.False(t, Blockable(CategoryUnclassified))
	assert.True(t, Blockable("analytics"))
}

func TestClassify_RegexPatterns(t *testing.T) {
	rows := []snapshot.CategoryPatterns{
		{Category: "analytics", LocationPatterns: []string{`re:/collect\?v=\d`}},
	}
	c := testClassifier(rows)

	got := c.Classify(host.Resource{Location: "https://tr.example/collect?v=2&tid=x"})
	assert.Equal(t, "analytics", got)
}

func TestClassify_BadRegexIsNonMatch(t *testing.T) {
	rows := []snapshot.CategoryPatterns{
		{Category: "analytics", LocationPatterns: []string{`re:(unclosed`}},
		{Category: "marketing", LocationPatterns: []string{"pixel.example"}},
	}
	c := testClassifier(rows)

	// The broken pattern never blocks the rest of the classifier.
	got := c.Classify(host.Resource{Location: "https://pixel.example/p.gif"})
	assert.Equal(t, "marketing", got)

	// And stays a clean non-match on repeat classification.
	got = c.Classify(host.Resource{Location: "https://pixel.example/p.gif"})
	assert.Equal(t, "marketing", got)
}

func TestClassify_Deterministic(t *testing.T) {
	c := testClassifier(nil)
	res := host.Resource{Location: "https://www.googletagmanager.com/gtm.js"}
	first := c.Classify(res)
	for range 10 {
		assert.Equal(t, first, c.Classify(res))
	}
}
