package rules

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentgate/internal/domain"
	"consentgate/internal/host"
	id "consentgate/pkg/domain"
)

func testResolver() *Resolver {
	return New(slog.New(slog.DiscardHandler))
}

func catalog() domain.ActivitySet {
	return domain.ActivitySet{
		{ID: "a1", Name: "Analytics", Purposes: []domain.Purpose{
			{ID: "p1", Name: "Measurement"},
			{ID: "p2", Name: "Heatmaps"},
		}},
		{ID: "a2", Name: "Marketing", Purposes: []domain.Purpose{
			{ID: "p3", Name: "Ads"},
		}},
		{ID: "a3", Name: "Functional", Purposes: []domain.Purpose{
			{ID: "p4", Name: "Preferences"},
		}},
	}
}

func nav(url string) NavigationContext {
	return NavigationContext{URL: url}
}

func TestResolve_NoRulesShowsEverything(t *testing.T) {
	res := testResolver().Resolve(nil, nav("/any"), catalog())
	assert.True(t, res.Present)
	assert.Nil(t, res.Rule)
	assert.Len(t, res.Activities, 3)
}

func TestResolve_RulesExistNoneMatchFailsClosed(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{ID: "r1", URLPattern: "/checkout", MatchType: domain.MatchContains, ActivityIDs: []id.ID{"a1"}},
	}
	res := testResolver().Resolve(ruleSet, nav("/home"), catalog())
	assert.False(t, res.Present)
}

func TestResolve_CheckoutScenario(t *testing.T) {
	// Rule matches "/checkout" via contains and declares {a1} only: exactly
	// a1 with all its purposes comes back, even though the catalog has three
	// activities.
	ruleSet := []domain.DisplayRule{
		{ID: "r1", URLPattern: "/checkout", MatchType: domain.MatchContains, ActivityIDs: []id.ID{"a1"}},
	}
	res := testResolver().Resolve(ruleSet, nav("https://shop.example/checkout/step1"), catalog())
	require.True(t, res.Present)
	require.NotNil(t, res.Rule)
	require.Len(t, res.Activities, 1)
	assert.Equal(t, id.ID("a1"), res.Activities[0].ID)
	assert.Len(t, res.Activities[0].Purposes, 2)
}

func TestResolve_PriorityOrderAndTies(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{ID: "low", URLPattern: "/x", MatchType: domain.MatchContains, Priority: 50, ActivityIDs: []id.ID{"a1"}},
		{ID: "high", URLPattern: "/x", MatchType: domain.MatchContains, Priority: 200, ActivityIDs: []id.ID{"a2"}},
		// Unspecified priority defaults to 100, between the two above.
		{ID: "default1", URLPattern: "/x", MatchType: domain.MatchContains, ActivityIDs: []id.ID{"a3"}},
		{ID: "default2", URLPattern: "/x", MatchType: domain.MatchContains, ActivityIDs: []id.ID{"a1"}},
	}
	res := testResolver().Resolve(ruleSet, nav("/x"), catalog())
	require.True(t, res.Present)
	assert.Equal(t, id.ID("high"), res.Rule.ID)

	// Drop the high-priority rule: the two defaults tie and the first in
	// configuration order wins.
	res = testResolver().Resolve(append(ruleSet[:1:1], ruleSet[2], ruleSet[3]), nav("/x"), catalog())
	require.True(t, res.Present)
	assert.Equal(t, id.ID("default1"), res.Rule.ID)
}

func TestResolve_MatchTypes(t *testing.T) {
	tests := []struct {
		name    string
		rule    domain.DisplayRule
		url     string
		matches bool
	}{
		{"exact hit", domain.DisplayRule{ID: "r", URLPattern: "/a", MatchType: domain.MatchExact, ActivityIDs: []id.ID{"a1"}}, "/a", true},
		{"exact miss on prefix", domain.DisplayRule{ID: "r", URLPattern: "/a", MatchType: domain.MatchExact, ActivityIDs: []id.ID{"a1"}}, "/a/b", false},
		{"startsWith", domain.DisplayRule{ID: "r", URLPattern: "/shop", MatchType: domain.MatchStartsWith, ActivityIDs: []id.ID{"a1"}}, "/shop/cart", true},
		{"regex", domain.DisplayRule{ID: "r", URLPattern: `/product/\d+`, MatchType: domain.MatchRegex, ActivityIDs: []id.ID{"a1"}}, "/product/42", true},
		{"regex miss", domain.DisplayRule{ID: "r", URLPattern: `/product/\d+`, MatchType: domain.MatchRegex, ActivityIDs: []id.ID{"a1"}}, "/product/abc", false},
		{"unknown match type is non-match", domain.DisplayRule{ID: "r", URLPattern: "/a", MatchType: "glob", ActivityIDs: []id.ID{"a1"}}, "/a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testResolver().Resolve([]domain.DisplayRule{tt.rule}, nav(tt.url), catalog())
			assert.Equal(t, tt.matches, res.Present)
		})
	}
}

func TestResolve_BadRegexIsNonMatchNotError(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{ID: "broken", URLPattern: `/product/(\d`, MatchType: domain.MatchRegex, Priority: 200, ActivityIDs: []id.ID{"a1"}},
		{ID: "fallback", URLPattern: "/product", MatchType: domain.MatchContains, ActivityIDs: []id.ID{"a2"}},
	}
	r := testResolver()
	res := r.Resolve(ruleSet, nav("/product/42"), catalog())
	require.True(t, res.Present)
	assert.Equal(t, id.ID("fallback"), res.Rule.ID)

	// Second resolve goes through the broken-pattern cache, same answer.
	res = r.Resolve(ruleSet, nav("/product/42"), catalog())
	require.True(t, res.Present)
	assert.Equal(t, id.ID("fallback"), res.Rule.ID)
}

func TestResolve_NonWildcardWithoutActivitiesIsNonPresentable(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{ID: "r1", URLPattern: "/checkout", MatchType: domain.MatchContains},
	}
	res := testResolver().Resolve(ruleSet, nav("/checkout"), catalog())
	assert.False(t, res.Present)
}

func TestResolve_WildcardWithoutActivitiesShowsEverything(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{ID: "r1", URLPattern: domain.WildcardPattern, MatchType: domain.MatchContains},
	}
	res := testResolver().Resolve(ruleSet, nav("/anything"), catalog())
	require.True(t, res.Present)
	assert.Len(t, res.Activities, 3)
}

func TestResolve_UnknownActivityIDsDroppedNeverSubstituted(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{ID: "r1", URLPattern: "/x", MatchType: domain.MatchContains, ActivityIDs: []id.ID{"ghost", "a2"}},
	}
	res := testResolver().Resolve(ruleSet, nav("/x"), catalog())
	require.True(t, res.Present)
	require.Len(t, res.Activities, 1)
	assert.Equal(t, id.ID("a2"), res.Activities[0].ID)
}

func TestResolve_AllActivityIDsUnknownAbortsPresentation(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{ID: "r1", URLPattern: "/x", MatchType: domain.MatchContains, ActivityIDs: []id.ID{"ghost"}},
	}
	res := testResolver().Resolve(ruleSet, nav("/x"), catalog())
	assert.False(t, res.Present)
}

func TestResolve_PurposeFilter(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{
			ID: "r1", URLPattern: "/x", MatchType: domain.MatchContains,
			ActivityIDs: []id.ID{"a1", "a2"},
			PurposeFilter: map[id.ID][]id.ID{
				"a1": {"p2"},
				// a2 not mentioned: keeps all purposes.
			},
		},
	}
	res := testResolver().Resolve(ruleSet, nav("/x"), catalog())
	require.True(t, res.Present)
	require.Len(t, res.Activities, 2)

	assert.Len(t, res.Activities[0].Purposes, 1)
	assert.Equal(t, id.ID("p2"), res.Activities[0].Purposes[0].ID)
	assert.Len(t, res.Activities[1].Purposes, 1)
}

func TestResolve_EmptyPurposeFilterSetKeepsAll(t *testing.T) {
	ruleSet := []domain.DisplayRule{
		{
			ID: "r1", URLPattern: "/x", MatchType: domain.MatchContains,
			ActivityIDs:   []id.ID{"a1"},
			PurposeFilter: map[id.ID][]id.ID{"a1": {}},
		},
	}
	res := testResolver().Resolve(ruleSet, nav("/x"), catalog())
	require.True(t, res.Present)
	assert.Len(t, res.Activities[0].Purposes, 2)
}

func TestResolve_ElementCondition(t *testing.T) {
	page := host.NewFakePage()
	ruleSet := []domain.DisplayRule{
		{ID: "r1", URLPattern: "/x", MatchType: domain.MatchContains,
			ElementSelector: "#cookie-root", ActivityIDs: []id.ID{"a1"}},
	}

	res := testResolver().Resolve(ruleSet, NavigationContext{URL: "/x", Page: page}, catalog())
	assert.False(t, res.Present, "element absent: rule skipped, fail closed")

	page.AddElement("#cookie-root")
	res = testResolver().Resolve(ruleSet, NavigationContext{URL: "/x", Page: page}, catalog())
	assert.True(t, res.Present)
}
