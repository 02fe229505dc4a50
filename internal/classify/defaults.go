package classify

import "consentgate/internal/snapshot"

// defaultTable covers widely deployed trackers so a widget with no configured
// tables still gates the common cases. Order matters: first match wins.
var defaultTable = []snapshot.CategoryPatterns{
	{
		Category: "analytics",
		LocationPatterns: []string{
			"google-analytics.com",
			"googletagmanager.com",
			"analytics.js",
			"matomo",
			"hotjar.com",
			"segment.com",
			"mixpanel.com",
		},
		ContentPatterns: []string{
			"gtag(",
			"ga('create'",
			"_paq.push",
			"mixpanel.init",
		},
	},
	{
		Category: "marketing",
		LocationPatterns: []string{
			"doubleclick.net",
			"connect.facebook.net",
			"ads-twitter.com",
			"googleadservices.com",
			"googlesyndication.com",
			"linkedin.com/insight",
			"tiktok.com/i18n/pixel",
		},
		ContentPatterns: []string{
			"fbq('init'",
			"twq('init'",
			"adsbygoogle",
		},
	},
	{
		Category: "functional",
		LocationPatterns: []string{
			"youtube.com/embed",
			"player.vimeo.com",
			"maps.googleapis.com",
			"intercom.io",
			"zendesk.com",
		},
	},
}

// DefaultStorageKeys maps categories to well-known storage keys removed on
// revocation, merged with any configured per-snapshot keys. Deletion is a
// best-effort mitigation: state written by a tracker under other keys, or
// off-device, is out of reach.
var DefaultStorageKeys = map[string][]string{
	"analytics":  {"_ga", "_gid", "_gat", "_pk_id", "_hjid", "mp_", "ajs_anonymous_id"},
	"marketing":  {"_fbp", "_fbc", "_gcl_au", "fr", "IDE", "ttclid"},
	"functional": {"VISITOR_INFO1_LIVE", "vuid", "intercom-id"},
}
