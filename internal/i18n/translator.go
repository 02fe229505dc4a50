package i18n

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BatchTranslator is the one remote capability this package needs: translate
// a list of source strings into a target language, returning a parallel list.
type BatchTranslator interface {
	TranslateBatch(ctx context.Context, lang string, sources []string) ([]string, error)
}

// Translator memoizes translations per language and exact source string.
// Concurrent requests for the same uncached set of strings are coalesced into
// a single batched network call instead of one call per string or one call
// per requester.
type Translator struct {
	remote BatchTranslator

	mu    sync.RWMutex
	cache map[string]map[string]string // lang -> source -> translation
	group singleflight.Group
}

func NewTranslator(remote BatchTranslator) *Translator {
	return &Translator{
		remote: remote,
		cache:  make(map[string]map[string]string),
	}
}

// Translate returns translations parallel to sources. Cached strings are
// served from memory; only the misses go over the network, as one batch.
func (t *Translator) Translate(ctx context.Context, lang string, sources []string) ([]string, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	misses := t.collectMisses(lang, sources)
	if len(misses) > 0 {
		key := lang + "\x1f" + strings.Join(misses, "\x1f")
		_, err, _ := t.group.Do(key, func() (any, error) {
			translated, err := t.remote.TranslateBatch(ctx, lang, misses)
			if err != nil {
				return nil, err
			}
			t.fill(lang, misses, translated)
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(sources))
	for i, src := range sources {
		if translated, ok := t.cache[lang][src]; ok {
			out[i] = translated
		} else {
			// Source untranslated (e.g. a concurrent flight failed to cover
			// it); fall back to the original rather than dropping text.
			out[i] = src
		}
	}
	return out, nil
}

// collectMisses returns the deduplicated, sorted set of uncached sources.
// Sorting keeps the singleflight key stable across callers that list the
// same strings in different orders.
func (t *Translator) collectMisses(lang string, sources []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	byLang := t.cache[lang]
	seen := make(map[string]bool, len(sources))
	var misses []string
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		if _, ok := byLang[src]; !ok {
			misses = append(misses, src)
		}
	}
	sort.Strings(misses)
	return misses
}

func (t *Translator) fill(lang string, sources, translations []string) {
	if len(translations) != len(sources) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	byLang := t.cache[lang]
	if byLang == nil {
		byLang = make(map[string]string, len(sources))
		t.cache[lang] = byLang
	}
	for i, src := range sources {
		byLang[src] = translations[i]
	}
}
