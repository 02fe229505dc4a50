package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"consentgate/internal/classify"
	"consentgate/internal/host"
	audit "consentgate/pkg/platform/audit"
)

// auditSink is the slice of the audit publisher the gate needs.
type auditSink interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Decision is the gate's answer for one intercepted resource declaration.
type Decision struct {
	// Allow means the declaration proceeds untouched.
	Allow bool
	// Category the resource was classified into.
	Category string
	// Placeholder is set when the declaration was blocked: the host must
	// materialize this inert stand-in instead of the original.
	Placeholder *Placeholder
}

// Placeholder is the inert, fully attribute-preserving stand-in for a blocked
// resource. The original declaration is carried verbatim so release can
// reconstruct it at its original position.
type Placeholder struct {
	ID       string
	Category string
	Original host.Resource
}

// item is one queued blocked resource. Destroyed exactly once: either by
// release (converted back to a live resource) or by Close at page unload.
type item struct {
	placeholder *Placeholder
	released    bool
}

// Gate intercepts every path by which a resource declaration can enter the
// live page and queues declarations whose category the visitor has not
// consented to. Release is per category, idempotent, and preserves original
// relative order.
type Gate struct {
	classifier *classify.Classifier
	page       host.Page
	logger     *slog.Logger
	audit      auditSink
	widgetID   string

	// configuredStorageKeys come from the snapshot and are merged with the
	// well-known defaults on revocation.
	configuredStorageKeys map[string][]string

	mu        sync.Mutex
	consented map[string]bool
	queue     []*item
	seq       int
	closed    bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithAudit wires an audit sink for block/release/escape events.
func WithAudit(sink auditSink, widgetID string) Option {
	return func(g *Gate) {
		g.audit = sink
		g.widgetID = widgetID
	}
}

// WithStorageKeys sets the per-category storage keys removed on revocation,
// in addition to the well-known defaults.
func WithStorageKeys(keys map[string][]string) Option {
	return func(g *Gate) {
		g.configuredStorageKeys = keys
	}
}

// New builds a gate over a classifier and the host page capability.
func New(classifier *classify.Classifier, page host.Page, opts ...Option) *Gate {
	g := &Gate{
		classifier: classifier,
		page:       page,
		logger:     slog.Default(),
		consented:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AdoptFrom moves the still-blocked queue and the placeholder sequence out of
// a retiring gate, then closes it. Queued resources stay releasable across a
// configuration refresh instead of being stranded in a gate nothing
// references; the retired gate can no longer release or double-destroy them.
func (g *Gate) AdoptFrom(previous *Gate) {
	if previous == nil || previous == g {
		return
	}

	previous.mu.Lock()
	var moved []*item
	for _, it := range previous.queue {
		if !it.released {
			moved = append(moved, it)
		}
	}
	seq := previous.seq
	previous.queue = nil
	previous.closed = true
	previous.mu.Unlock()

	g.mu.Lock()
	g.queue = append(g.queue, moved...)
	if seq > g.seq {
		g.seq = seq
	}
	g.mu.Unlock()
}

// Intercept classifies a pending declaration and decides whether it may
// become live. Resources classified "unclassified" or "necessary" always pass
// through untouched; so do categories the visitor already consented to.
func (g *Gate) Intercept(ctx context.Context, res host.Resource) Decision {
	category := g.classifier.Classify(res)
	if !classify.Blockable(category) {
		return Decision{Allow: true, Category: category}
	}

	g.mu.Lock()
	if g.closed || g.consented[category] {
		allowed := !g.closed
		g.mu.Unlock()
		return Decision{Allow: allowed, Category: category}
	}

	g.seq++
	ph := &Placeholder{
		ID:       fmt.Sprintf("cg-blocked-%d", g.seq),
		Category: category,
		Original: res.Clone(),
	}
	g.queue = append(g.queue, &item{placeholder: ph})
	g.mu.Unlock()

	blockedTotal.WithLabelValues(category).Inc()
	g.logger.Debug("blocked resource",
		"category", category, "location", res.Location, "placeholder", ph.ID)

	if res.FromSubtree {
		// The declaration arrived inside a larger inserted block and may
		// already have begun executing. Detection is best effort; flag it
		// for audit rather than pretending prevention is guaranteed.
		escapesTotal.WithLabelValues(category).Inc()
		g.emit(ctx, audit.Event{
			Category: audit.CategoryOperations,
			Action:   string(audit.EventGatingEscape),
			Subject:  res.Location,
			Decision: category,
			Reason:   "subtree insertion observed after possible execution",
		})
	} else {
		g.emit(ctx, audit.Event{
			Category: audit.CategoryOperations,
			Action:   string(audit.EventResourceBlocked),
			Subject:  res.Location,
			Decision: category,
		})
	}

	return Decision{Category: category, Placeholder: ph}
}

// SetConsented replaces the consented-category set. Newly consented
// categories are released; categories that lost consent stop future
// same-category resources but nothing already executed is undone.
func (g *Gate) SetConsented(ctx context.Context, categories []string) {
	g.mu.Lock()
	next := make(map[string]bool, len(categories))
	for _, c := range categories {
		next[c] = true
	}
	var gained []string
	for c := range next {
		if !g.consented[c] {
			gained = append(gained, c)
		}
	}
	g.consented = next
	g.mu.Unlock()

	for _, c := range gained {
		g.Release(ctx, c)
	}
}

// Release reconstructs every queued resource of the category into a live
// resource at its original position, in original relative order. Idempotent:
// a released item is marked and never re-released or re-queued.
func (g *Gate) Release(ctx context.Context, category string) int {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return 0
	}
	g.consented[category] = true
	var pending []*item
	for _, it := range g.queue {
		if it.placeholder.Category == category && !it.released {
			it.released = true
			pending = append(pending, it)
		}
	}
	g.mu.Unlock()

	released := 0
	for _, it := range pending {
		if err := g.page.Materialize(it.placeholder.Original); err != nil {
			g.logger.Error("failed to materialize released resource",
				"category", category, "location", it.placeholder.Original.Location,
				"error", err)
			continue
		}
		released++
	}

	if released > 0 {
		releasedTotal.WithLabelValues(category).Add(float64(released))
		g.emit(ctx, audit.Event{
			Category: audit.CategoryOperations,
			Action:   string(audit.EventCategoryReleased),
			Subject:  category,
			Reason:   fmt.Sprintf("released %d resources", released),
		})
	}
	return released
}

// Revoke withdraws consent for a category. Future same-category resources are
// blocked again; already executed ones cannot be undone. Known storage keys
// for the category (configured plus well-known defaults) are deleted best
// effort.
func (g *Gate) Revoke(ctx context.Context, category string) {
	g.mu.Lock()
	delete(g.consented, category)
	g.mu.Unlock()

	keys := append([]string{}, g.configuredStorageKeys[category]...)
	keys = append(keys, classify.DefaultStorageKeys[category]...)
	removed := 0
	if len(keys) > 0 {
		removed = g.page.RemoveStorageKeys(keys)
	}

	g.logger.Info("category revoked",
		"category", category, "storage_keys_known", len(keys), "storage_keys_removed", removed)
	g.emit(ctx, audit.Event{
		Category: audit.CategoryCompliance,
		Action:   string(audit.EventStorageCleared),
		Subject:  category,
		Reason:   fmt.Sprintf("removed %d of %d known keys", removed, len(keys)),
	})
}

// Consented reports whether a category is currently consented.
func (g *Gate) Consented(category string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consented[category]
}

// QueuedCount returns the number of still-blocked resources, for the host
// page API and tests.
func (g *Gate) QueuedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, it := range g.queue {
		if !it.released {
			n++
		}
	}
	return n
}

// Close discards the queue at page unload. Queued resources are destroyed
// exactly once: this is the non-release end of their lifecycle.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.queue = nil
}

func (g *Gate) emit(ctx context.Context, event audit.Event) {
	if g.audit == nil {
		return
	}
	event.WidgetID = g.widgetID
	if err := g.audit.Emit(ctx, event); err != nil {
		g.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}
