package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"consentgate/internal/cache"
	"consentgate/internal/classify"
	"consentgate/internal/domain"
	"consentgate/internal/gate"
	"consentgate/internal/host"
	"consentgate/internal/i18n"
	"consentgate/internal/identity"
	"consentgate/internal/remote"
	"consentgate/internal/rules"
	"consentgate/internal/snapshot"
	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/audit"
	"consentgate/pkg/platform/sentinel"
)

// Per-widget persisted state keys. All of them live under the widget-scoped
// cache namespace and carry an explicit or duration-derived expiry.
const (
	consentKey     = "consent"
	ageSessionKey  = "age-session"
	ageVerifiedKey = "age-verified"

	ageSessionTTL = time.Hour
)

// auditEmitter is the slice of the audit publisher the engine needs.
type auditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config is the static engine configuration supplied by the embedding host.
type Config struct {
	WidgetID id.WidgetID
	// Language selects presentation-text translation; empty disables it.
	Language string
	// ReturnURL is where the external age verifier sends the visitor back.
	ReturnURL string
}

// Engine drives one widget instance through the consent flow: age
// verification, identity verification, preference capture, submission, and
// reconciliation with the remote authority. Work is cooperative and reacts to
// host-page events; persisted local state is the only shared mutable
// resource.
type Engine struct {
	cfg       Config
	authority remote.Authority
	store     cache.Store
	page      host.Page
	logger    *slog.Logger
	audit     auditEmitter
	translate *i18n.Translator
	resolver  *rules.Resolver
	now       func() time.Time
	intervals pollIntervals

	mu            sync.Mutex
	state         State
	snap          *snapshot.Snapshot
	identity      *identity.Manager
	gate          *gate.Gate
	consent       *domain.ConsentRecord
	sel           *selection
	presentation  *Presentation
	visible       bool
	verifiedEmail string
	ageVerified   bool

	submitInFlight bool
	otpInFlight    bool

	pollMu   sync.Mutex
	pollStop chan struct{}
	pollDone chan struct{}
}

// Presentation is the disclosure surface resolved for the current page, with
// texts already translated when a language is configured.
type Presentation struct {
	Rule       *domain.DisplayRule
	Activities domain.ActivitySet
	Notice     string
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithAudit attaches the audit publisher. Without it events are dropped.
func WithAudit(emitter auditEmitter) Option {
	return func(e *Engine) {
		e.audit = emitter
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithPollIntervals overrides the adaptive refresh cadence.
func WithPollIntervals(short, long, preview time.Duration) Option {
	return func(e *Engine) {
		e.intervals = pollIntervals{Short: short, Long: long, Preview: preview}
	}
}

// New wires an engine for one widget. Call Start before anything else.
func New(authority remote.Authority, store cache.Store, page host.Page, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		authority: authority,
		store:     store,
		page:      page,
		logger:    slog.Default(),
		now:       time.Now,
		intervals: defaultPollIntervals,
		state:     StateNew,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = rules.New(e.logger)
	e.translate = i18n.NewTranslator(authority)
	return e
}

// Start fetches and normalizes configuration, restores persisted identity and
// state, reconciles consent with the authority, and settles the entry state.
// sentinel.ErrGone means the widget configuration no longer exists; the
// instance is terminally unusable and polling must not begin.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.refreshConfigLocked(ctx); err != nil {
		if errors.Is(err, sentinel.ErrGone) {
			e.state = StateError
		}
		return err
	}

	e.identity = identity.New(e.store, e.cfg.WidgetID, e.snap.Features.ConsentDuration, e.logger)
	if err := e.identity.Load(ctx); err != nil {
		return err
	}

	e.reconcileLocked(ctx)
	return e.settleEntryStateLocked(ctx)
}

// refreshConfigLocked fetches, normalizes, and installs a configuration
// snapshot, rebuilding the classifier and gate when the snapshot changed.
func (e *Engine) refreshConfigLocked(ctx context.Context) error {
	wire, err := e.authority.FetchConfig(ctx, e.cfg.WidgetID)
	if err != nil {
		configRefreshTotal.WithLabelValues("error").Inc()
		return err
	}
	snap, err := snapshot.Normalize(wire, e.logger, e.now())
	if err != nil {
		configRefreshTotal.WithLabelValues("invalid").Inc()
		return err
	}
	configRefreshTotal.WithLabelValues("ok").Inc()

	e.snap = snap
	classifier := classify.New(snap.Categories, e.logger)
	gateOpts := []gate.Option{
		gate.WithLogger(e.logger),
		gate.WithStorageKeys(snap.StorageKeys),
	}
	if e.audit != nil {
		gateOpts = append(gateOpts, gate.WithAudit(e.audit, e.cfg.WidgetID.String()))
	}
	previous := e.gate
	e.gate = gate.New(classifier, e.page, gateOpts...)
	if previous != nil {
		// Queued resources and the consented set survive the refresh; a
		// category consented later still releases what was blocked before.
		e.gate.AdoptFrom(previous)
		e.gate.SetConsented(ctx, e.consentedCategoriesLocked())
	}
	return nil
}

// settleEntryStateLocked walks NEW into the first state the feature flags
// call for. A decided unexpired consent short-circuits straight to COMPLETE.
func (e *Engine) settleEntryStateLocked(ctx context.Context) error {
	if e.consent != nil && e.consent.Decided() {
		if err := e.transition(StateComplete); err != nil {
			return err
		}
		e.gate.SetConsented(ctx, e.consentedCategoriesLocked())
		return nil
	}

	if e.snap.Features.AgeVerification != domain.AgeModeDisabled && !e.restoreAgeFlagLocked(ctx) {
		return e.transition(StateAgePending)
	}
	return e.enterIdentityOrPresentLocked()
}

// enterIdentityOrPresentLocked advances past age verification.
func (e *Engine) enterIdentityOrPresentLocked() error {
	if e.snap.Features.IdentityViaEmail && e.verifiedEmail == "" {
		return e.transition(StateIdentityPending)
	}
	return e.transition(StatePresenting)
}

// restoreAgeFlagLocked reads the cached "already verified" flag. The flag only
// suppresses a redundant prompt; an authoritative outcome arriving later
// always overrides it.
func (e *Engine) restoreAgeFlagLocked(ctx context.Context) bool {
	var verified bool
	key := cache.Key(e.cfg.WidgetID.String(), ageVerifiedKey)
	if err := cache.GetJSON(ctx, e.store, key, &verified); err != nil {
		return false
	}
	e.ageVerified = verified
	return verified
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Gate exposes the resource gate so the host can route intercepted resource
// declarations through it.
func (e *Engine) Gate() *gate.Gate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate
}

// ShowBanner resolves the governing display rule for pageURL and, when the
// resolution is presentable, initializes preference capture and makes the
// surface visible. A fail-closed resolution leaves the surface hidden.
func (e *Engine) ShowBanner(ctx context.Context, pageURL string) (*Presentation, error) {
	e.mu.Lock()
	// A decided visitor is not re-prompted; ManagePreferences reopens
	// capture explicitly.
	if e.state == StateComplete {
		e.mu.Unlock()
		return nil, nil
	}
	if err := e.requireState(StatePresenting); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	res := e.resolver.Resolve(e.snap.Rules, rules.NavigationContext{URL: pageURL, Page: e.page}, e.snap.Activities)
	if !res.Present {
		e.visible = false
		e.presentation = nil
		e.mu.Unlock()
		return nil, nil
	}

	p := &Presentation{Rule: res.Rule, Activities: res.Activities.Clone()}
	if res.Rule != nil {
		p.Notice = res.Rule.NoticeOverride
	}
	e.presentation = p
	e.sel = e.newSelectionLocked(res.Activities)
	e.visible = true
	lang := e.cfg.Language
	e.mu.Unlock()

	if lang != "" {
		e.translatePresentation(ctx, lang, p)
	}
	return p, nil
}

// Hide removes the presentation surface without touching captured state.
func (e *Engine) Hide() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = false
}

// Visible reports whether the presentation surface is showing.
func (e *Engine) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// CurrentConsent returns a copy of the consent on record, or nil.
func (e *Engine) CurrentConsent() *domain.ConsentRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.consent == nil {
		return nil
	}
	copied := *e.consent
	return &copied
}

// ManagePreferences reopens preference capture over the full activity
// catalog, seeded from the consent on record.
func (e *Engine) ManagePreferences() (*Presentation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.transition(StatePresenting); err != nil {
		return nil, err
	}
	p := &Presentation{Activities: e.snap.Activities.Clone()}
	e.presentation = p
	e.sel = e.newSelectionLocked(e.snap.Activities)
	e.visible = true
	return p, nil
}

// Revoke withdraws all previously given consent: the record flips to revoked,
// every gated category is revoked on the gate (future resources blocked,
// known storage keys removed), the cache is updated, and the authority is
// notified. Resources that already executed cannot be undone.
func (e *Engine) Revoke(ctx context.Context) error {
	e.mu.Lock()
	if e.consent == nil {
		e.mu.Unlock()
		return sentinel.ErrNotFound
	}
	if e.submitInFlight {
		e.mu.Unlock()
		return fmt.Errorf("%w: submission already in flight", sentinel.ErrConflict)
	}
	if err := e.transition(StateSubmitting); err != nil {
		e.mu.Unlock()
		return err
	}
	e.submitInFlight = true

	revoked := *e.consent
	revoked.Status = domain.StatusRevoked
	revoked.Rejected = append(append([]id.ID(nil), revoked.Rejected...), revoked.Accepted...)
	revoked.Accepted = nil
	revoked.AcceptedPurposes = nil
	revoked.CreatedAt = e.now()
	revoked.ExpiresAt = time.Time{}

	for _, category := range e.consentedCategoriesLocked() {
		e.gate.Revoke(ctx, category)
	}
	e.mu.Unlock()

	err := e.persistAndSubmit(ctx, revoked, audit.EventConsentRevoked)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitInFlight = false
	if err != nil {
		// Local revocation already took effect; the authority write failed.
		e.logger.Warn("revocation submit failed", "error", err.Error())
	}
	return e.transition(StateComplete)
}

// consentedCategoriesLocked maps the accepted activity set to the gating
// categories those activities govern.
func (e *Engine) consentedCategoriesLocked() []string {
	if e.consent == nil || e.snap == nil {
		return nil
	}
	return e.snap.Activities.CategoriesFor(e.consent.Accepted)
}

func (e *Engine) translatePresentation(ctx context.Context, lang string, p *Presentation) {
	sources := make([]string, 0, len(p.Activities)+1)
	for _, a := range p.Activities {
		sources = append(sources, a.Name)
	}
	if p.Notice != "" {
		sources = append(sources, p.Notice)
	}
	if len(sources) == 0 {
		return
	}
	translated, err := e.translate.Translate(ctx, lang, sources)
	if err != nil {
		e.logger.Warn("presentation translation failed, using source texts", "error", err.Error())
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range p.Activities {
		p.Activities[i].Name = translated[i]
	}
	if p.Notice != "" {
		p.Notice = translated[len(translated)-1]
	}
}

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Emit(ctx, event); err != nil {
		e.logger.Warn("audit emit failed", "action", event.Action, "error", err.Error())
	}
}

// Close tears the engine down: polling stops and the gate destroys its queue.
func (e *Engine) Close() {
	e.StopPolling()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gate != nil {
		e.gate.Close()
	}
}
