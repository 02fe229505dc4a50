package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"consentgate/internal/domain"
	"consentgate/internal/snapshot"
	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/sentinel"
)

//go:generate mockgen -source=api.go -destination=mocks/authority-mocks.go -package=mocks Authority

// Authority is the remote consent authority as the engine sees it. *Client
// implements it; engine tests mock it.
type Authority interface {
	// FetchConfig returns the raw configuration document for a widget,
	// cache-busted per call. sentinel.ErrGone means the configuration no
	// longer exists and polling must stop.
	FetchConfig(ctx context.Context, widgetID id.WidgetID) (snapshot.WireConfig, error)
	SubmitConsent(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	// QueryConsent returns sentinel.ErrNotFound when no record exists.
	QueryConsent(ctx context.Context, widgetID id.WidgetID, visitor id.VisitorID) (QueryResult, error)
	SendOTP(ctx context.Context, widgetID id.WidgetID, visitor id.VisitorID, email string) error
	VerifyOTP(ctx context.Context, widgetID id.WidgetID, visitor id.VisitorID, email, code string) (OTPResult, error)
	CreateAgeSession(ctx context.Context, widgetID id.WidgetID, visitor id.VisitorID, returnURL string) (AgeSession, error)
	QueryAgeSession(ctx context.Context, sessionID string) (AgeSessionState, error)
	TranslateBatch(ctx context.Context, lang string, sources []string) ([]string, error)
}

// SubmitRequest is the validated consent payload.
type SubmitRequest struct {
	WidgetID         id.WidgetID         `json:"widgetId"`
	VisitorID        id.VisitorID        `json:"visitorId"`
	Status           string              `json:"status"`
	Accepted         []string            `json:"accepted"`
	Rejected         []string            `json:"rejected"`
	AcceptedPurposes map[string][]string `json:"acceptedPurposes,omitempty"`
	RejectedPurposes map[string][]string `json:"rejectedPurposes,omitempty"`
	VerifiedEmail    string              `json:"verifiedEmail,omitempty"`
	Metadata         map[string]string   `json:"metadata,omitempty"`
}

// SubmitResult is the authority's acknowledgement.
type SubmitResult struct {
	ExpiresAt time.Time `json:"expiresAt"`
	// DurableIdentity, when set, must be adopted for all subsequent storage
	// and submission.
	DurableIdentity string `json:"durableIdentity,omitempty"`
}

// QueryResult wraps an existing unexpired record.
type QueryResult struct {
	Record domain.ConsentRecord
	// Merged indicates the record was found via identity-merge across
	// devices.
	Merged          bool
	DurableIdentity string
}

// OTPResult is the verification answer.
type OTPResult struct {
	Verified bool `json:"verified"`
	// DurableIdentity, when set and different from the session identity,
	// replaces it (identity stabilization).
	DurableIdentity string `json:"durableIdentity,omitempty"`
}

// AgeSession is a freshly created server-verified age check.
type AgeSession struct {
	ID          string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// AgeSessionState is the queried status and authoritative outcome.
type AgeSessionState struct {
	Status  domain.AgeSessionStatus `json:"status"`
	Outcome domain.AgeOutcome       `json:"outcome"`
}

// wire shapes private to the client.

type consentRecordWire struct {
	VisitorID        string              `json:"visitorId"`
	WidgetID         string              `json:"widgetId"`
	Status           string              `json:"status"`
	Accepted         []string            `json:"accepted"`
	Rejected         []string            `json:"rejected"`
	AcceptedPurposes map[string][]string `json:"acceptedPurposes,omitempty"`
	RejectedPurposes map[string][]string `json:"rejectedPurposes,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	ExpiresAt        time.Time           `json:"expiresAt"`
	VerifiedEmail    string              `json:"verifiedEmail,omitempty"`
}

type queryResponseWire struct {
	Record          *consentRecordWire `json:"record"`
	Merged          bool               `json:"merged,omitempty"`
	DurableIdentity string             `json:"durableIdentity,omitempty"`
}

// FetchConfig fetches the widget configuration. Every call is cache-busted;
// a 404 is terminal for this widget instance.
func (c *Client) FetchConfig(ctx context.Context, widgetID id.WidgetID) (snapshot.WireConfig, error) {
	var cfg snapshot.WireConfig
	err := c.do(ctx, "config.fetch", http.MethodGet,
		"/v1/widgets/"+url.PathEscape(widgetID.String())+"/config", cacheBust(), nil, &cfg)
	if errors.Is(err, sentinel.ErrNotFound) {
		return snapshot.WireConfig{}, fmt.Errorf("widget %s: %w", widgetID, sentinel.ErrGone)
	}
	if err != nil {
		return snapshot.WireConfig{}, err
	}
	return cfg, nil
}

func (c *Client) SubmitConsent(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	var res SubmitResult
	if err := c.do(ctx, "consent.submit", http.MethodPost, "/v1/consents", nil, req, &res); err != nil {
		return SubmitResult{}, err
	}
	return res, nil
}

func (c *Client) QueryConsent(ctx context.Context, widgetID id.WidgetID, visitor id.VisitorID) (QueryResult, error) {
	var resp queryResponseWire
	path := "/v1/consents/" + url.PathEscape(widgetID.String()) + "/" + url.PathEscape(visitor.String())
	if err := c.do(ctx, "consent.query", http.MethodGet, path, nil, nil, &resp); err != nil {
		return QueryResult{}, err
	}
	if resp.Record == nil {
		return QueryResult{}, sentinel.ErrNotFound
	}
	record, err := recordFromWire(*resp.Record)
	if err != nil {
		return QueryResult{}, fmt.Errorf("consent.query: %w", err)
	}
	return QueryResult{
		Record:          record,
		Merged:          resp.Merged,
		DurableIdentity: resp.DurableIdentity,
	}, nil
}

func (c *Client) SendOTP(ctx context.Context, widgetID id.WidgetID, visitor id.VisitorID, email string) error {
	body := map[string]string{
		"widgetId":  widgetID.String(),
		"visitorId": visitor.String(),
		"email":     email,
	}
	return c.do(ctx, "otp.send", http.MethodPost, "/v1/otp/send", nil, body, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, widgetID id.WidgetID, visitor id.VisitorID, email, code string) (OTPResult, error) {
	body := map[string]string{
		"widgetId":  widgetID.String(),
		"visitorId": visitor.String(),
		"email":     email,
		"code":      code,
	}
	var res OTPResult
	if err := c.do(ctx, "otp.verify", http.MethodPost, "/v1/otp/verify", nil, body, &res); err != nil {
		return OTPResult{}, err
	}
	return res, nil
}

func (c *Client) CreateAgeSession(ctx context.Context, widgetID id.WidgetID, visitor id.VisitorID, returnURL string) (AgeSession, error) {
	body := map[string]string{
		"widgetId":  widgetID.String(),
		"visitorId": visitor.String(),
		"returnUrl": returnURL,
	}
	var res AgeSession
	if err := c.do(ctx, "age.create", http.MethodPost, "/v1/age-sessions", nil, body, &res); err != nil {
		return AgeSession{}, err
	}
	return res, nil
}

func (c *Client) QueryAgeSession(ctx context.Context, sessionID string) (AgeSessionState, error) {
	var res AgeSessionState
	path := "/v1/age-sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "age.query", http.MethodGet, path, nil, nil, &res); err != nil {
		return AgeSessionState{}, err
	}
	return res, nil
}

// TranslateBatch translates sources into lang, returning a parallel list.
func (c *Client) TranslateBatch(ctx context.Context, lang string, sources []string) ([]string, error) {
	body := map[string]any{"lang": lang, "sources": sources}
	var res struct {
		Translations []string `json:"translations"`
	}
	if err := c.do(ctx, "translate.batch", http.MethodPost, "/v1/translate", nil, body, &res); err != nil {
		return nil, err
	}
	if len(res.Translations) != len(sources) {
		return nil, fmt.Errorf("translate.batch: got %d translations for %d sources",
			len(res.Translations), len(sources))
	}
	return res.Translations, nil
}

func recordFromWire(w consentRecordWire) (domain.ConsentRecord, error) {
	visitor, err := id.ParseVisitorID(w.VisitorID)
	if err != nil {
		return domain.ConsentRecord{}, err
	}
	accepted, _ := id.FilterIDs(w.Accepted)
	rejected, _ := id.FilterIDs(w.Rejected)
	record := domain.ConsentRecord{
		VisitorID:     visitor,
		WidgetID:      id.WidgetID(w.WidgetID),
		Status:        domain.ConsentStatus(w.Status),
		Accepted:      accepted,
		Rejected:      rejected,
		CreatedAt:     w.CreatedAt,
		ExpiresAt:     w.ExpiresAt,
		VerifiedEmail: w.VerifiedEmail,
	}
	if len(w.AcceptedPurposes) > 0 {
		record.AcceptedPurposes = purposeMapFromWire(w.AcceptedPurposes)
	}
	if len(w.RejectedPurposes) > 0 {
		record.RejectedPurposes = purposeMapFromWire(w.RejectedPurposes)
	}
	return record, nil
}

func purposeMapFromWire(in map[string][]string) map[id.ID][]id.ID {
	out := make(map[id.ID][]id.ID, len(in))
	for rawAct, rawPurposes := range in {
		act, err := id.ParseID(rawAct)
		if err != nil {
			continue
		}
		purposes, _ := id.FilterIDs(rawPurposes)
		out[act] = purposes
	}
	return out
}
