// Package handler exposes the consent authority over HTTP.
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consentgate/internal/authority/service"
	"consentgate/internal/domain"
	"consentgate/internal/platform/metrics"
	"consentgate/internal/platform/middleware"
	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/platform/httputil"
	"consentgate/pkg/platform/middleware/metadata"
)

const maxBodyBytes = 1 << 20

// Handler routes authority API requests to the service.
type Handler struct {
	logger  *slog.Logger
	svc     *service.Service
	metrics *metrics.Metrics
}

func New(svc *service.Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		svc:     svc,
		metrics: m,
	}
}

// Register mounts the /v1 API onto r.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.Latency(h.metrics))
	api.Use(metadata.ClientMetadata)

	api.Get("/widgets/{widgetID}/config", h.handleGetConfig)
	api.Put("/widgets/{widgetID}/config", h.handlePutConfig)
	api.Delete("/widgets/{widgetID}/config", h.handleDeleteConfig)

	api.Post("/consents", h.handleSubmitConsent)
	api.Get("/consents/{widgetID}/{visitorID}", h.handleQueryConsent)

	api.Post("/otp/send", h.handleSendOTP)
	api.Post("/otp/verify", h.handleVerifyOTP)

	api.Post("/age-sessions", h.handleCreateAgeSession)
	api.Get("/age-sessions/{sessionID}", h.handleQueryAgeSession)
	api.Post("/age-sessions/{sessionID}/outcome", h.handleResolveAgeSession)

	api.Post("/translate", h.handleTranslate)

	r.Mount("/v1", api)
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	payload, err := h.svc.GetWidgetConfig(r.Context(), chi.URLParam(r, "widgetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	// Configuration is always served fresh, clients cache-bust anyway.
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "cannot read request body"))
		return
	}
	if err := h.svc.PutWidgetConfig(r.Context(), chi.URLParam(r, "widgetID"), payload); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteWidgetConfig(r.Context(), chi.URLParam(r, "widgetID")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

type submitConsentRequest struct {
	WidgetID         string              `json:"widgetId"`
	VisitorID        string              `json:"visitorId"`
	Status           string              `json:"status"`
	Accepted         []string            `json:"accepted"`
	Rejected         []string            `json:"rejected"`
	AcceptedPurposes map[string][]string `json:"acceptedPurposes,omitempty"`
	RejectedPurposes map[string][]string `json:"rejectedPurposes,omitempty"`
	VerifiedEmail    string              `json:"verifiedEmail,omitempty"`
	Metadata         map[string]string   `json:"metadata,omitempty"`
}

type submitConsentResponse struct {
	ExpiresAt       time.Time `json:"expiresAt"`
	DurableIdentity string    `json:"durableIdentity,omitempty"`
}

func (h *Handler) handleSubmitConsent(w http.ResponseWriter, r *http.Request) {
	var req submitConsentRequest
	if !h.decode(w, r, &req) {
		return
	}

	// Client-sent metadata is kept, request-derived fields win.
	md := req.Metadata
	if md == nil {
		md = map[string]string{}
	}
	for k, v := range metadata.Describe(r.Context()) {
		md[k] = v
	}

	out, err := h.svc.RecordConsent(r.Context(), service.SubmitInput{
		WidgetID:         req.WidgetID,
		VisitorID:        req.VisitorID,
		Status:           req.Status,
		Accepted:         req.Accepted,
		Rejected:         req.Rejected,
		AcceptedPurposes: req.AcceptedPurposes,
		RejectedPurposes: req.RejectedPurposes,
		VerifiedEmail:    req.VerifiedEmail,
		Metadata:         md,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, submitConsentResponse{
		ExpiresAt:       out.ExpiresAt,
		DurableIdentity: out.DurableIdentity,
	})
}

type consentRecordResponse struct {
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

type queryConsentResponse struct {
	Record          *consentRecordResponse `json:"record"`
	Merged          bool                   `json:"merged,omitempty"`
	DurableIdentity string                 `json:"durableIdentity,omitempty"`
}

func (h *Handler) handleQueryConsent(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.LookupConsent(r.Context(), chi.URLParam(r, "widgetID"), chi.URLParam(r, "visitorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec := out.Record
	httputil.WriteJSON(w, http.StatusOK, queryConsentResponse{
		Record: &consentRecordResponse{
			VisitorID:        rec.VisitorID,
			WidgetID:         rec.WidgetID,
			Status:           rec.Status,
			Accepted:         rec.Accepted,
			Rejected:         rec.Rejected,
			AcceptedPurposes: rec.AcceptedPurposes,
			RejectedPurposes: rec.RejectedPurposes,
			CreatedAt:        rec.CreatedAt,
			ExpiresAt:        rec.ExpiresAt,
			VerifiedEmail:    rec.VerifiedEmail,
		},
		Merged:          out.Merged,
		DurableIdentity: out.DurableIdentity,
	})
}

type otpSendRequest struct {
	WidgetID  string `json:"widgetId"`
	VisitorID string `json:"visitorId"`
	Email     string `json:"email"`
}

func (h *Handler) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SendOTP(r.Context(), req.WidgetID, req.VisitorID, req.Email); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type otpVerifyRequest struct {
	WidgetID  string `json:"widgetId"`
	VisitorID string `json:"visitorId"`
	Email     string `json:"email"`
	Code      string `json:"code"`
}

type otpVerifyResponse struct {
	Verified        bool   `json:"verified"`
	DurableIdentity string `json:"durableIdentity,omitempty"`
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.VerifyOTP(r.Context(), req.WidgetID, req.VisitorID, req.Email, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, otpVerifyResponse{
		Verified:        out.Verified,
		DurableIdentity: out.DurableIdentity,
	})
}

type ageSessionCreateRequest struct {
	WidgetID  string `json:"widgetId"`
	VisitorID string `json:"visitorId"`
	ReturnURL string `json:"returnUrl"`
}

type ageSessionCreateResponse struct {
	ID          string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

func (h *Handler) handleCreateAgeSession(w http.ResponseWriter, r *http.Request) {
	var req ageSessionCreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.CreateAgeSession(r.Context(), req.WidgetID, req.VisitorID, req.ReturnURL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ageSessionCreateResponse{
		ID:          out.ID,
		RedirectURL: out.RedirectURL,
	})
}

type ageSessionStateResponse struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome"`
}

func (h *Handler) handleQueryAgeSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.QueryAgeSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ageSessionStateResponse{
		Status:  string(state.Status),
		Outcome: string(state.Outcome),
	})
}

type ageSessionOutcomeRequest struct {
	Outcome string `json:"outcome"`
}

func (h *Handler) handleResolveAgeSession(w http.ResponseWriter, r *http.Request) {
	var req ageSessionOutcomeRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.svc.ResolveAgeSession(r.Context(), chi.URLParam(r, "sessionID"), domain.AgeOutcome(req.Outcome))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

type translateRequest struct {
	Lang    string   `json:"lang"`
	Sources []string `json:"sources"`
}

type translateResponse struct {
	Translations []string `json:"translations"`
}

func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !h.decode(w, r, &req) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, translateResponse{
		Translations: h.svc.Translate(req.Lang, req.Sources),
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return false
	}
	return true
}
