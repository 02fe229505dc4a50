package handler

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentgate/internal/authority/service"
	"consentgate/internal/authority/store/memory"
	"consentgate/internal/authority/token"
	"consentgate/internal/platform/metrics"
	"consentgate/pkg/testutil"
)

const handlerTestConfig = `{
	"widgetId": "widget-1",
	"activities": [
		{
			"id": "analytics-activity",
			"name": "Usage analytics",
			"trackingCategory": "analytics",
			"purposes": [{"id": "measure", "name": "Measurement", "legalBasis": "consent"}]
		}
	],
	"features": {"consentDurationDays": 30}
}`

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	st := memory.New()
	tokens := token.NewService("test-signing-key", "consentgate-test")
	logger := slog.New(slog.DiscardHandler)
	m := metrics.NewWith(prometheus.NewRegistry())
	svc := service.New(st, tokens, logger, m, 10*time.Minute, time.Hour)

	r := chi.NewRouter()
	New(svc, logger, m).Register(r)
	return r
}

func putConfig(t *testing.T, router http.Handler) {
	t.Helper()
	req := testutil.NewRequestWithBody(t, http.MethodPut, "/v1/widgets/widget-1/config", handlerTestConfig)
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestConfigEndpoints(t *testing.T) {
	router := newTestRouter(t)

	// Unknown widget is a 404.
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/widgets/widget-1/config"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	putConfig(t, router)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/widgets/widget-1/config"))
	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	testutil.AssertJSONContains(t, rr, "widgetId", "widget-1")

	// A payload that does not normalize is rejected before storage.
	rr = testutil.DoRequest(router,
		testutil.NewRequestWithBody(t, http.MethodPut, "/v1/widgets/widget-2/config", `{"widgetId":"widget-2"}`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")

	// Delete makes the config a 404 again, the signal clients stop on.
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/v1/widgets/widget-1/config"))
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/widgets/widget-1/config"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestConsentSubmitAndQuery(t *testing.T) {
	router := newTestRouter(t)
	putConfig(t, router)

	submitReq := testutil.NewJSONRequest(t, http.MethodPost, "/v1/consents", map[string]any{
		"widgetId":  "widget-1",
		"visitorId": "visitor-1",
		"status":    "partial",
		"accepted":  []string{"analytics-activity"},
		"rejected":  []string{},
	})
	submitReq.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")
	rr := testutil.DoRequest(router, submitReq)
	testutil.AssertStatusOK(t, rr)
	submitted := testutil.UnmarshalResponse[struct {
		ExpiresAt time.Time `json:"expiresAt"`
	}](t, rr)
	assert.False(t, submitted.ExpiresAt.IsZero())

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/consents/widget-1/visitor-1"))
	testutil.AssertStatusOK(t, rr)
	queried := testutil.UnmarshalResponse[struct {
		Record struct {
			Status   string   `json:"status"`
			Accepted []string `json:"accepted"`
		} `json:"record"`
	}](t, rr)
	assert.Equal(t, "partial", queried.Record.Status)
	assert.Equal(t, []string{"analytics-activity"}, queried.Record.Accepted)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/consents/widget-1/stranger"))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	// An unknown status is a validation failure, not a server error.
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/consents", map[string]any{
		"widgetId":  "widget-1",
		"visitorId": "visitor-1",
		"status":    "maybe",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invalid_consent")
}

func TestOTPEndpoints(t *testing.T) {
	router := newTestRouter(t)
	putConfig(t, router)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/otp/send", map[string]string{
		"widgetId":  "widget-1",
		"visitorId": "visitor-1",
		"email":     "not-an-email",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/otp/send", map[string]string{
		"widgetId":  "widget-1",
		"visitorId": "visitor-1",
		"email":     "ada@example.com",
	}))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	// The wrong code verifies to false rather than erroring.
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/otp/verify", map[string]string{
		"widgetId":  "widget-1",
		"visitorId": "visitor-1",
		"email":     "ada@example.com",
		"code":      "000000",
	}))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "verified", false)
}

func TestAgeSessionEndpoints(t *testing.T) {
	router := newTestRouter(t)
	putConfig(t, router)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/age-sessions", map[string]string{
		"widgetId":  "widget-1",
		"visitorId": "visitor-1",
		"returnUrl": "https://shop.example/checkout",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[struct {
		ID          string `json:"sessionId"`
		RedirectURL string `json:"redirectUrl"`
	}](t, rr)
	require.NotEmpty(t, created.ID)
	assert.Contains(t, created.RedirectURL, created.ID)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost,
		"/v1/age-sessions/"+created.ID+"/outcome", map[string]string{"outcome": "verified_adult"}))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/age-sessions/"+created.ID))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "verified")
	testutil.AssertJSONContains(t, rr, "outcome", "verified_adult")

	// Double resolution conflicts.
	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost,
		"/v1/age-sessions/"+created.ID+"/outcome", map[string]string{"outcome": "blocked_minor"}))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestTranslateEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/translate", map[string]any{
		"lang":    "fr",
		"sources": []string{"Usage analytics"},
	}))
	testutil.AssertStatusOK(t, rr)
	out := testutil.UnmarshalResponse[struct {
		Translations []string `json:"translations"`
	}](t, rr)
	assert.Equal(t, []string{"[fr] Usage analytics"}, out.Translations)
}
