package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"consentgate/internal/domain"
	"consentgate/internal/remote"
	id "consentgate/pkg/domain"
	"consentgate/pkg/testutil"
)

// Walks the longest path a visitor can take: age verification, email
// identity, then a partial consent decision.
func TestFullJourney_AgeThenIdentityThenConsent(t *testing.T) {
	cfg := testWireConfig()
	cfg.Features.AgeVerificationMode = "server"
	cfg.Features.IdentityViaEmail = true

	f := newFixture(t, cfg)
	expectNoRecord(f)
	ctx := context.Background()
	require.NoError(t, f.engine.Start(ctx))

	testutil.Given(t, "a new visitor on a widget requiring age and identity checks", func(t *testing.T) {
		assert.Equal(t, StateAgePending, f.engine.State())
		assert.False(t, f.engine.Gate().Consented("analytics"))
	})

	testutil.When(t, "the age verifier confirms an adult", func(t *testing.T) {
		f.authority.EXPECT().
			CreateAgeSession(gomock.Any(), id.WidgetID("widget-1"), gomock.Any(), "").
			Return(remote.AgeSession{ID: "session-1", RedirectURL: "https://verify.example/s1"}, nil)
		f.authority.EXPECT().
			QueryAgeSession(gomock.Any(), "session-1").
			Return(remote.AgeSessionState{Status: domain.AgeSessionVerified, Outcome: domain.OutcomeVerifiedAdult}, nil)

		_, err := f.engine.BeginAgeVerification(ctx)
		require.NoError(t, err)
		require.NoError(t, f.engine.ResumeAgeVerification(ctx, "session-1"))
		assert.Equal(t, StateIdentityPending, f.engine.State())
	})

	testutil.When(t, "the visitor verifies their email", func(t *testing.T) {
		f.authority.EXPECT().
			SendOTP(gomock.Any(), id.WidgetID("widget-1"), gomock.Any(), "ada@example.com").
			Return(nil)
		f.authority.EXPECT().
			VerifyOTP(gomock.Any(), id.WidgetID("widget-1"), gomock.Any(), "ada@example.com", "123456").
			Return(remote.OTPResult{Verified: true, DurableIdentity: "dv-ada"}, nil)

		require.NoError(t, f.engine.RequestIdentityCode(ctx, "ada@example.com"))
		require.NoError(t, f.engine.VerifyIdentityCode(ctx, "ada@example.com", "123456"))
		assert.Equal(t, StatePresenting, f.engine.State())
	})

	testutil.When(t, "they accept analytics and reject marketing", func(t *testing.T) {
		_, err := f.engine.ShowBanner(ctx, "https://shop.example/")
		require.NoError(t, err)
		require.NoError(t, f.engine.SetActivity("analytics-activity", true))
		require.NoError(t, f.engine.SetActivity("marketing-activity", false))

		f.authority.EXPECT().
			SubmitConsent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req remote.SubmitRequest) (remote.SubmitResult, error) {
				assert.Equal(t, "partial", req.Status)
				assert.Equal(t, id.VisitorID("dv-ada"), req.VisitorID)
				assert.Equal(t, "ada@example.com", req.VerifiedEmail)
				return remote.SubmitResult{ExpiresAt: testNow.Add(180 * 24 * time.Hour)}, nil
			})
		require.NoError(t, f.engine.Confirm(ctx))
	})

	testutil.Then(t, "the decision is complete and only analytics is released", func(t *testing.T) {
		assert.Equal(t, StateComplete, f.engine.State())
		assert.False(t, f.engine.Visible())
		assert.True(t, f.engine.Gate().Consented("analytics"))
		assert.False(t, f.engine.Gate().Consented("marketing"))

		consent := f.engine.CurrentConsent()
		require.NotNil(t, consent)
		assert.Equal(t, domain.StatusPartial, consent.Status)
	})
}
