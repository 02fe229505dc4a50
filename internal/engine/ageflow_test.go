package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"consentgate/internal/cache"
	"consentgate/internal/domain"
	"consentgate/internal/remote"
	id "consentgate/pkg/domain"
	dErrors "consentgate/pkg/domain-errors"
	"consentgate/pkg/platform/sentinel"
)

func newAgeFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	cfg := testWireConfig()
	cfg.Features.AgeVerificationMode = mode
	f := newFixture(t, cfg)
	expectNoRecord(f)
	require.NoError(t, f.engine.Start(context.Background()))
	return f
}

func TestAgeFlow_ServerVerifiedAdultProceedsToPresenting(t *testing.T) {
	f := newAgeFixture(t, "server")
	require.Equal(t, StateAgePending, f.engine.State())

	f.authority.EXPECT().
		CreateAgeSession(gomock.Any(), id.WidgetID("widget-1"), gomock.Any(), "").
		Return(remote.AgeSession{ID: "session-1", RedirectURL: "https://verify.example/s1"}, nil)

	redirect, err := f.engine.BeginAgeVerification(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://verify.example/s1", redirect)

	// The pending session survives a reload.
	var pending domain.AgeVerificationSession
	key := cache.Key("widget-1", ageSessionKey)
	require.NoError(t, cache.GetJSON(context.Background(), f.store, key, &pending))
	assert.Equal(t, "session-1", pending.ID)

	f.authority.EXPECT().
		QueryAgeSession(gomock.Any(), "session-1").
		Return(remote.AgeSessionState{Status: domain.AgeSessionVerified, Outcome: domain.OutcomeVerifiedAdult}, nil)

	// Empty session id: the persisted pending session resolves it.
	require.NoError(t, f.engine.ResumeAgeVerification(context.Background(), ""))
	assert.Equal(t, StatePresenting, f.engine.State())

	// Pending record is spent, verified flag is cached.
	_, err = f.store.Get(context.Background(), key)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	var verified bool
	require.NoError(t, cache.GetJSON(context.Background(), f.store, cache.Key("widget-1", ageVerifiedKey), &verified))
	assert.True(t, verified)
}

func TestAgeFlow_BlockedMinorOverridesCachedFlag(t *testing.T) {
	cfg := testWireConfig()
	cfg.Features.AgeVerificationMode = "server"

	f := newFixture(t, cfg)
	expectNoRecord(f)

	// A previous visit cached verified=true, so startup skips the prompt.
	flagKey := cache.Key("widget-1", ageVerifiedKey)
	require.NoError(t, cache.PutJSON(context.Background(), f.store, flagKey, true, time.Hour))
	require.NoError(t, f.engine.Start(context.Background()))
	require.Equal(t, StatePresenting, f.engine.State())

	// The authoritative outcome arrives and says blocked_minor.
	f.authority.EXPECT().
		QueryAgeSession(gomock.Any(), "session-9").
		Return(remote.AgeSessionState{Status: domain.AgeSessionFailed, Outcome: domain.OutcomeBlockedMinor}, nil)

	require.NoError(t, f.engine.ResumeAgeVerification(context.Background(), "session-9"))
	assert.Equal(t, StateAgeBlocked, f.engine.State())
	assert.False(t, f.engine.Visible())

	// The flag no longer waves the visitor through.
	_, err := f.store.Get(context.Background(), flagKey)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	// No submission path exists from the blocked state; no SubmitConsent
	// expectation was registered and none may fire.
	err = f.engine.Confirm(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestAgeFlow_ExpiredSessionRequiresReverification(t *testing.T) {
	f := newAgeFixture(t, "server")

	f.authority.EXPECT().
		QueryAgeSession(gomock.Any(), "session-2").
		Return(remote.AgeSessionState{Status: domain.AgeSessionFailed, Outcome: domain.OutcomeExpired}, nil)

	err := f.engine.ResumeAgeVerification(context.Background(), "session-2")
	assert.ErrorIs(t, err, sentinel.ErrExpired)
	assert.Equal(t, StateAgePending, f.engine.State())
}

func TestAgeFlow_ResumeWithoutPendingSession(t *testing.T) {
	f := newAgeFixture(t, "server")

	err := f.engine.ResumeAgeVerification(context.Background(), "")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestAgeFlow_SelfAttestedThresholds(t *testing.T) {
	t.Run("adult proceeds", func(t *testing.T) {
		f := newAgeFixture(t, "self_attested")
		require.NoError(t, f.engine.AttestBirthYear(context.Background(), testNow.Year()-30))
		assert.Equal(t, StatePresenting, f.engine.State())
	})

	t.Run("minor is blocked", func(t *testing.T) {
		f := newAgeFixture(t, "self_attested")
		require.NoError(t, f.engine.AttestBirthYear(context.Background(), testNow.Year()-10))
		assert.Equal(t, StateAgeBlocked, f.engine.State())
	})

	t.Run("future year is invalid input", func(t *testing.T) {
		f := newAgeFixture(t, "self_attested")
		err := f.engine.AttestBirthYear(context.Background(), testNow.Year()+1)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Equal(t, StateAgePending, f.engine.State())
	})
}

func TestAgeFlow_ServerFlowTakesPriorityOverSelfAttested(t *testing.T) {
	f := newAgeFixture(t, "server")

	err := f.engine.AttestBirthYear(context.Background(), testNow.Year()-30)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestIdentityFlow_VerifyAdvancesAndStabilizes(t *testing.T) {
	cfg := testWireConfig()
	cfg.Features.IdentityViaEmail = true

	f := newFixture(t, cfg)
	expectNoRecord(f)
	require.NoError(t, f.engine.Start(context.Background()))
	require.Equal(t, StateIdentityPending, f.engine.State())

	f.authority.EXPECT().
		SendOTP(gomock.Any(), id.WidgetID("widget-1"), gomock.Any(), "visitor@example.com").
		Return(nil)
	require.NoError(t, f.engine.RequestIdentityCode(context.Background(), "visitor@example.com"))

	f.authority.EXPECT().
		VerifyOTP(gomock.Any(), id.WidgetID("widget-1"), gomock.Any(), "visitor@example.com", "123456").
		Return(remote.OTPResult{Verified: true, DurableIdentity: "durable-visitor-3"}, nil)

	require.NoError(t, f.engine.VerifyIdentityCode(context.Background(), "visitor@example.com", "123456"))
	assert.Equal(t, StatePresenting, f.engine.State())

	var stored string
	require.NoError(t, cache.GetJSON(context.Background(), f.store, cache.Key("widget-1", "visitor-id"), &stored))
	assert.Equal(t, "durable-visitor-3", stored)
}

func TestIdentityFlow_WrongCodeStaysPending(t *testing.T) {
	cfg := testWireConfig()
	cfg.Features.IdentityViaEmail = true

	f := newFixture(t, cfg)
	expectNoRecord(f)
	require.NoError(t, f.engine.Start(context.Background()))

	f.authority.EXPECT().
		VerifyOTP(gomock.Any(), id.WidgetID("widget-1"), gomock.Any(), "visitor@example.com", "000000").
		Return(remote.OTPResult{Verified: false}, nil)

	err := f.engine.VerifyIdentityCode(context.Background(), "visitor@example.com", "000000")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Equal(t, StateIdentityPending, f.engine.State())
}

func TestIdentityFlow_BadEmailRejectedLocally(t *testing.T) {
	cfg := testWireConfig()
	cfg.Features.IdentityViaEmail = true

	f := newFixture(t, cfg)
	expectNoRecord(f)
	require.NoError(t, f.engine.Start(context.Background()))

	err := f.engine.RequestIdentityCode(context.Background(), "not-an-email")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
