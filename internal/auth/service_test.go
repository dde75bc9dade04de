package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncfakude30/personal-asset-manager/internal/apperr"
)

func newTestService(sink *countingSink, secret string) *Service {
	opts := []Option{WithClock(fixedClock), WithMetrics(sink)}
	return NewService(
		NewIdentityVerifier("", opts...),
		NewIssuer(SessionConfig{SecretKey: secret}, opts...),
		opts...,
	)
}

func TestExchangeIssuesSessionForTokenUser(t *testing.T) {
	t.Parallel()

	sink := newCountingSink()
	svc := newTestService(sink, "secret")
	identity := signToken(t, identityClaims("u1", fixedNow.Add(time.Hour)), "provider")

	session, err := svc.Exchange(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)

	claims, err := NewSessionVerifier("secret", WithClock(fixedClock)).Verify(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	assert.Equal(t, 1, sink.get("auth.exchange.success"))
	assert.Equal(t, 1, sink.get("auth.verify_identity_token.success"))
	assert.Equal(t, 1, sink.get("auth.extract_user_id.success"))
	assert.Equal(t, 1, sink.get("auth.issue_session_token.success"))
}

func TestExchangeRejectsExpiredIdentity(t *testing.T) {
	t.Parallel()

	sink := newCountingSink()
	svc := newTestService(sink, "secret")
	identity := signToken(t, identityClaims("u1", fixedNow.Add(-time.Minute)), "provider")

	_, err := svc.Exchange(context.Background(), identity)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.Equal(t, 1, sink.get("auth.exchange.failure"))
	assert.Zero(t, sink.get("auth.issue_session_token.count"))
}

func TestExchangeWithoutSecret(t *testing.T) {
	t.Parallel()

	svc := newTestService(newCountingSink(), "")
	identity := signToken(t, identityClaims("u1", fixedNow.Add(time.Hour)), "provider")

	_, err := svc.Exchange(context.Background(), identity)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}
