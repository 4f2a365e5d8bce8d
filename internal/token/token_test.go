package token

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/dropDatabas3/hellokeys/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T) (*Issuer, *memory.Store) {
	t.Helper()
	s := memory.New()
	iss, err := NewIssuer(IssuerConfig{
		Secret:     "unit-test-secret",
		Iss:        "hellokeys",
		Aud:        "hellokeys-clients",
		SessionTTL: time.Hour,
	}, s.Users())
	require.NoError(t, err)
	return iss, s
}

func TestOTPTokenRoundTrip(t *testing.T) {
	iss, _ := newIssuer(t)

	raw, err := iss.IssueOTPToken("alice")
	require.NoError(t, err)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.True(t, claims.CanValidateOtp())
	require.False(t, claims.CanAccessPasskey())
	require.False(t, claims.IsSession())
}

func TestScopesDoNotEscalate(t *testing.T) {
	iss, _ := newIssuer(t)

	otpRaw, _ := iss.IssueOTPToken("alice")
	pkRaw, _ := iss.IssuePasskeyToken("alice")

	otpClaims, err := iss.Parse(otpRaw)
	require.NoError(t, err)
	pkClaims, err := iss.Parse(pkRaw)
	require.NoError(t, err)

	// Un token OTP no habilita passkey, y viceversa.
	require.False(t, otpClaims.CanAccessPasskey())
	require.False(t, pkClaims.CanValidateOtp())
}

func TestSessionToken(t *testing.T) {
	iss, s := newIssuer(t)
	ctx := context.Background()

	u, err := s.Users().Create(ctx, "alice", "Alice")
	require.NoError(t, err)

	raw, err := iss.IssueSessionToken(ctx, u.ID)
	require.NoError(t, err)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.True(t, claims.IsSession())
	require.False(t, claims.CanValidateOtp())
	require.False(t, claims.CanAccessPasskey())
}

func TestSessionTokenUnknownUser(t *testing.T) {
	iss, _ := newIssuer(t)
	_, err := iss.IssueSessionToken(context.Background(), "no-such-id")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestParseRejectsExpired(t *testing.T) {
	iss, _ := newIssuer(t)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }

	raw, err := iss.IssueOTPToken("alice")
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(raw)
	require.Error(t, err)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	iss, _ := newIssuer(t)

	other, err := NewIssuer(IssuerConfig{
		Secret: "another-secret", Iss: "hellokeys", Aud: "hellokeys-clients", SessionTTL: time.Hour,
	}, nil)
	require.NoError(t, err)

	raw, err := other.IssueOTPToken("alice")
	require.NoError(t, err)

	_, err = iss.Parse(raw)
	require.Error(t, err)
}

func TestParseRejectsWrongIssuerAudience(t *testing.T) {
	iss, _ := newIssuer(t)

	other, err := NewIssuer(IssuerConfig{
		Secret: "unit-test-secret", Iss: "someone-else", Aud: "hellokeys-clients", SessionTTL: time.Hour,
	}, nil)
	require.NoError(t, err)

	raw, err := other.IssueOTPToken("alice")
	require.NoError(t, err)

	_, err = iss.Parse(raw)
	require.Error(t, err)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer(IssuerConfig{}, nil)
	require.Error(t, err)
}
