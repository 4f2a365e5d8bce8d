package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellokeys/internal/cache"
	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	authctrl "github.com/dropDatabas3/hellokeys/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/hellokeys/internal/http/controllers/health"
	"github.com/dropDatabas3/hellokeys/internal/metrics"
	"github.com/dropDatabas3/hellokeys/internal/otp"
	"github.com/dropDatabas3/hellokeys/internal/passkey"
	"github.com/dropDatabas3/hellokeys/internal/rate"
	"github.com/dropDatabas3/hellokeys/internal/store/memory"
	"github.com/dropDatabas3/hellokeys/internal/token"
)

// captureSender retiene el último código generado para poder validarlo en el
// mismo test, como haría el usuario leyendo su mail.
type captureSender struct {
	mu   sync.Mutex
	last string
}

func (s *captureSender) SendOtp(_ context.Context, _, code string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = code
	return nil
}

func (s *captureSender) code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type env struct {
	handler http.Handler
	store   *memory.Store
	iss     *token.Issuer
	sender  *captureSender
}

func newEnv(t *testing.T, limiter rate.Limiter) *env {
	t.Helper()

	c := cache.NewMemory("")
	store := memory.New()

	iss, err := token.NewIssuer(token.IssuerConfig{
		Secret:     "test-secret",
		Iss:        "hellokeys",
		Aud:        "clients",
		SessionTTL: time.Hour,
	}, store.Users())
	require.NoError(t, err)

	sender := &captureSender{}
	gate, err := otp.New("master-secret", c, sender, 5*time.Minute)
	require.NoError(t, err)

	svc, err := passkey.New(passkey.Config{
		RPID:          "localhost",
		RPDisplayName: "HelloKeys",
		RPOrigins:     []string{"http://localhost:8080"},
		CeremonyTTL:   5 * time.Minute,
	}, passkey.Deps{
		Users:  store.Users(),
		Creds:  store.Credentials(),
		Cache:  c,
		Tokens: iss,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	h := New(Deps{
		Auth: authctrl.NewControllers(authctrl.Deps{
			Gate:    gate,
			Passkey: svc,
			Tokens:  iss,
			Users:   store.Users(),
		}),
		Health:          healthctrl.NewController(c, nil),
		Tokens:          iss,
		MetricsRegistry: reg,
		OtpLimiter:      limiter,
	})

	return &env{handler: h, store: store, iss: iss, sender: sender}
}

func (e *env) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

// envelope es la forma del cuerpo de error que emite WriteError.
type envelope struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id"`
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) envelope {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	var body envelope
	decode(t, rec, &body)
	require.Equal(t, code, body.Code)
	return body
}

func TestOtpRequestAndValidate(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/otp/request", "", map[string]string{"username": "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var out struct {
		Token string `json:"token"`
	}
	decode(t, rec, &out)
	require.NotEmpty(t, out.Token)

	claims, err := e.iss.Parse(out.Token)
	require.NoError(t, err)
	assert.True(t, claims.CanValidateOtp())
	assert.False(t, claims.CanAccessPasskey())
	assert.Equal(t, "alice@example.com", claims.Username)

	code := e.sender.code()
	require.NotEmpty(t, code)

	// Un código equivocado no quema el real: se puede reintentar.
	rec = e.do(t, http.MethodPost, "/otp/validate", out.Token, map[string]string{"otp": "000000"})
	requireError(t, rec, http.StatusBadRequest, "INVALID_OTP")

	rec = e.do(t, http.MethodPost, "/otp/validate", out.Token, map[string]string{"otp": code})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var escalated struct {
		Token string `json:"token"`
	}
	decode(t, rec, &escalated)

	claims, err = e.iss.Parse(escalated.Token)
	require.NoError(t, err)
	assert.True(t, claims.CanAccessPasskey())
	assert.False(t, claims.CanValidateOtp())

	// Consumido: el mismo código no sirve dos veces.
	rec = e.do(t, http.MethodPost, "/otp/validate", out.Token, map[string]string{"otp": code})
	requireError(t, rec, http.StatusBadRequest, "INVALID_OTP")
}

func TestOtpValidateScopeGate(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/otp/validate", "", map[string]string{"otp": "123456"})
	requireError(t, rec, http.StatusUnauthorized, "TOKEN_MISSING")

	// Un token passkey-scoped no alcanza: el scope es el equivocado.
	passkeyTok, err := e.iss.IssuePasskeyToken("alice@example.com")
	require.NoError(t, err)
	rec = e.do(t, http.MethodPost, "/otp/validate", passkeyTok, map[string]string{"otp": "123456"})
	requireError(t, rec, http.StatusForbidden, "INSUFFICIENT_SCOPE")

	rec = e.do(t, http.MethodPost, "/otp/validate", "garbage.token.here", map[string]string{"otp": "123456"})
	requireError(t, rec, http.StatusUnauthorized, "TOKEN_INVALID")
}

func TestCredentialEndpointsRejectOtpScope(t *testing.T) {
	e := newEnv(t, nil)

	otpTok, err := e.iss.IssueOTPToken("alice@example.com")
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/credential", otpTok, map[string]any{
		"userId":              "whatever",
		"attestationResponse": map[string]any{},
	})
	requireError(t, rec, http.StatusForbidden, "INSUFFICIENT_SCOPE")

	rec = e.do(t, http.MethodDelete, "/credential", otpTok, map[string]string{"credentialId": "AAAA"})
	requireError(t, rec, http.StatusForbidden, "INSUFFICIENT_SCOPE")
}

func TestCredentialOptionsSignup(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/credential-options", "", map[string]string{
		"username":    "alice@example.com",
		"displayName": "Alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var out struct {
		Options json.RawMessage `json:"options"`
		UserID  string          `json:"userId"`
	}
	decode(t, rec, &out)
	require.NotEmpty(t, out.UserID)
	assert.Contains(t, string(out.Options), "challenge")

	u, err := e.store.Users().GetByUsername(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, out.UserID, u.ID)

	// El mismo username no puede registrarse dos veces.
	rec = e.do(t, http.MethodPost, "/credential-options", "", map[string]string{"username": "alice@example.com"})
	requireError(t, rec, http.StatusBadRequest, "USERNAME_TAKEN")
}

func TestCredentialFinishWithoutCeremony(t *testing.T) {
	e := newEnv(t, nil)

	tok, err := e.iss.IssuePasskeyToken("alice@example.com")
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/credential", tok, map[string]any{
		"userId":              "never-began",
		"attestationResponse": map[string]any{"id": "x"},
	})
	requireError(t, rec, http.StatusBadRequest, "CEREMONY_EXPIRED")
}

func TestAssertionOptionsUnknownUser(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/assertion-options", "", map[string]string{"username": "ghost@example.com"})
	body := requireError(t, rec, http.StatusBadRequest, "USER_NOT_FOUND")
	assert.Equal(t, "No such user found.", body.Message)
}

func TestAssertionFinishWithoutCeremony(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	u, err := e.store.Users().Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	wc := webauthn.Credential{
		ID:            []byte("cred-1"),
		PublicKey:     []byte("pk"),
		Authenticator: webauthn.Authenticator{SignCount: 5},
	}
	data, err := json.Marshal(wc)
	require.NoError(t, err)
	require.NoError(t, e.store.Credentials().Add(ctx, repository.Credential{
		ID:          wc.ID,
		UserID:      u.ID,
		PublicKey:   wc.PublicKey,
		SignCounter: 5,
		Data:        data,
	}))

	rec := e.do(t, http.MethodPost, "/assertion", "", map[string]any{
		"userId":               u.ID,
		"assertionRawResponse": map[string]any{"id": "x"},
	})
	requireError(t, rec, http.StatusBadRequest, "CEREMONY_EXPIRED")

	// La credencial queda intacta: sin ceremonia pendiente no se toca nada.
	cred, err := e.store.Credentials().GetByID(ctx, wc.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), cred.SignCounter)
}

func TestUsersMe(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	u, err := e.store.Users().Create(ctx, "alice@example.com", "Alice")
	require.NoError(t, err)

	sessionTok, err := e.iss.IssueSessionToken(ctx, u.ID)
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/users/me", sessionTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var out struct {
		Username    string `json:"username"`
		DisplayName string `json:"displayName"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "alice@example.com", out.Username)
	assert.Equal(t, "Alice", out.DisplayName)

	rec = e.do(t, http.MethodGet, "/users/me", "", nil)
	requireError(t, rec, http.StatusUnauthorized, "TOKEN_MISSING")
}

func TestOtpRateLimit(t *testing.T) {
	e := newEnv(t, rate.NewMemoryLimiter(2, time.Minute))

	body := map[string]string{"username": "alice@example.com"}
	for i := 0; i < 2; i++ {
		rec := e.do(t, http.MethodPost, "/otp/request", "", body)
		require.Equal(t, http.StatusOK, rec.Code, "request %d, body: %s", i, rec.Body.String())
	}

	rec := e.do(t, http.MethodPost, "/otp/request", "", body)
	requireError(t, rec, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRouteNotFound(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/nope", "", nil)
	body := requireError(t, rec, http.StatusNotFound, "ROUTE_NOT_FOUND")
	assert.NotEmpty(t, body.RequestID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "ready", out.Status)
	assert.Equal(t, "ok", out.Components["cache"])
}

func TestMetricsExposed(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
