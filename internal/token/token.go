// Package token emite y valida los bearer tokens que atan cada fase del flujo
// de autenticación a una capability acotada en el tiempo.
//
// Tres variantes, en orden de escalamiento estricto:
//
//	OTP token      (scope CanValidateOtp)   → solo puede validar el código OTP
//	Passkey token  (scope CanAccessPasskey) → solo puede operar ceremonias/credenciales
//	Session token  (sin scope)              → sujeto completamente autenticado
//
// Un scope nunca satisface a otro. Los tokens son stateless: no hay revocación
// server-side antes de la expiración; logout es descartar el token en el cliente.
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// StepTTL es la expiración de los tokens intermedios (OTP y passkey).
const StepTTL = 15 * time.Minute

// Scope es el conjunto cerrado de capabilities que puede portar un token.
// El routing chequea scopes con los predicados tipados de Claims, nunca
// comparando strings sueltos.
type Scope string

const (
	// ScopeNone es el token de sesión plenamente autenticado.
	ScopeNone Scope = ""
	// ScopeValidateOtp habilita únicamente la validación del código OTP.
	ScopeValidateOtp Scope = "CanValidateOtp"
	// ScopeAccessPasskey habilita ceremonias y gestión de credenciales.
	ScopeAccessPasskey Scope = "CanAccessPasskey"
)

// Claims son las claims firmadas de un token.
type Claims struct {
	jwtv5.RegisteredClaims
	Scope    Scope  `json:"scope,omitempty"`
	Username string `json:"username,omitempty"`
}

// CanValidateOtp reporta si el token habilita la validación de OTP.
func (c *Claims) CanValidateOtp() bool { return c.Scope == ScopeValidateOtp }

// CanAccessPasskey reporta si el token habilita operaciones de passkey.
func (c *Claims) CanAccessPasskey() bool { return c.Scope == ScopeAccessPasskey }

// IsSession reporta si el token es de sesión (sujeto autenticado, sin scope).
func (c *Claims) IsSession() bool { return c.Scope == ScopeNone }

// IssuerConfig configura el emisor de tokens.
type IssuerConfig struct {
	// Secret es la clave simétrica HS256. Requerida.
	Secret string
	// Iss/Aud van en las claims y se validan en cada Parse.
	Iss string
	Aud string
	// SessionTTL es la expiración del token de sesión.
	SessionTTL time.Duration
}

// Issuer firma tokens con una clave simétrica única.
type Issuer struct {
	key        []byte
	iss        string
	aud        string
	sessionTTL time.Duration
	users      repository.UserRepository
	now        func() time.Time
}

// NewIssuer construye un Issuer. users se usa para resolver el username al
// emitir tokens de sesión.
func NewIssuer(cfg IssuerConfig, users repository.UserRepository) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token: signing secret is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	return &Issuer{
		key:        []byte(cfg.Secret),
		iss:        cfg.Iss,
		aud:        cfg.Aud,
		sessionTTL: cfg.SessionTTL,
		users:      users,
		now:        time.Now,
	}, nil
}

// IssueOTPToken emite el token que acompaña al código OTP en vuelo.
// Subject = username, scope = CanValidateOtp, expira en StepTTL.
func (i *Issuer) IssueOTPToken(username string) (string, error) {
	return i.sign(username, username, ScopeValidateOtp, StepTTL)
}

// IssuePasskeyToken emite el token post-OTP que habilita las ceremonias.
// Subject = username, scope = CanAccessPasskey, expira en StepTTL.
func (i *Issuer) IssuePasskeyToken(username string) (string, error) {
	return i.sign(username, username, ScopeAccessPasskey, StepTTL)
}

// IssueSessionToken emite el token de sesión plenamente autenticado.
// Resuelve el usuario por id; retorna repository.ErrNotFound si no existe.
func (i *Issuer) IssueSessionToken(ctx context.Context, userID string) (string, error) {
	u, err := i.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return i.sign(u.ID, u.Username, ScopeNone, i.sessionTTL)
}

func (i *Issuer) sign(sub, username string, scope Scope, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.iss,
			Audience:  jwtv5.ClaimStrings{i.aud},
			Subject:   sub,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
		Scope:    scope,
		Username: username,
	}
	t := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Parse valida firma, issuer, audience y expiración, y retorna las claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwtv5.ParseWithClaims(raw, &claims,
		func(t *jwtv5.Token) (any, error) { return i.key, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(i.iss),
		jwtv5.WithAudience(i.aud),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	switch claims.Scope {
	case ScopeNone, ScopeValidateOtp, ScopeAccessPasskey:
	default:
		return nil, fmt.Errorf("token: unknown scope %q", claims.Scope)
	}
	return &claims, nil
}
