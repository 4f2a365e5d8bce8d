package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/hellokeys/internal/http/errors"
	"github.com/dropDatabas3/hellokeys/internal/token"
)

func bearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return "", false
	}
	return strings.TrimSpace(ah[len("Bearer "):]), true
}

// RequireScope valida Authorization: Bearer <JWT> y exige que las claims
// satisfagan el predicado de scope. Cada fase del flujo tiene el suyo:
//
//	token.Claims.CanValidateOtp   → validación de OTP
//	token.Claims.CanAccessPasskey → ceremonias y gestión de credenciales
//	token.Claims.IsSession        → recursos del usuario autenticado
//
// Un scope nunca satisface a otro: el chequeo es por predicado tipado, no por
// comparación de strings.
func RequireScope(iss *token.Issuer, allowed func(*token.Claims) bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				httperrors.WriteError(w, r, httperrors.ErrTokenMissing)
				return
			}

			claims, err := iss.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				httperrors.WriteError(w, r, httperrors.ErrTokenInvalid.WithCause(err))
				return
			}

			if !allowed(claims) {
				httperrors.WriteError(w, r, httperrors.ErrInsufficientScope)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth valida el bearer token si está presente, pero no falla si
// falta. Para endpoints con comportamiento distinto según autenticación
// (signup anónimo vs step-up).
func OptionalAuth(iss *token.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := iss.Parse(raw)
			if err != nil {
				// Con token presente pero inválido sí fallamos: un cliente
				// que manda Authorization espera que se lo honre.
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				httperrors.WriteError(w, r, httperrors.ErrTokenInvalid.WithCause(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
