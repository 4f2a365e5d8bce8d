// Package router arma el chi.Router con todas las rutas del servicio y el
// gate de scopes de cada una.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authctrl "github.com/dropDatabas3/hellokeys/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/hellokeys/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/hellokeys/internal/http/errors"
	mw "github.com/dropDatabas3/hellokeys/internal/http/middlewares"
	"github.com/dropDatabas3/hellokeys/internal/rate"
	"github.com/dropDatabas3/hellokeys/internal/token"
)

// Deps contiene todo lo que el router necesita cableado.
type Deps struct {
	Auth   *authctrl.Controllers
	Health *healthctrl.Controller
	Tokens *token.Issuer

	CORSAllowedOrigins []string
	MetricsRegistry    *prometheus.Registry

	// OtpLimiter frena la emisión/validación de códigos por IP. Opcional.
	OtpLimiter rate.Limiter
}

// New construye el handler raíz.
//
// Escalamiento de scopes por ruta:
//
//	/otp/request         anónimo
//	/otp/validate        CanValidateOtp
//	/credential-options  POST: bearer opcional (signup anónimo) · PUT: bearer
//	/credential          POST/DELETE: CanAccessPasskey o sesión
//	/assertion-options   anónimo
//	/assertion           anónimo (la firma ES la autenticación)
//	/users/me            cualquier bearer válido
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())
	r.Use(mw.WithRecover())
	r.Use(mw.WithDeviceDetection())

	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           600,
		}))
	}

	requireOtpScope := mw.RequireScope(d.Tokens, (*token.Claims).CanValidateOtp)
	requirePasskeyScope := mw.RequireScope(d.Tokens, func(c *token.Claims) bool {
		return c.CanAccessPasskey() || c.IsSession()
	})
	requireAnyBearer := mw.RequireScope(d.Tokens, func(c *token.Claims) bool { return true })

	otpGroup := func(r chi.Router) chi.Router {
		if d.OtpLimiter != nil {
			return r.With(mw.WithRateLimit(d.OtpLimiter, mw.ClientIPKey))
		}
		return r
	}
	otpGroup(r).Post("/otp/request", d.Auth.Otp.Request)
	otpGroup(r).With(requireOtpScope).Post("/otp/validate", d.Auth.Otp.Validate)

	r.With(mw.OptionalAuth(d.Tokens)).Post("/credential-options", d.Auth.Credential.Options)
	r.With(requireAnyBearer).Put("/credential-options", d.Auth.Credential.OptionsForCurrentUser)
	r.With(requirePasskeyScope).Post("/credential", d.Auth.Credential.Create)
	r.With(requirePasskeyScope).Delete("/credential", d.Auth.Credential.Revoke)

	r.Post("/assertion-options", d.Auth.Assertion.Options)
	r.Post("/assertion", d.Auth.Assertion.Finish)

	r.With(requireAnyBearer).Get("/users/me", d.Auth.Me.Get)

	r.Get("/healthz", d.Health.Healthz)
	if d.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, req, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httperrors.WriteError(w, req, httperrors.ErrMethodNotAllowed)
	})

	return r
}
