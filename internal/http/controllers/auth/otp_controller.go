// Package auth contiene los controllers del flujo de autenticación: OTP,
// ceremonias de registro y assertion, revocación y perfil.
package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/hellokeys/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellokeys/internal/http/errors"
	"github.com/dropDatabas3/hellokeys/internal/http/helpers"
	"github.com/dropDatabas3/hellokeys/internal/http/middlewares"
	"github.com/dropDatabas3/hellokeys/internal/observability/logger"
	"github.com/dropDatabas3/hellokeys/internal/otp"
	"github.com/dropDatabas3/hellokeys/internal/token"
)

// OtpController maneja la fase OTP del flujo: pedir un código y validarlo.
type OtpController struct {
	gate   *otp.Gate
	tokens *token.Issuer
}

func NewOtpController(gate *otp.Gate, tokens *token.Issuer) *OtpController {
	return &OtpController{gate: gate, tokens: tokens}
}

// Request maneja POST /otp/request. Genera y despacha un código para el
// username y devuelve el token OTP-scoped que acarrea el username en vuelo.
func (c *OtpController) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.OtpRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("username is required"))
		return
	}

	if _, err := c.gate.Generate(ctx, req.Username); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	tok, err := c.tokens.IssueOTPToken(req.Username)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	logger.From(ctx).Info("otp issued", logger.Username(req.Username))
	helpers.WriteJSON(w, http.StatusOK, dto.TokenResponse{Token: tok})
}

// Validate maneja POST /otp/validate. Requiere un bearer OTP-scoped; el
// username sale de las claims. Un código válido escala al token passkey-scoped;
// uno inválido deja al caller donde estaba (puede reintentar).
func (c *OtpController) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middlewares.GetClaims(ctx)

	var req dto.OtpValidateRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Otp == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("otp is required"))
		return
	}

	username := claims.Username
	if !c.gate.Validate(ctx, username, req.Otp) {
		httperrors.WriteError(w, r, httperrors.ErrInvalidOtp)
		return
	}

	tok, err := c.tokens.IssuePasskeyToken(username)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	logger.From(ctx).Info("otp validated", logger.Username(username))
	helpers.WriteJSON(w, http.StatusOK, dto.TokenResponse{Token: tok})
}
