package auth

import (
	"net/http"

	dto "github.com/dropDatabas3/hellokeys/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellokeys/internal/http/errors"
	"github.com/dropDatabas3/hellokeys/internal/http/helpers"
	"github.com/dropDatabas3/hellokeys/internal/http/middlewares"
	"github.com/dropDatabas3/hellokeys/internal/passkey"
)

// AssertionController maneja la ceremonia de autenticación con una
// credencial existente.
type AssertionController struct {
	svc *passkey.Service
}

func NewAssertionController(svc *passkey.Service) *AssertionController {
	return &AssertionController{svc: svc}
}

// Options maneja POST /assertion-options. El requisito de user verification
// viene en la query (?userVerification=required|preferred|discouraged) y
// defaultea a required.
func (c *AssertionController) Options(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.AssertionOptionsRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Username == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("username is required"))
		return
	}

	out, err := c.svc.BeginAssertion(ctx, req.Username, r.URL.Query().Get("userVerification"))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.CeremonyOptionsResponse{
		Options: out.Options,
		UserID:  out.UserID,
	})
}

// Finish maneja POST /assertion: cierra la ceremonia pendiente de userId,
// verifica la firma y devuelve el token de sesión.
func (c *AssertionController) Finish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.AssertionRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || len(req.AssertionRawResponse) == 0 {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("userId and assertionRawResponse are required"))
		return
	}

	result, err := c.svc.FinishAssertion(ctx, req.UserID, req.AssertionRawResponse, middlewares.GetPlatform(ctx))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.AssertionResponse{
		CredentialID: result.CredentialID,
		CloneWarning: result.CloneWarning,
		Token:        result.Token,
	})
}
