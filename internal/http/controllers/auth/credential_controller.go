package auth

import (
	"net/http"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	dto "github.com/dropDatabas3/hellokeys/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellokeys/internal/http/errors"
	"github.com/dropDatabas3/hellokeys/internal/http/helpers"
	"github.com/dropDatabas3/hellokeys/internal/http/middlewares"
	"github.com/dropDatabas3/hellokeys/internal/passkey"
	"github.com/dropDatabas3/hellokeys/internal/token"
)

// CredentialController maneja el registro y la revocación de credenciales.
type CredentialController struct {
	svc   *passkey.Service
	users repository.UserRepository
}

func NewCredentialController(svc *passkey.Service, users repository.UserRepository) *CredentialController {
	return &CredentialController{svc: svc, users: users}
}

// subjectUsername resuelve el username del sujeto de las claims. En los
// tokens intermedios y de sesión el claim username siempre está presente.
func subjectUsername(claims *token.Claims) string {
	if claims == nil {
		return ""
	}
	if claims.Username != "" {
		return claims.Username
	}
	return claims.Subject
}

// Options maneja POST /credential-options.
//
// Dos variantes: signup anónimo (username en el body, el usuario se crea y no
// debe existir) o step-up con bearer (el sujeto sale del token y debe existir).
func (c *CredentialController) Options(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.CredentialOptionsRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	username := req.Username
	signup := true
	if claims := middlewares.GetClaims(ctx); claims != nil && username == "" {
		username = subjectUsername(claims)
		signup = false
	}
	if username == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("username is required"))
		return
	}

	out, err := c.svc.BeginRegistration(ctx, username, req.DisplayName, signup)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.CeremonyOptionsResponse{
		Options: out.Options,
		UserID:  out.UserID,
	})
}

// OptionsForCurrentUser maneja PUT /credential-options: un usuario ya
// autenticado agrega un autenticador más a su cuenta.
func (c *CredentialController) OptionsForCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := subjectUsername(middlewares.GetClaims(ctx))

	out, err := c.svc.BeginRegistration(ctx, username, "", false)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.CeremonyOptionsResponse{
		Options: out.Options,
		UserID:  out.UserID,
	})
}

// Create maneja POST /credential: cierra la ceremonia de registro pendiente
// de userId y persiste la credencial. 201 con token de sesión.
func (c *CredentialController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.CredentialRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || len(req.AttestationResponse) == 0 {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("userId and attestationResponse are required"))
		return
	}

	result, err := c.svc.FinishRegistration(ctx, req.UserID, req.AttestationResponse, middlewares.GetPlatform(ctx))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, dto.CredentialResponse{
		CredentialID: result.CredentialID,
		Token:        result.Token,
	})
}

// Revoke maneja DELETE /credential. Resultado de tres vías:
// 204 borrada, 404 inexistente, 400 si es la única credencial del usuario.
func (c *CredentialController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middlewares.GetClaims(ctx)

	var req dto.RevokeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.CredentialID == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("credentialId is required"))
		return
	}

	credentialID, err := passkey.DecodeCredentialID(req.CredentialID)
	if err != nil {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("credentialId is not valid base64url"))
		return
	}

	userID := claims.Subject
	if !claims.IsSession() {
		// Tokens intermedios llevan el username como sujeto.
		user, err := c.users.GetByUsername(ctx, subjectUsername(claims))
		if err != nil {
			httperrors.WriteError(w, r, err)
			return
		}
		userID = user.ID
	}

	result, err := c.svc.Revoke(ctx, userID, credentialID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	switch result {
	case passkey.RevokeSuccess:
		w.WriteHeader(http.StatusNoContent)
	case passkey.RevokeNotFound:
		httperrors.WriteError(w, r, httperrors.ErrCredentialNotFound)
	case passkey.RevokeCannotRevokePrimary:
		httperrors.WriteError(w, r, httperrors.ErrCannotRevokePrimary)
	}
}
