package auth

import (
	"net/http"
	"time"

	dto "github.com/dropDatabas3/hellokeys/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/hellokeys/internal/http/errors"
	"github.com/dropDatabas3/hellokeys/internal/http/helpers"
	"github.com/dropDatabas3/hellokeys/internal/http/middlewares"
	"github.com/dropDatabas3/hellokeys/internal/passkey"
)

// MeController expone el perfil del usuario autenticado.
type MeController struct {
	svc *passkey.Service
}

func NewMeController(svc *passkey.Service) *MeController {
	return &MeController{svc: svc}
}

// Get maneja GET /users/me.
func (c *MeController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := subjectUsername(middlewares.GetClaims(ctx))

	profile, err := c.svc.GetProfile(ctx, username)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	creds := make([]dto.CredentialSummary, 0, len(profile.Credentials))
	for _, cr := range profile.Credentials {
		creds = append(creds, dto.CredentialSummary{
			ID:               cr.ID,
			SignCounter:      cr.SignCounter,
			LastUsedPlatform: cr.LastUsedPlatform,
			CreatedAt:        cr.CreatedAt,
			UpdatedAt:        cr.UpdatedAt,
		})
	}

	helpers.WriteJSON(w, http.StatusOK, dto.MeResponse{
		ID:          profile.User.ID,
		Username:    profile.User.Username,
		DisplayName: profile.User.DisplayName,
		CreatedAt:   profile.User.CreatedAt.UTC().Format(time.RFC3339),
		Credentials: creds,
	})
}
