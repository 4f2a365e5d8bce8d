package passkey

import (
	"context"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/dropDatabas3/hellokeys/internal/metrics"
	"github.com/dropDatabas3/hellokeys/internal/observability/logger"
)

// RevokeResult es el espacio completo de resultados de una revocación.
// Cualquier otra falla interna es un error, no un resultado.
type RevokeResult int

const (
	RevokeSuccess RevokeResult = iota
	RevokeNotFound
	RevokeCannotRevokePrimary
)

func (r RevokeResult) String() string {
	switch r {
	case RevokeSuccess:
		return "ok"
	case RevokeNotFound:
		return "not_found"
	case RevokeCannotRevokePrimary:
		return "primary"
	default:
		return "unknown"
	}
}

// Revoke elimina una credencial del usuario.
//
// Un usuario nunca puede quedar con cero credenciales: si no existe ninguna
// otra credencial, la operación retorna RevokeCannotRevokePrimary y la
// credencial queda intacta.
func (s *Service) Revoke(ctx context.Context, userID string, credentialID []byte) (RevokeResult, error) {
	others, err := s.creds.CountOther(ctx, userID, credentialID)
	if err != nil {
		return 0, err
	}
	if others == 0 {
		metrics.CredentialsRevoked.WithLabelValues(RevokeCannotRevokePrimary.String()).Inc()
		return RevokeCannotRevokePrimary, nil
	}

	deleted, err := s.creds.Delete(ctx, userID, credentialID)
	if err != nil {
		return 0, err
	}
	if !deleted {
		metrics.CredentialsRevoked.WithLabelValues(RevokeNotFound.String()).Inc()
		return RevokeNotFound, nil
	}

	metrics.CredentialsRevoked.WithLabelValues(RevokeSuccess.String()).Inc()
	logger.From(ctx).Info("credential revoked",
		logger.UserID(userID),
		logger.CredentialID(EncodeCredentialID(credentialID)),
	)
	return RevokeSuccess, nil
}

// CredentialSummary es la vista de una credencial para el perfil del usuario.
type CredentialSummary struct {
	ID               string
	SignCounter      uint32
	LastUsedPlatform string
	CreatedAt        string
	UpdatedAt        string
}

// Profile es el perfil del usuario con el resumen de sus credenciales.
type Profile struct {
	User        repository.User
	Credentials []CredentialSummary
}

// GetProfile resuelve el perfil del usuario autenticado.
func (s *Service) GetProfile(ctx context.Context, username string) (*Profile, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	creds, err := s.creds.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]CredentialSummary, 0, len(creds))
	for _, c := range creds {
		summaries = append(summaries, CredentialSummary{
			ID:               EncodeCredentialID(c.ID),
			SignCounter:      c.SignCounter,
			LastUsedPlatform: c.LastUsedPlatform,
			CreatedAt:        c.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:        c.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &Profile{User: *user, Credentials: summaries}, nil
}
