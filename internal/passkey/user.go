package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/go-webauthn/webauthn/webauthn"
)

// ceremonyUser adapta un usuario del dominio a webauthn.User.
// El user handle que ve el autenticador es el UUID del usuario.
type ceremonyUser struct {
	user        repository.User
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte { return []byte(u.user.ID) }

func (u *ceremonyUser) WebAuthnName() string { return u.user.Username }

func (u *ceremonyUser) WebAuthnDisplayName() string { return u.user.DisplayName }

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// loadCeremonyUser arma el webauthn.User con las credenciales vivas del
// usuario, deserializadas del blob persistido.
func (s *Service) loadCeremonyUser(ctx context.Context, user repository.User) (*ceremonyUser, error) {
	stored, err := s.creds.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	credentials := make([]webauthn.Credential, 0, len(stored))
	for _, rec := range stored {
		var c webauthn.Credential
		if err := json.Unmarshal(rec.Data, &c); err != nil {
			return nil, fmt.Errorf("passkey: decode credential %s: %w", EncodeCredentialID(rec.ID), err)
		}
		credentials = append(credentials, c)
	}
	return &ceremonyUser{user: user, credentials: credentials}, nil
}

// EncodeCredentialID codifica un credential id para transporte (base64url sin
// padding, igual que lo emite el autenticador).
func EncodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCredentialID es la inversa de EncodeCredentialID.
func DecodeCredentialID(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}
