package auth

import (
	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/dropDatabas3/hellokeys/internal/otp"
	"github.com/dropDatabas3/hellokeys/internal/passkey"
	"github.com/dropDatabas3/hellokeys/internal/token"
)

// Controllers agrupa los controllers del dominio auth.
type Controllers struct {
	Otp        *OtpController
	Credential *CredentialController
	Assertion  *AssertionController
	Me         *MeController
}

// Deps son los colaboradores inyectados desde el composition root.
type Deps struct {
	Gate    *otp.Gate
	Passkey *passkey.Service
	Tokens  *token.Issuer
	Users   repository.UserRepository
}

func NewControllers(d Deps) *Controllers {
	return &Controllers{
		Otp:        NewOtpController(d.Gate, d.Tokens),
		Credential: NewCredentialController(d.Passkey, d.Users),
		Assertion:  NewAssertionController(d.Passkey),
		Me:         NewMeController(d.Passkey),
	}
}
