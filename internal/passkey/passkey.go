// Package passkey orquesta el ciclo de vida de credenciales WebAuthn:
// ceremonias de registro y assertion contra el challenge cache y los
// repositorios, y revocación con la garantía de nunca dejar a un usuario sin
// credenciales.
//
// La criptografía de las ceremonias (attestation, assertion, validación de
// origin/RP) la hace la librería go-webauthn; este paquete solo coordina
// estado y persistencia.
package passkey

import (
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/cache"
	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/dropDatabas3/hellokeys/internal/token"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Errores del servicio.
var (
	// ErrCeremonyNotFound indica que no hay estado pendiente para la
	// correlación dada: nunca existió, expiró, o ya fue consumido. El cliente
	// debe reiniciar la ceremonia desde el begin.
	ErrCeremonyNotFound = errors.New("ceremony state expired or missing")

	// ErrVerificationFailed indica que la librería WebAuthn rechazó la
	// respuesta del cliente. No se persiste nada.
	ErrVerificationFailed = errors.New("ceremony verification failed")

	// ErrCredentialExists indica que el credential id ya está registrado (el
	// id es único a nivel global, no solo por usuario).
	ErrCredentialExists = errors.New("credential id already registered")
)

// Config configura el relying party.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string

	// CeremonyTTL acota la vida del estado pendiente en el cache.
	CeremonyTTL time.Duration
}

// Deps son los colaboradores del servicio.
type Deps struct {
	Users  repository.UserRepository
	Creds  repository.CredentialRepository
	Cache  cache.Client
	Tokens *token.Issuer
}

// verifier es la capability externa de verificación WebAuthn.
// *webauthn.WebAuthn la implementa; los tests inyectan un fake.
type verifier interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

// responseParser aísla el parseo de las respuestas del cliente.
type responseParser interface {
	ParseCreation(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseAssertion(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type protocolParser struct{}

func (protocolParser) ParseCreation(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (protocolParser) ParseAssertion(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Service coordina las ceremonias y el ciclo de vida de credenciales.
type Service struct {
	wa     verifier
	parser responseParser

	users  repository.UserRepository
	creds  repository.CredentialRepository
	cache  cache.Client
	tokens *token.Issuer
	ttl    time.Duration
}

// New construye el servicio con la librería WebAuthn real.
func New(cfg Config, deps Deps) (*Service, error) {
	if cfg.CeremonyTTL <= 0 {
		cfg.CeremonyTTL = cache.DefaultTTL
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("passkey: webauthn config: %w", err)
	}

	return &Service{
		wa:     wa,
		parser: protocolParser{},
		users:  deps.Users,
		creds:  deps.Creds,
		cache:  deps.Cache,
		tokens: deps.Tokens,
		ttl:    cfg.CeremonyTTL,
	}, nil
}
