package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/cache"
	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/dropDatabas3/hellokeys/internal/metrics"
	"github.com/dropDatabas3/hellokeys/internal/observability/logger"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

type ceremonyKind string

const (
	kindRegistration ceremonyKind = "registration"
	kindAssertion    ceremonyKind = "assertion"
)

// pendingCeremony es el estado serializado que viaja al challenge cache entre
// el begin y el end de una ceremonia.
type pendingCeremony struct {
	Kind    ceremonyKind         `json:"kind"`
	Session webauthn.SessionData `json:"session"`
}

// CeremonyOptions es el resultado de un begin: las opciones para el cliente y
// el id de correlación que debe volver en el end.
type CeremonyOptions struct {
	Options json.RawMessage
	UserID  string
}

// FinishResult es el resultado de un end verificado.
type FinishResult struct {
	CredentialID string
	CloneWarning bool
	Token        string
}

func ceremonyCacheKey(userID string) string { return "ceremony:" + userID }

// stash serializa y guarda el estado pendiente. Pisa cualquier ceremonia
// previa del mismo usuario: a lo sumo una pendiente por correlación.
func (s *Service) stash(ctx context.Context, userID string, kind ceremonyKind, session *webauthn.SessionData) error {
	payload, err := json.Marshal(pendingCeremony{Kind: kind, Session: *session})
	if err != nil {
		return fmt.Errorf("passkey: encode pending state: %w", err)
	}
	if err := s.cache.Put(ctx, ceremonyCacheKey(userID), payload, s.ttl); err != nil {
		return fmt.Errorf("passkey: stash pending state: %w", err)
	}
	metrics.CeremoniesStarted.WithLabelValues(string(kind)).Inc()
	return nil
}

// takePending consume el estado pendiente. Miss o kind distinto al esperado
// son terminales: la ceremonia en vuelo murió.
func (s *Service) takePending(ctx context.Context, userID string, kind ceremonyKind) (*webauthn.SessionData, error) {
	payload, err := s.cache.TakeAndRemove(ctx, ceremonyCacheKey(userID))
	if err != nil {
		if cache.IsNotFound(err) {
			metrics.CeremoniesCompleted.WithLabelValues(string(kind), "expired").Inc()
			return nil, ErrCeremonyNotFound
		}
		return nil, fmt.Errorf("passkey: take pending state: %w", err)
	}

	var pending pendingCeremony
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil, fmt.Errorf("passkey: decode pending state: %w", err)
	}
	if pending.Kind != kind {
		metrics.CeremoniesCompleted.WithLabelValues(string(kind), "expired").Inc()
		return nil, ErrCeremonyNotFound
	}
	return &pending.Session, nil
}

// BeginRegistration arma las opciones de creación de credencial para username.
//
// Con signup=true el usuario se crea (repository.ErrConflict si el username ya
// está tomado); con signup=false el usuario debe existir (step-up de un usuario
// autenticado que agrega un segundo autenticador).
//
// Las credenciales existentes se excluyen para impedir re-registrar un
// autenticador ya ligado a la cuenta.
func (s *Service) BeginRegistration(ctx context.Context, username, displayName string, signup bool) (*CeremonyOptions, error) {
	if username == "" {
		return nil, repository.ErrInvalidInput
	}

	var user *repository.User
	var err error
	if signup {
		user, err = s.users.Create(ctx, username, displayName)
	} else {
		user, err = s.users.GetByUsername(ctx, username)
	}
	if err != nil {
		return nil, err
	}

	cu, err := s.loadCeremonyUser(ctx, *user)
	if err != nil {
		return nil, err
	}

	var opts []webauthn.RegistrationOption
	if len(cu.credentials) > 0 {
		opts = append(opts, webauthn.WithExclusions(
			webauthn.Credentials(cu.credentials).CredentialDescriptors()))
	}

	creation, session, err := s.wa.BeginRegistration(cu, opts...)
	if err != nil {
		return nil, fmt.Errorf("passkey: begin registration: %w", err)
	}
	if err := s.stash(ctx, user.ID, kindRegistration, session); err != nil {
		return nil, err
	}

	optionsJSON, err := json.Marshal(creation)
	if err != nil {
		return nil, fmt.Errorf("passkey: encode options: %w", err)
	}

	logger.From(ctx).Info("registration ceremony started",
		logger.UserID(user.ID), logger.Username(user.Username))
	return &CeremonyOptions{Options: optionsJSON, UserID: user.ID}, nil
}

// FinishRegistration consume el estado pendiente de userID, verifica la
// respuesta de attestation y persiste la credencial nueva. Devuelve un token
// de sesión: el registro exitoso deja al usuario autenticado.
func (s *Service) FinishRegistration(ctx context.Context, userID string, response []byte, platform string) (*FinishResult, error) {
	start := time.Now()

	session, err := s.takePending(ctx, userID, kindRegistration)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cu, err := s.loadCeremonyUser(ctx, *user)
	if err != nil {
		return nil, err
	}

	parsed, err := s.parser.ParseCreation(response)
	if err != nil {
		metrics.CeremoniesCompleted.WithLabelValues(string(kindRegistration), "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	credential, err := s.wa.CreateCredential(cu, *session, parsed)
	if err != nil {
		metrics.CeremoniesCompleted.WithLabelValues(string(kindRegistration), "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	// Guard de colisión scoped al usuario; el PK del store cubre la unicidad
	// global.
	unique, err := s.creds.IsUniqueForUser(ctx, user.ID, credential.ID)
	if err != nil {
		return nil, err
	}
	if !unique {
		metrics.CeremoniesCompleted.WithLabelValues(string(kindRegistration), "rejected").Inc()
		return nil, fmt.Errorf("%w: credential already registered", ErrVerificationFailed)
	}

	data, err := json.Marshal(credential)
	if err != nil {
		return nil, fmt.Errorf("passkey: encode credential: %w", err)
	}
	err = s.creds.Add(ctx, repository.Credential{
		ID:               credential.ID,
		UserID:           user.ID,
		PublicKey:        credential.PublicKey,
		SignCounter:      credential.Authenticator.SignCount,
		Data:             data,
		LastUsedPlatform: platform,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.CeremoniesCompleted.WithLabelValues(string(kindRegistration), "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrCredentialExists, err)
		}
		return nil, err
	}

	sessionToken, err := s.tokens.IssueSessionToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.CeremoniesCompleted.WithLabelValues(string(kindRegistration), "ok").Inc()
	metrics.CeremonyFinishDuration.WithLabelValues(string(kindRegistration)).Observe(time.Since(start).Seconds())

	logger.From(ctx).Info("credential registered",
		logger.UserID(user.ID),
		logger.CredentialID(EncodeCredentialID(credential.ID)),
		logger.String("platform", platform),
	)
	return &FinishResult{
		CredentialID: EncodeCredentialID(credential.ID),
		Token:        sessionToken,
	}, nil
}

// BeginAssertion arma las opciones de autenticación para username sobre sus
// credenciales existentes. userVerification vacío equivale a "required".
func (s *Service) BeginAssertion(ctx context.Context, username string, userVerification string) (*CeremonyOptions, error) {
	if username == "" {
		return nil, repository.ErrInvalidInput
	}

	uv, err := parseUserVerification(userVerification)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	cu, err := s.loadCeremonyUser(ctx, *user)
	if err != nil {
		return nil, err
	}

	assertion, session, err := s.wa.BeginLogin(cu, webauthn.WithUserVerification(uv))
	if err != nil {
		// Sin credenciales registradas no hay assertion posible.
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if err := s.stash(ctx, user.ID, kindAssertion, session); err != nil {
		return nil, err
	}

	optionsJSON, err := json.Marshal(assertion)
	if err != nil {
		return nil, fmt.Errorf("passkey: encode options: %w", err)
	}

	logger.From(ctx).Info("assertion ceremony started",
		logger.UserID(user.ID), logger.Username(user.Username))
	return &CeremonyOptions{Options: optionsJSON, UserID: user.ID}, nil
}

// FinishAssertion consume el estado pendiente, verifica la firma y persiste el
// sign counter actualizado con un compare-and-swap sobre el valor previo. Si
// otra assertion concurrente ganó la carrera retorna ErrCounterStale.
func (s *Service) FinishAssertion(ctx context.Context, userID string, response []byte, platform string) (*FinishResult, error) {
	start := time.Now()

	session, err := s.takePending(ctx, userID, kindAssertion)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cu, err := s.loadCeremonyUser(ctx, *user)
	if err != nil {
		return nil, err
	}

	parsed, err := s.parser.ParseAssertion(response)
	if err != nil {
		metrics.CeremoniesCompleted.WithLabelValues(string(kindAssertion), "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	// ValidateLogin verifica firma, challenge y que el user handle de la
	// assertion sea el dueño de la credencial.
	validated, err := s.wa.ValidateLogin(cu, *session, parsed)
	if err != nil {
		metrics.CeremoniesCompleted.WithLabelValues(string(kindAssertion), "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	stored, err := s.creds.GetByID(ctx, validated.ID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(validated)
	if err != nil {
		return nil, fmt.Errorf("passkey: encode credential: %w", err)
	}
	updated := *stored
	updated.PublicKey = validated.PublicKey
	updated.SignCounter = validated.Authenticator.SignCount
	updated.Data = data
	updated.LastUsedPlatform = platform

	if err := s.creds.UpdateCAS(ctx, updated, stored.SignCounter); err != nil {
		return nil, err
	}

	sessionToken, err := s.tokens.IssueSessionToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.CeremoniesCompleted.WithLabelValues(string(kindAssertion), "ok").Inc()
	metrics.CeremonyFinishDuration.WithLabelValues(string(kindAssertion)).Observe(time.Since(start).Seconds())

	logger.From(ctx).Info("assertion verified",
		logger.UserID(user.ID),
		logger.CredentialID(EncodeCredentialID(validated.ID)),
		logger.String("platform", platform),
	)
	return &FinishResult{
		CredentialID: EncodeCredentialID(validated.ID),
		CloneWarning: validated.Authenticator.CloneWarning,
		Token:        sessionToken,
	}, nil
}

func parseUserVerification(v string) (protocol.UserVerificationRequirement, error) {
	switch v {
	case "", "required":
		return protocol.VerificationRequired, nil
	case "preferred":
		return protocol.VerificationPreferred, nil
	case "discouraged":
		return protocol.VerificationDiscouraged, nil
	default:
		return "", fmt.Errorf("%w: unknown user verification %q", repository.ErrInvalidInput, v)
	}
}
