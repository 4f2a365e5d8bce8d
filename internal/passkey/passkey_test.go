package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/cache"
	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/dropDatabas3/hellokeys/internal/store/memory"
	"github.com/dropDatabas3/hellokeys/internal/token"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/require"
)

// fakeVerifier reemplaza a la librería WebAuthn: acá no se prueba
// criptografía, solo la orquestación alrededor.
type fakeVerifier struct {
	created     *webauthn.Credential
	createErr   error
	validated   *webauthn.Credential
	validateErr error
}

func (f *fakeVerifier) BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	return &protocol.CredentialCreation{}, &webauthn.SessionData{Challenge: "chal", UserID: user.WebAuthnID()}, nil
}

func (f *fakeVerifier) CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func (f *fakeVerifier) BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	if len(user.WebAuthnCredentials()) == 0 {
		return nil, nil, errors.New("found no credentials for user")
	}
	return &protocol.CredentialAssertion{}, &webauthn.SessionData{Challenge: "chal", UserID: user.WebAuthnID()}, nil
}

func (f *fakeVerifier) ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return f.validated, nil
}

type fakeParser struct{}

func (fakeParser) ParseCreation(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	if string(data) == "unparseable" {
		return nil, errors.New("bad payload")
	}
	return &protocol.ParsedCredentialCreationData{}, nil
}

func (fakeParser) ParseAssertion(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	if string(data) == "unparseable" {
		return nil, errors.New("bad payload")
	}
	return &protocol.ParsedCredentialAssertionData{}, nil
}

type fixture struct {
	svc   *Service
	store *memory.Store
	fake  *fakeVerifier
	iss   *token.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	iss, err := token.NewIssuer(token.IssuerConfig{
		Secret: "test-secret", Iss: "hellokeys", Aud: "clients", SessionTTL: time.Hour,
	}, store.Users())
	require.NoError(t, err)

	svc, err := New(Config{
		RPID:          "localhost",
		RPDisplayName: "hellokeys test",
		RPOrigins:     []string{"http://localhost:8080"},
		CeremonyTTL:   time.Minute,
	}, Deps{
		Users:  store.Users(),
		Creds:  store.Credentials(),
		Cache:  cache.NewMemory(""),
		Tokens: iss,
	})
	require.NoError(t, err)

	fake := &fakeVerifier{}
	svc.wa = fake
	svc.parser = fakeParser{}

	return &fixture{svc: svc, store: store, fake: fake, iss: iss}
}

func testCredential(id string, counter uint32) *webauthn.Credential {
	return &webauthn.Credential{
		ID:        []byte(id),
		PublicKey: []byte("pk-" + id),
		Authenticator: webauthn.Authenticator{
			SignCount: counter,
		},
	}
}

func TestBeginRegistrationSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.BeginRegistration(ctx, "alice", "Alice", true)
	require.NoError(t, err)
	require.NotEmpty(t, out.UserID)
	require.NotEmpty(t, out.Options)

	// El username queda tomado.
	_, err = f.svc.BeginRegistration(ctx, "alice", "Alice", true)
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestBeginRegistrationStepUpUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BeginRegistration(context.Background(), "ghost", "", false)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBeginRegistrationEmptyUsername(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BeginRegistration(context.Background(), "", "", true)
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestRegistrationEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	begin, err := f.svc.BeginRegistration(ctx, "alice", "Alice", true)
	require.NoError(t, err)

	f.fake.created = testCredential("cred-1", 0)

	result, err := f.svc.FinishRegistration(ctx, begin.UserID, []byte(`{}`), "macOS Safari")
	require.NoError(t, err)
	require.Equal(t, EncodeCredentialID([]byte("cred-1")), result.CredentialID)
	require.NotEmpty(t, result.Token)

	// El token de sesión lleva al usuario autenticado.
	claims, err := f.iss.Parse(result.Token)
	require.NoError(t, err)
	require.True(t, claims.IsSession())
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, begin.UserID, claims.Subject)

	// La credencial quedó persistida con su plataforma.
	stored, err := f.store.Credentials().GetByID(ctx, []byte("cred-1"))
	require.NoError(t, err)
	require.Equal(t, begin.UserID, stored.UserID)
	require.Equal(t, "macOS Safari", stored.LastUsedPlatform)
}

func TestFinishRegistrationCacheMiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Correlación que nunca pasó por el begin.
	_, err := f.svc.FinishRegistration(ctx, "never-began", []byte(`{}`), "")
	require.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestFinishRegistrationIsOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	begin, _ := f.svc.BeginRegistration(ctx, "alice", "", true)
	f.fake.created = testCredential("cred-1", 0)

	_, err := f.svc.FinishRegistration(ctx, begin.UserID, []byte(`{}`), "")
	require.NoError(t, err)

	// El estado pendiente fue consumido: el segundo end es terminal.
	_, err = f.svc.FinishRegistration(ctx, begin.UserID, []byte(`{}`), "")
	require.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestFinishRegistrationVerificationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	begin, _ := f.svc.BeginRegistration(ctx, "alice", "", true)
	f.fake.createErr = errors.New("attestation rejected")

	_, err := f.svc.FinishRegistration(ctx, begin.UserID, []byte(`{}`), "")
	require.ErrorIs(t, err, ErrVerificationFailed)

	// Sin escrituras parciales.
	creds, err := f.store.Credentials().ListByUser(ctx, begin.UserID)
	require.NoError(t, err)
	require.Empty(t, creds)
}

func TestFinishRejectsKindMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	begin, _ := f.svc.BeginRegistration(ctx, "alice", "", true)

	// Un end de assertion no puede consumir un begin de registro.
	_, err := f.svc.FinishAssertion(ctx, begin.UserID, []byte(`{}`), "")
	require.ErrorIs(t, err, ErrCeremonyNotFound)
}

func TestBeginAssertionUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BeginAssertion(context.Background(), "ghost", "")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBeginAssertionInvalidUserVerification(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BeginAssertion(context.Background(), "alice", "sometimes")
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestBeginAssertionWithoutCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Users().Create(ctx, "alice", "")
	require.NoError(t, err)

	_, err = f.svc.BeginAssertion(ctx, "alice", "required")
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func registerCredential(t *testing.T, f *fixture, username, credID string, counter uint32) string {
	t.Helper()
	ctx := context.Background()

	user, err := f.store.Users().GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = f.store.Users().Create(ctx, username, "")
	}
	require.NoError(t, err)

	cred := testCredential(credID, counter)
	data, err := json.Marshal(cred)
	require.NoError(t, err)
	require.NoError(t, f.store.Credentials().Add(ctx, repository.Credential{
		ID:          cred.ID,
		UserID:      user.ID,
		PublicKey:   cred.PublicKey,
		SignCounter: counter,
		Data:        data,
	}))
	return user.ID
}

func TestAssertionEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := registerCredential(t, f, "alice", "cred-1", 5)

	begin, err := f.svc.BeginAssertion(ctx, "alice", "")
	require.NoError(t, err)
	require.Equal(t, userID, begin.UserID)

	f.fake.validated = testCredential("cred-1", 6)

	result, err := f.svc.FinishAssertion(ctx, userID, []byte(`{}`), "Windows Chrome")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	stored, err := f.store.Credentials().GetByID(ctx, []byte("cred-1"))
	require.NoError(t, err)
	require.Equal(t, uint32(6), stored.SignCounter)
	require.Equal(t, "Windows Chrome", stored.LastUsedPlatform)
}

func TestFinishAssertionCacheMiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := registerCredential(t, f, "alice", "cred-1", 5)

	_, err := f.svc.FinishAssertion(ctx, userID, []byte(`{}`), "")
	require.ErrorIs(t, err, ErrCeremonyNotFound)

	// La credencial no fue mutada.
	stored, _ := f.store.Credentials().GetByID(ctx, []byte("cred-1"))
	require.Equal(t, uint32(5), stored.SignCounter)
}

// racingCreds simula una assertion concurrente: tras cada GetByID empuja el
// counter en el store subyacente, de modo que el CAS del llamador ve un valor
// viejo.
type racingCreds struct {
	repository.CredentialRepository
}

func (r racingCreds) GetByID(ctx context.Context, id []byte) (*repository.Credential, error) {
	cred, err := r.CredentialRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	snapshot := *cred
	bumped := *cred
	bumped.SignCounter = cred.SignCounter + 2
	if err := r.CredentialRepository.UpdateCAS(ctx, bumped, cred.SignCounter); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func TestFinishAssertionStaleCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := registerCredential(t, f, "alice", "cred-1", 5)
	f.svc.creds = racingCreds{f.store.Credentials()}

	_, err := f.svc.BeginAssertion(ctx, "alice", "")
	require.NoError(t, err)

	f.fake.validated = testCredential("cred-1", 6)
	_, err = f.svc.FinishAssertion(ctx, userID, []byte(`{}`), "")
	require.ErrorIs(t, err, repository.ErrCounterStale)
}

func TestRevokeLastCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := registerCredential(t, f, "alice", "cred-1", 0)

	result, err := f.svc.Revoke(ctx, userID, []byte("cred-1"))
	require.NoError(t, err)
	require.Equal(t, RevokeCannotRevokePrimary, result)

	// La credencial sigue presente.
	_, err = f.store.Credentials().GetByID(ctx, []byte("cred-1"))
	require.NoError(t, err)
}

func TestRevokeWithRemainingCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID := registerCredential(t, f, "alice", "cred-1", 0)
	registerCredential(t, f, "alice", "cred-2", 0)

	result, err := f.svc.Revoke(ctx, userID, []byte("cred-1"))
	require.NoError(t, err)
	require.Equal(t, RevokeSuccess, result)

	// Repetir la revocación del mismo id: NotFound.
	result, err = f.svc.Revoke(ctx, userID, []byte("cred-1"))
	require.NoError(t, err)
	require.Equal(t, RevokeNotFound, result)
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registerCredential(t, f, "alice", "cred-1", 3)

	profile, err := f.svc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", profile.User.Username)
	require.Len(t, profile.Credentials, 1)
	require.Equal(t, EncodeCredentialID([]byte("cred-1")), profile.Credentials[0].ID)
	require.Equal(t, uint32(3), profile.Credentials[0].SignCounter)

	_, err = f.svc.GetProfile(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFinishRegistrationCredentialIDCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// cred-1 ya pertenece a bob; el id es único a nivel global.
	registerCredential(t, f, "bob", "cred-1", 0)

	begin, err := f.svc.BeginRegistration(ctx, "alice", "Alice", true)
	require.NoError(t, err)

	f.fake.created = testCredential("cred-1", 0)
	_, err = f.svc.FinishRegistration(ctx, begin.UserID, []byte(`{}`), "macOS Safari")
	require.ErrorIs(t, err, ErrCredentialExists)

	// Alice no queda con ninguna credencial a medias.
	creds, err := f.store.Credentials().ListByUser(ctx, begin.UserID)
	require.NoError(t, err)
	require.Empty(t, creds)
}
