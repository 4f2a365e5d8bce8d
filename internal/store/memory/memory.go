// Package memory implementa los repositorios en maps in-process.
// Útil para desarrollo y testing; la implementación de producción es store/pg.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/google/uuid"
)

// Store agrupa los repositorios en memoria sobre un estado compartido.
type Store struct {
	data *data
}

type data struct {
	mu          sync.RWMutex
	usersByID   map[string]repository.User
	usersByName map[string]string                // username -> id
	creds       map[string]repository.Credential // key = string(credential id)
}

// New crea un Store vacío.
func New() *Store {
	return &Store{data: &data{
		usersByID:   make(map[string]repository.User),
		usersByName: make(map[string]string),
		creds:       make(map[string]repository.Credential),
	}}
}

// Users retorna la vista UserRepository.
func (s *Store) Users() repository.UserRepository { return &userRepo{s.data} }

// Credentials retorna la vista CredentialRepository.
func (s *Store) Credentials() repository.CredentialRepository { return &credRepo{s.data} }

// ── UserRepository ──

type userRepo struct{ d *data }

func (r *userRepo) Create(ctx context.Context, username, displayName string) (*repository.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, repository.ErrInvalidInput
	}
	if displayName == "" {
		displayName = username
	}

	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	if _, exists := r.d.usersByName[username]; exists {
		return nil, repository.ErrConflict
	}

	u := repository.User{
		ID:          uuid.NewString(),
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	r.d.usersByID[u.ID] = u
	r.d.usersByName[username] = u.ID
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	id, ok := r.d.usersByName[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := r.d.usersByID[id]
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	u, ok := r.d.usersByID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// ── CredentialRepository ──

type credRepo struct{ d *data }

func (r *credRepo) Add(ctx context.Context, cred repository.Credential) error {
	if len(cred.ID) == 0 || cred.UserID == "" {
		return repository.ErrInvalidInput
	}

	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	k := string(cred.ID)
	if _, exists := r.d.creds[k]; exists {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	cred.CreatedAt = now
	cred.UpdatedAt = now
	r.d.creds[k] = cred
	return nil
}

func (r *credRepo) GetByID(ctx context.Context, id []byte) (*repository.Credential, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	c, ok := r.d.creds[string(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *credRepo) ListByUser(ctx context.Context, userID string) ([]repository.Credential, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	var out []repository.Credential
	for _, c := range r.d.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *credRepo) UpdateCAS(ctx context.Context, cred repository.Credential, prevCounter uint32) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	k := string(cred.ID)
	current, ok := r.d.creds[k]
	if !ok {
		return repository.ErrNotFound
	}
	if current.SignCounter != prevCounter {
		return repository.ErrCounterStale
	}
	cred.CreatedAt = current.CreatedAt
	cred.UpdatedAt = time.Now().UTC()
	r.d.creds[k] = cred
	return nil
}

func (r *credRepo) Delete(ctx context.Context, userID string, id []byte) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	k := string(id)
	c, ok := r.d.creds[k]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(r.d.creds, k)
	return true, nil
}

func (r *credRepo) CountOther(ctx context.Context, userID string, id []byte) (int, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	var n int
	for _, c := range r.d.creds {
		if c.UserID == userID && string(c.ID) != string(id) {
			n++
		}
	}
	return n, nil
}

func (r *credRepo) IsUniqueForUser(ctx context.Context, userID string, id []byte) (bool, error) {
	r.d.mu.RLock()
	defer r.d.mu.RUnlock()

	c, ok := r.d.creds[string(id)]
	if !ok {
		return true, nil
	}
	return c.UserID != userID, nil
}
