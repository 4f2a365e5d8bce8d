package memory

import (
	"context"
	"testing"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/stretchr/testify/require"
)

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Users().Create(ctx, "alice", "Alice")
	require.NoError(t, err)

	_, err = s.Users().Create(ctx, "alice", "Other Alice")
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestCreateUserEmptyUsername(t *testing.T) {
	s := New()
	_, err := s.Users().Create(context.Background(), "  ", "")
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestGetUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.Users().Create(ctx, "alice", "")
	require.NoError(t, err)
	require.Equal(t, "alice", u.DisplayName, "display name defaults to username")

	byName, err := s.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)

	byID, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	_, err = s.Users().GetByUsername(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCredentialIDGloballyUnique(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.Users().Create(ctx, "alice", "")
	b, _ := s.Users().Create(ctx, "bob", "")

	id := []byte{0x01, 0x02, 0x03}
	require.NoError(t, s.Credentials().Add(ctx, repository.Credential{ID: id, UserID: a.ID}))

	// Mismo credential id para otro usuario: conflicto, unicidad global.
	err := s.Credentials().Add(ctx, repository.Credential{ID: id, UserID: b.ID})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpdateCAS(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, "alice", "")
	cred := repository.Credential{ID: []byte("cred-1"), UserID: u.ID, SignCounter: 5}
	require.NoError(t, s.Credentials().Add(ctx, cred))

	cred.SignCounter = 6
	require.NoError(t, s.Credentials().UpdateCAS(ctx, cred, 5))

	// Mismo prevCounter otra vez: el primero ganó, este pierde.
	cred.SignCounter = 7
	err := s.Credentials().UpdateCAS(ctx, cred, 5)
	require.ErrorIs(t, err, repository.ErrCounterStale)

	got, err := s.Credentials().GetByID(ctx, []byte("cred-1"))
	require.NoError(t, err)
	require.Equal(t, uint32(6), got.SignCounter)
}

func TestDeleteAndCountOther(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, "alice", "")
	_ = s.Credentials().Add(ctx, repository.Credential{ID: []byte("c1"), UserID: u.ID})
	_ = s.Credentials().Add(ctx, repository.Credential{ID: []byte("c2"), UserID: u.ID})

	n, err := s.Credentials().CountOther(ctx, u.ID, []byte("c1"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ok, err := s.Credentials().Delete(ctx, u.ID, []byte("c1"))
	require.NoError(t, err)
	require.True(t, ok)

	// Segundo delete del mismo id no afecta registros.
	ok, err = s.Credentials().Delete(ctx, u.ID, []byte("c1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteScopedToOwner(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.Users().Create(ctx, "alice", "")
	b, _ := s.Users().Create(ctx, "bob", "")
	_ = s.Credentials().Add(ctx, repository.Credential{ID: []byte("c1"), UserID: a.ID})

	ok, err := s.Credentials().Delete(ctx, b.ID, []byte("c1"))
	require.NoError(t, err)
	require.False(t, ok, "a user must not delete another user's credential")
}

func TestIsUniqueForUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.Users().Create(ctx, "alice", "")
	b, _ := s.Users().Create(ctx, "bob", "")
	_ = s.Credentials().Add(ctx, repository.Credential{ID: []byte("c1"), UserID: a.ID})

	unique, err := s.Credentials().IsUniqueForUser(ctx, a.ID, []byte("c1"))
	require.NoError(t, err)
	require.False(t, unique)

	unique, err = s.Credentials().IsUniqueForUser(ctx, b.ID, []byte("c1"))
	require.NoError(t, err)
	require.True(t, unique)

	unique, err = s.Credentials().IsUniqueForUser(ctx, a.ID, []byte("unknown"))
	require.NoError(t, err)
	require.True(t, unique)
}
