package repository

import (
	"context"
	"time"
)

// User representa una identidad del sistema.
type User struct {
	// ID es el UUID público del usuario. Es también el user handle que se
	// entrega al autenticador durante las ceremonias.
	ID          string
	Username    string // único a nivel global
	DisplayName string
	CreatedAt   time.Time
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create crea un usuario nuevo.
	// Retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, username, displayName string) (*User, error)

	// GetByUsername busca un usuario por username.
	// Retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID busca un usuario por su UUID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)
}
