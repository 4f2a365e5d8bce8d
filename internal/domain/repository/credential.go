package repository

import (
	"context"
	"time"
)

// Credential representa un autenticador registrado para un usuario.
//
// El modelo es normalizado: las credenciales viven en su propia colección con
// FK al usuario, de modo que una actualización de counter es un replace de un
// solo registro.
type Credential struct {
	// ID es el credential id que reporta el autenticador. Opaco, único a nivel
	// global (no solo por usuario).
	ID        []byte
	UserID    string // UUID del usuario dueño
	PublicKey []byte

	// SignCounter es el contador anti-clonación del autenticador. Solo crece;
	// la verificación de monotonicidad la hace la librería WebAuthn, acá solo
	// se persiste el valor que ella retorna.
	SignCounter uint32

	// Data es la credencial serializada tal como la entrega la librería
	// WebAuthn. Se necesita completa para reconstruir descriptores y flags en
	// ceremonias posteriores.
	Data []byte

	// LastUsedPlatform describe el dispositivo/navegador de la última ceremonia.
	LastUsedPlatform string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialRepository define operaciones sobre credenciales.
type CredentialRepository interface {
	// Add persiste una credencial nueva.
	// Retorna ErrConflict si el credential id ya existe.
	Add(ctx context.Context, cred Credential) error

	// GetByID busca una credencial por su id.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id []byte) (*Credential, error)

	// ListByUser retorna todas las credenciales de un usuario.
	ListByUser(ctx context.Context, userID string) ([]Credential, error)

	// UpdateCAS reemplaza la credencial solo si el sign counter persistido
	// sigue siendo prevCounter (compare-and-swap). Retorna ErrCounterStale si
	// otro writer ganó la carrera, ErrNotFound si la credencial no existe.
	UpdateCAS(ctx context.Context, cred Credential, prevCounter uint32) error

	// Delete elimina la credencial id del usuario userID.
	// Retorna false si no afectó ningún registro.
	Delete(ctx context.Context, userID string, id []byte) (bool, error)

	// CountOther cuenta las credenciales del usuario distintas de id.
	CountOther(ctx context.Context, userID string, id []byte) (int, error)

	// IsUniqueForUser retorna true si no existe una credencial con ese id para
	// el usuario. Se usa como guard de colisión durante el registro.
	IsUniqueForUser(ctx context.Context, userID string, id []byte) (bool, error)
}
