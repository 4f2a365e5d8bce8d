// Package cache provee el store efímero de estado de ceremonias pendientes.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// La semántica clave es TakeAndRemove: lectura y borrado atómicos. Dos callers
// concurrentes nunca observan el mismo valor dos veces; el segundo recibe
// ErrNotFound y la ceremonia en vuelo debe reiniciarse desde el begin.
package cache

import (
	"context"
	"time"
)

// DefaultTTL es la ventana por defecto de vida de una entrada.
var DefaultTTL = 5 * time.Minute

// Client define las operaciones del challenge cache.
type Client interface {
	// Put guarda un valor bajo key con el TTL dado (0 = DefaultTTL).
	// Si ya existe una entrada para key, la pisa: a lo sumo una ceremonia
	// pendiente por key.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get lee la entrada sin consumirla.
	// Retorna ErrNotFound si no existe o ya expiró.
	Get(ctx context.Context, key string) ([]byte, error)

	// TakeAndRemove lee y borra la entrada de forma atómica.
	// Retorna ErrNotFound si no existe o ya expiró.
	TakeAndRemove(ctx context.Context, key string) ([]byte, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys
}

// Errores de cache.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
