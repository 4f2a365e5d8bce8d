// Package rate implementa un rate limit fixed-window para los endpoints OTP.
// El flujo de passkey no lo necesita (el challenge cache ya es de un solo
// uso), pero la emisión de códigos dispara emails y merece un freno.
package rate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result es el veredicto de una ventana.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter decide si una key puede ejecutar una operación más en la ventana
// actual.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config selecciona el backend. Con driver redis el contador se comparte
// entre réplicas; memory solo sirve para un proceso único.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string

	Max    int
	Window time.Duration
}

// New construye el limiter según el driver.
func New(cfg Config) (Limiter, error) {
	if cfg.Max <= 0 {
		cfg.Max = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryLimiter(cfg.Max, cfg.Window), nil
	case "redis":
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return NewRedisLimiter(client, cfg.Prefix, cfg.Max, cfg.Window), nil
	default:
		return nil, fmt.Errorf("rate: unknown driver %q", cfg.Driver)
	}
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE).
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, max: int64(max), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	hits, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, err
	}
	if hits == 1 {
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
	}

	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    hits <= l.max,
		Remaining:  remaining,
		RetryAfter: winStart.Add(l.window).Sub(now),
	}, nil
}

// MemoryLimiter: la misma ventana fija, contadores en proceso.
type MemoryLimiter struct {
	mu     sync.Mutex
	hits   map[string]int64
	max    int64
	window time.Duration
	// now se inyecta en tests
	now func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits:   make(map[string]int64),
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	bucket := fmt.Sprintf("%s:%d", key, winStart.Unix())

	l.mu.Lock()
	l.hits[bucket]++
	hits := l.hits[bucket]
	// Limpieza oportunista de ventanas viejas para no crecer sin límite.
	if len(l.hits) > 4096 {
		cutoff := fmt.Sprintf(":%d", winStart.Add(-l.window).Unix())
		for k := range l.hits {
			if strings.HasSuffix(k, cutoff) {
				delete(l.hits, k)
			}
		}
	}
	l.mu.Unlock()

	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    hits <= l.max,
		Remaining:  remaining,
		RetryAfter: winStart.Add(l.window).Sub(now),
	}, nil
}
