// Package pg implementa los repositorios sobre PostgreSQL con pgxpool.
//
// Esquema normalizado: users y credentials en tablas separadas, de modo que
// actualizar una credencial es un replace de una sola fila (sin transacciones
// multi-documento).
package pg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	migrations "github.com/dropDatabas3/hellokeys/migrations/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store agrupa los repositorios Postgres sobre un pool compartido.
type Store struct{ pool *pgxpool.Pool }

// Config ajusta el pool. Cero significa "dejar el default de pgxpool".
type Config struct {
	DSN             string
	MaxConns        int32
	ConnMaxLifetime time.Duration
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	return pc, nil
}

// New abre el pool y verifica la conexión.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifica la conexión. Para el health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate aplica las migraciones embebidas en orden lexicográfico. Cada
// archivo es idempotente (CREATE ... IF NOT EXISTS).
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("pg: read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("pg: read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("pg: apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Users retorna la vista UserRepository.
func (s *Store) Users() repository.UserRepository { return &userRepo{s.pool} }

// Credentials retorna la vista CredentialRepository.
func (s *Store) Credentials() repository.CredentialRepository { return &credRepo{s.pool} }

// isUniqueViolation detecta el código 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ── UserRepository ──

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) Create(ctx context.Context, username, displayName string) (*repository.User, error) {
	if username == "" {
		return nil, repository.ErrInvalidInput
	}
	if displayName == "" {
		displayName = username
	}

	u := repository.User{
		ID:          uuid.NewString(),
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, display_name, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, u.DisplayName, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("pg: create user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	return r.get(ctx, `SELECT id, username, display_name, created_at FROM users WHERE username = $1`, username)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return r.get(ctx, `SELECT id, username, display_name, created_at FROM users WHERE id = $1`, id)
}

func (r *userRepo) get(ctx context.Context, query string, arg any) (*repository.User, error) {
	var u repository.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get user: %w", err)
	}
	return &u, nil
}

// ── CredentialRepository ──

type credRepo struct{ pool *pgxpool.Pool }

const credColumns = `id, user_id, public_key, sign_counter, data, last_used_platform, created_at, updated_at`

func (r *credRepo) Add(ctx context.Context, cred repository.Credential) error {
	if len(cred.ID) == 0 || cred.UserID == "" {
		return repository.ErrInvalidInput
	}
	now := time.Now().UTC()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO credentials (`+credColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cred.ID, cred.UserID, cred.PublicKey, int64(cred.SignCounter), cred.Data,
		cred.LastUsedPlatform, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("pg: add credential: %w", err)
	}
	return nil
}

func (r *credRepo) GetByID(ctx context.Context, id []byte) (*repository.Credential, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+credColumns+` FROM credentials WHERE id = $1`, id)
	return scanCredential(row)
}

func (r *credRepo) ListByUser(ctx context.Context, userID string) ([]repository.Credential, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+credColumns+` FROM credentials WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("pg: list credentials: %w", err)
	}
	defer rows.Close()

	var out []repository.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *credRepo) UpdateCAS(ctx context.Context, cred repository.Credential, prevCounter uint32) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE credentials
		    SET public_key = $1, sign_counter = $2, data = $3, last_used_platform = $4, updated_at = $5
		  WHERE id = $6 AND sign_counter = $7`,
		cred.PublicKey, int64(cred.SignCounter), cred.Data, cred.LastUsedPlatform,
		time.Now().UTC(), cred.ID, int64(prevCounter),
	)
	if err != nil {
		return fmt.Errorf("pg: update credential: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguir "no existe" de "otro writer ganó".
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE id = $1)`, cred.ID).Scan(&exists); err != nil {
		return fmt.Errorf("pg: update credential: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrCounterStale
}

func (r *credRepo) Delete(ctx context.Context, userID string, id []byte) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM credentials WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("pg: delete credential: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *credRepo) CountOther(ctx context.Context, userID string, id []byte) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM credentials WHERE user_id = $1 AND id <> $2`, userID, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pg: count credentials: %w", err)
	}
	return n, nil
}

func (r *credRepo) IsUniqueForUser(ctx context.Context, userID string, id []byte) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE user_id = $1 AND id = $2)`, userID, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pg: credential uniqueness: %w", err)
	}
	return !exists, nil
}

func scanCredential(row pgx.Row) (*repository.Credential, error) {
	var c repository.Credential
	var counter int64
	err := row.Scan(&c.ID, &c.UserID, &c.PublicKey, &counter, &c.Data,
		&c.LastUsedPlatform, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: scan credential: %w", err)
	}
	c.SignCounter = uint32(counter)
	return &c, nil
}
