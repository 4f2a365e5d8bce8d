// Package otp implementa el gate de one-time passwords que escala el flujo
// anónimo hacia las operaciones de passkey.
//
// Del código solo se persiste un digest HMAC-SHA256 (nunca el cleartext),
// guardado en el challenge cache con su propio TTL. Un código es de un solo
// uso: la validación exitosa lo consume.
package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/cache"
	"github.com/dropDatabas3/hellokeys/internal/email"
	"github.com/dropDatabas3/hellokeys/internal/metrics"
	"github.com/dropDatabas3/hellokeys/internal/observability/logger"
	"golang.org/x/crypto/hkdf"
)

// Digits es el largo fijo del código.
const Digits = 6

// DefaultTTL es la ventana de validez de un código.
const DefaultTTL = 10 * time.Minute

// hkdfInfo separa la clave del gate de otros usos del mismo secret maestro.
const hkdfInfo = "hellokeys/otp/v1"

// Gate genera y valida códigos OTP ligados a un username.
type Gate struct {
	key    []byte
	cache  cache.Client
	sender email.Sender
	ttl    time.Duration
}

// New construye un Gate. La clave HMAC se deriva del secret maestro via
// HKDF-SHA256, de modo que rotar el secret rota también esta clave.
func New(masterSecret string, c cache.Client, sender email.Sender, ttl time.Duration) (*Gate, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("otp: master secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("otp: derive key: %w", err)
	}

	return &Gate{key: key, cache: c, sender: sender, ttl: ttl}, nil
}

// TTL retorna la ventana de validez configurada.
func (g *Gate) TTL() time.Duration { return g.ttl }

// Generate produce un código nuevo para username, persiste su digest y lo
// entrega out-of-band. Un código previo no consumido queda invalidado: solo
// vale el último emitido.
func (g *Gate) Generate(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("otp: username is required")
	}

	code, err := randomCode()
	if err != nil {
		return "", err
	}

	if err := g.cache.Put(ctx, cacheKey(username), g.digest(username, code), g.ttl); err != nil {
		return "", fmt.Errorf("otp: store digest: %w", err)
	}

	if err := g.sender.SendOtp(ctx, username, code, g.ttl); err != nil {
		return "", fmt.Errorf("otp: deliver code: %w", err)
	}

	metrics.OtpRequests.Inc()
	logger.From(ctx).Info("otp issued", logger.Username(username))
	return code, nil
}

// Validate compara el digest del código recibido contra el almacenado.
// Falla cerrado: digest ausente o expirado retorna false, nunca error.
// En caso de éxito el digest se consume; validar el mismo código de nuevo
// retorna false.
func (g *Gate) Validate(ctx context.Context, username, submitted string) bool {
	ok := g.validate(ctx, username, submitted)
	result := "fail"
	if ok {
		result = "ok"
	}
	metrics.OtpValidations.WithLabelValues(result).Inc()
	return ok
}

func (g *Gate) validate(ctx context.Context, username, submitted string) bool {
	if username == "" || submitted == "" {
		return false
	}

	stored, err := g.cache.Get(ctx, cacheKey(username))
	if err != nil {
		return false
	}

	mac := g.digest(username, submitted)
	if !hmac.Equal(stored, mac) {
		// Código erróneo: el digest queda vivo para un reintento dentro del TTL.
		return false
	}

	// Consumir de forma atómica; si otro caller ganó la carrera, pierde este.
	taken, err := g.cache.TakeAndRemove(ctx, cacheKey(username))
	if err != nil {
		return false
	}
	return hmac.Equal(taken, mac)
}

// digest liga el código al username para que un código emitido para un usuario
// no valide para otro.
func (g *Gate) digest(username, code string) []byte {
	m := hmac.New(sha256.New, g.key)
	m.Write([]byte(username))
	m.Write([]byte{0})
	m.Write([]byte(code))
	return m.Sum(nil)
}

func cacheKey(username string) string { return "otp:" + username }

// randomCode genera Digits dígitos decimales con crypto/rand.
func randomCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < Digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("otp: rand: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n), nil
}
