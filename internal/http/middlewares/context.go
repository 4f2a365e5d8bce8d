package middlewares

import (
	"context"

	"github.com/dropDatabas3/hellokeys/internal/token"
)

type ctxKey string

const (
	// ctxClaimsKey guarda las claims del bearer token validado
	ctxClaimsKey ctxKey = "claims"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
	// ctxPlatformKey guarda la plataforma resuelta del User-Agent
	ctxPlatformKey ctxKey = "platform"
)

// WithClaims inyecta las claims validadas en el contexto.
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, claims)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

func setPlatform(ctx context.Context, platform string) context.Context {
	return context.WithValue(ctx, ctxPlatformKey, platform)
}

// GetClaims obtiene las claims del contexto. Retorna nil si la ruta no pasó
// por el middleware de auth.
func GetClaims(ctx context.Context) *token.Claims {
	if v := ctx.Value(ctxClaimsKey); v != nil {
		if c, ok := v.(*token.Claims); ok {
			return c
		}
	}
	return nil
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetPlatform obtiene la plataforma del contexto. Cadena vacía si el
// middleware de device detection no se aplicó.
func GetPlatform(ctx context.Context) string {
	if v := ctx.Value(ctxPlatformKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
