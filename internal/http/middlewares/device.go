package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/hellokeys/internal/device"
)

// WithDeviceDetection resuelve la plataforma del cliente a partir del
// User-Agent y la deja en el contexto. Los controllers de ceremonias la
// persisten sobre la credencial como "última plataforma vista".
func WithDeviceDetection() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			platform := device.Platform(r.UserAgent())
			next.ServeHTTP(w, r.WithContext(setPlatform(r.Context(), platform)))
		})
	}
}
