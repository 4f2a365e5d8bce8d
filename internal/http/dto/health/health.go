// Package health define la respuesta del health check.
package health

// Response es el body de GET /healthz.
type Response struct {
	Status     string            `json:"status"` // ready | degraded
	Components map[string]string `json:"components,omitempty"`
}
