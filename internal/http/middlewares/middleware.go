// Package middlewares contiene los decoradores http.Handler del servicio:
// request id, logging, recover, device detection, rate limit y el gate de
// scopes.
package middlewares

import "net/http"

// Middleware es un decorador de http.Handler. El router los compone con
// chi.Use/With.
type Middleware func(http.Handler) http.Handler
