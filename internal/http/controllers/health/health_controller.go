// Package health contiene el controller del health check.
package health

import (
	"net/http"

	"github.com/dropDatabas3/hellokeys/internal/cache"
	dto "github.com/dropDatabas3/hellokeys/internal/http/dto/health"
	"github.com/dropDatabas3/hellokeys/internal/http/helpers"
)

// Controller reporta la salud de las dependencias externas.
type Controller struct {
	cache cache.Client
	// pingStore es nil con el store en memoria.
	pingStore func(r *http.Request) error
}

func NewController(c cache.Client, pingStore func(r *http.Request) error) *Controller {
	return &Controller{cache: c, pingStore: pingStore}
}

// Healthz maneja GET /healthz. Una dependencia caída degrada el estado pero
// responde 200: el proceso sigue vivo y puede recuperarse solo.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	status := "ready"

	if err := c.cache.Ping(r.Context()); err != nil {
		components["cache"] = err.Error()
		status = "degraded"
	} else {
		components["cache"] = "ok"
	}

	if c.pingStore != nil {
		if err := c.pingStore(r); err != nil {
			components["store"] = err.Error()
			status = "degraded"
		} else {
			components["store"] = "ok"
		}
	}

	helpers.WriteJSON(w, http.StatusOK, dto.Response{Status: status, Components: components})
}
