// Package metrics define las métricas Prometheus del orquestador. Viven en un
// paquete propio para evitar ciclos de import entre servicios y HTTP.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OtpRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otp_requests_total",
		Help: "Códigos OTP emitidos",
	})

	OtpValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_validations_total",
		Help: "Validaciones de OTP por resultado",
	}, []string{"result"}) // "ok" | "fail"

	CeremoniesStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ceremonies_started_total",
		Help: "Ceremonias iniciadas por tipo",
	}, []string{"kind"}) // "registration" | "assertion"

	CeremoniesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ceremonies_completed_total",
		Help: "Ceremonias terminadas por tipo y resultado",
	}, []string{"kind", "result"}) // result: "ok" | "expired" | "rejected"

	CeremonyFinishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ceremony_finish_duration_seconds",
		Help:    "Duración del fin de ceremonia (incluye verificación y persistencia)",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	CredentialsRevoked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credentials_revoked_total",
		Help: "Revocaciones de credenciales por resultado",
	}, []string{"result"}) // "ok" | "not_found" | "primary"
)

// Register registra las métricas en el registry dado (default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		OtpRequests,
		OtpValidations,
		CeremoniesStarted,
		CeremoniesCompleted,
		CeremonyFinishDuration,
		CredentialsRevoked,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
