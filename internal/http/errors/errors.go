// Package errors define el envelope JSON de error de la API y el mapeo
// central desde los errores de dominio a status HTTP.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/hellokeys/internal/domain/repository"
	"github.com/dropDatabas3/hellokeys/internal/observability/logger"
	"github.com/dropDatabas3/hellokeys/internal/passkey"
)

// errorResponse estructura interna para la serialización JSON.
// Controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// FromError convierte cualquier error en un AppError. Los errores de dominio
// se mapean a su status; lo no modelado es un 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, repository.ErrInvalidInput):
		return ErrMissingFields.WithCause(err)
	case errors.Is(err, repository.ErrConflict):
		return ErrUsernameTaken.WithCause(err)
	case errors.Is(err, repository.ErrNotFound):
		return ErrUserNotFound.WithCause(err)
	case errors.Is(err, repository.ErrCounterStale):
		return ErrConcurrentUpdate.WithCause(err)
	case errors.Is(err, passkey.ErrCredentialExists):
		return ErrCredentialTaken.WithCause(err)
	case errors.Is(err, passkey.ErrCeremonyNotFound):
		return ErrCeremonyExpired.WithCause(err)
	case errors.Is(err, passkey.ErrVerificationFailed):
		return ErrVerificationFailed.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// WriteError escribe la respuesta de error. Los 5xx se loguean con su causa;
// los 4xx son ruido esperado y van a Debug.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)

	log := logger.From(r.Context())
	if appErr.HTTPStatus >= 500 {
		log.Error("request failed", logger.Err(appErr.Err), logger.String("code", appErr.Code))
	} else {
		log.Debug("request rejected", logger.Err(appErr.Err), logger.String("code", appErr.Code))
	}

	resp := errorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Detail:    appErr.Detail,
		RequestID: w.Header().Get("X-Request-ID"),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
