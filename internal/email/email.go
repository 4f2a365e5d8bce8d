// Package email provee el envío out-of-band de códigos OTP.
package email

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellokeys/internal/observability/logger"
)

// Sender entrega un código OTP al usuario por un canal out-of-band.
type Sender interface {
	// SendOtp envía el código al destino asociado al username.
	SendOtp(ctx context.Context, username, code string, ttl time.Duration) error
}

// otpSubject es el subject del mail de OTP.
const otpSubject = "Tu código de verificación"

func otpBodies(code string, ttl time.Duration) (html, text string) {
	mins := int(ttl.Minutes())
	text = fmt.Sprintf("Tu código de un solo uso es %s. Expira en %d minutos.", code, mins)
	html = fmt.Sprintf(
		`<p>Tu código de un solo uso es</p><p style="font-size:2em;letter-spacing:0.3em"><b>%s</b></p><p>Expira en %d minutos.</p>`,
		code, mins,
	)
	return html, text
}

// LogSender implementa Sender escribiendo el código al log.
// Solo para desarrollo: nunca usar en producción.
type LogSender struct{}

func (LogSender) SendOtp(ctx context.Context, username, code string, ttl time.Duration) error {
	logger.From(ctx).Info("otp code (dev sender)",
		logger.Username(username),
		logger.String("code", code),
	)
	return nil
}
