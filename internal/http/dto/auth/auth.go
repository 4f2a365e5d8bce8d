// Package auth define los cuerpos JSON de los endpoints de autenticación.
package auth

import "encoding/json"

// OtpRequest es el body de POST /otp/request.
type OtpRequest struct {
	Username string `json:"username"`
}

// OtpValidateRequest es el body de POST /otp/validate.
type OtpValidateRequest struct {
	Otp string `json:"otp"`
}

// TokenResponse devuelve un bearer token (OTP-scoped, passkey-scoped o de
// sesión según el endpoint).
type TokenResponse struct {
	Token string `json:"token"`
}

// CredentialOptionsRequest es el body de POST /credential-options.
// Username solo para signup anónimo; con bearer el sujeto sale del token.
type CredentialOptionsRequest struct {
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// CeremonyOptionsResponse devuelve las opciones de una ceremonia y el id de
// correlación que el cliente debe devolver en el end.
type CeremonyOptionsResponse struct {
	Options json.RawMessage `json:"options"`
	UserID  string          `json:"userId"`
}

// CredentialRequest es el body de POST /credential.
type CredentialRequest struct {
	UserID              string          `json:"userId"`
	AttestationResponse json.RawMessage `json:"attestationResponse"`
}

// CredentialResponse es el resultado de un registro verificado.
type CredentialResponse struct {
	CredentialID string `json:"credentialId"`
	Token        string `json:"token"`
}

// AssertionOptionsRequest es el body de POST /assertion-options.
type AssertionOptionsRequest struct {
	Username string `json:"username"`
}

// AssertionRequest es el body de POST /assertion.
type AssertionRequest struct {
	UserID               string          `json:"userId"`
	AssertionRawResponse json.RawMessage `json:"assertionRawResponse"`
}

// AssertionResponse es el resultado de una assertion verificada.
type AssertionResponse struct {
	CredentialID string `json:"credentialId"`
	CloneWarning bool   `json:"cloneWarning"`
	Token        string `json:"token"`
}

// RevokeRequest es el body de DELETE /credential. CredentialID viene en
// base64url sin padding, como lo devolvió el registro.
type RevokeRequest struct {
	CredentialID string `json:"credentialId"`
}

// CredentialSummary es la vista de una credencial en el perfil.
type CredentialSummary struct {
	ID               string `json:"id"`
	SignCounter      uint32 `json:"signCounter"`
	LastUsedPlatform string `json:"lastUsedPlatform,omitempty"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

// MeResponse es el perfil devuelto por GET /users/me.
type MeResponse struct {
	ID          string              `json:"id"`
	Username    string              `json:"username"`
	DisplayName string              `json:"displayName,omitempty"`
	CreatedAt   string              `json:"createdAt"`
	Credentials []CredentialSummary `json:"credentials"`
}
