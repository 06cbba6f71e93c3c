package session

import (
	"errors"
	"strings"
)

type messageKey int

const (
	msgGeneric messageKey = iota
	msgInvalidCredentials
	msgEmailNotConfirmed
	msgAlreadyRegistered
	msgWeakPassword
	msgPasswordMismatch
	msgMissingCredentials
	msgUnavailable
)

var messages = map[string]map[messageKey]string{
	"es": {
		msgGeneric:            "Ocurrió un error de autenticación. Por favor, inténtalo de nuevo.",
		msgInvalidCredentials: "Credenciales inválidas. Por favor, inténtalo de nuevo.",
		msgEmailNotConfirmed:  "Por favor, confirma tu correo electrónico antes de iniciar sesión.",
		msgAlreadyRegistered:  "Este correo electrónico ya está registrado. Intenta iniciar sesión.",
		msgWeakPassword:       "La contraseña debe tener al menos 6 caracteres.",
		msgPasswordMismatch:   "Las contraseñas no coinciden.",
		msgMissingCredentials: "Introduce tu correo electrónico y tu contraseña.",
		msgUnavailable:        "El servicio de autenticación no está disponible. Contacta al administrador.",
	},
	"en": {
		msgGeneric:            "An authentication error occurred. Please try again.",
		msgInvalidCredentials: "Invalid credentials. Please try again.",
		msgEmailNotConfirmed:  "Please confirm your email address before signing in.",
		msgAlreadyRegistered:  "This email is already registered. Try signing in.",
		msgWeakPassword:       "Password should be at least 6 characters.",
		msgPasswordMismatch:   "Passwords do not match.",
		msgMissingCredentials: "Enter your email and password.",
		msgUnavailable:        "The authentication service is not available. Contact the administrator.",
	},
}

// backend wording and error codes, matched case-insensitively
var backendPatterns = []struct {
	key     messageKey
	needles []string
}{
	{msgInvalidCredentials, []string{"invalid login credentials", "invalid_credentials"}},
	{msgEmailNotConfirmed, []string{"email not confirmed", "email_not_confirmed"}},
	{msgAlreadyRegistered, []string{"user already registered", "user_already_exists"}},
	{msgWeakPassword, []string{"password should be at least", "weak_password"}},
}

// Describe renders an authentication error as a user-facing message in
// locale ("es" or "en"; anything else falls back to "es").
func Describe(err error, locale string) string {
	if err == nil {
		return ""
	}
	table, ok := messages[locale]
	if !ok {
		table = messages["es"]
	}
	return table[classify(err)]
}

func classify(err error) messageKey {
	switch {
	case errors.Is(err, ErrBackendUnavailable):
		return msgUnavailable
	case errors.Is(err, ErrPasswordMismatch):
		return msgPasswordMismatch
	case errors.Is(err, ErrWeakPassword):
		return msgWeakPassword
	case errors.Is(err, ErrMissingCredentials):
		return msgMissingCredentials
	}

	text := strings.ToLower(err.Error())
	for _, p := range backendPatterns {
		for _, n := range p.needles {
			if strings.Contains(text, n) {
				return p.key
			}
		}
	}
	return msgGeneric
}
