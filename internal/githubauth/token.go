package githubauth

import (
	"time"
)

const redactedTokenRepresentationConstant = "***"
const absentTokenRepresentationConstant = "<absent>"

// AccessToken is a short-lived installation bearer token. The zero value represents an absent token.
type AccessToken struct {
	value     string
	expiresAt time.Time
}

// NewAccessToken wraps a raw token value and its expiry reported by the identity service.
func NewAccessToken(value string, expiresAt time.Time) AccessToken {
	return AccessToken{value: value, expiresAt: expiresAt}
}

// IsZero reports whether the token is absent and must not be used for authentication.
func (token AccessToken) IsZero() bool {
	return len(token.value) == 0
}

// Value returns the raw bearer token for interpolation into an authenticated command.
func (token AccessToken) Value() string {
	return token.value
}

// ExpiresAt returns the expiry reported by the identity service; the zero time when unknown.
func (token AccessToken) ExpiresAt() time.Time {
	return token.expiresAt
}

// String never reveals the token value so that tokens passed to loggers or format verbs stay hidden.
func (token AccessToken) String() string {
	if token.IsZero() {
		return absentTokenRepresentationConstant
	}
	return redactedTokenRepresentationConstant
}

// GoString mirrors String for %#v formatting.
func (token AccessToken) GoString() string {
	return token.String()
}
