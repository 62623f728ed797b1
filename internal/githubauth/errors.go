package githubauth

import (
	"errors"
	"fmt"
)

const (
	credentialExchangeErrorTemplateConstant       = "installation token exchange failed for installation %s: %v"
	credentialExchangeErrorWithoutIDTemplateConst = "installation token exchange failed: %v"
	unexpectedStatusErrorTemplateConstant         = "identity service responded with status %d: %s"
	unexpectedStatusWithoutBodyErrorTemplateConst = "identity service responded with status %d"
	missingCredentialFieldsErrorTemplateConstant  = "missing application credentials: %s"
	incompleteCredentialsFieldSeparatorConstant   = ", "
	privateKeyParseErrorTemplateConstant          = "invalid application private key: %w"
	assertionSigningErrorTemplateConstant         = "unable to sign application assertion: %w"
	requestConstructionErrorTemplateConstant      = "unable to build token request: %w"
	requestExecutionErrorTemplateConstant         = "token request failed: %w"
	responseDecodingErrorTemplateConstant         = "unable to decode token response: %w"
)

// ErrTokenUnavailable identifies every failure to obtain an installation access token.
var ErrTokenUnavailable = errors.New("installation access token unavailable")

// ErrEmptyToken indicates that the identity service answered without a usable token.
var ErrEmptyToken = errors.New("identity service returned an empty token")

// ErrLoggerNotConfigured indicates that a provider was constructed without a logger.
var ErrLoggerNotConfigured = errors.New("githubauth: logger not configured")

// CredentialExchangeError describes a rejected, malformed or unreachable token exchange.
type CredentialExchangeError struct {
	InstallationID string
	Cause          error
}

// Error describes the failed exchange without including key material or tokens.
func (exchangeError CredentialExchangeError) Error() string {
	if len(exchangeError.InstallationID) == 0 {
		return fmt.Sprintf(credentialExchangeErrorWithoutIDTemplateConst, exchangeError.Cause)
	}
	return fmt.Sprintf(credentialExchangeErrorTemplateConstant, exchangeError.InstallationID, exchangeError.Cause)
}

// Unwrap exposes the underlying cause.
func (exchangeError CredentialExchangeError) Unwrap() error {
	return exchangeError.Cause
}

// Is matches ErrTokenUnavailable.
func (exchangeError CredentialExchangeError) Is(target error) bool {
	return target == ErrTokenUnavailable
}

// UnexpectedStatusError reports a non-created response from the identity service.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
}

func (statusError UnexpectedStatusError) Error() string {
	if len(statusError.Body) == 0 {
		return fmt.Sprintf(unexpectedStatusWithoutBodyErrorTemplateConst, statusError.StatusCode)
	}
	return fmt.Sprintf(unexpectedStatusErrorTemplateConstant, statusError.StatusCode, statusError.Body)
}
