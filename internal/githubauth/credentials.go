package githubauth

import (
	"fmt"
	"strings"
)

const (
	appIDFieldNameConstant          = "app id"
	privateKeyFieldNameConstant     = "private key"
	installationIDFieldNameConstant = "installation id"
	escapedNewlineSequenceConstant  = `\n`
	newlineCharacterConstant        = "\n"
)

// AppCredentials identifies a GitHub App installation.
type AppCredentials struct {
	AppID          string
	PrivateKey     string
	InstallationID string
}

// Validate reports every missing identifier at once.
func (credentials AppCredentials) Validate() error {
	missingFields := make([]string, 0, 3)
	if len(strings.TrimSpace(credentials.AppID)) == 0 {
		missingFields = append(missingFields, appIDFieldNameConstant)
	}
	if len(strings.TrimSpace(credentials.PrivateKey)) == 0 {
		missingFields = append(missingFields, privateKeyFieldNameConstant)
	}
	if len(strings.TrimSpace(credentials.InstallationID)) == 0 {
		missingFields = append(missingFields, installationIDFieldNameConstant)
	}
	if len(missingFields) == 0 {
		return nil
	}
	return fmt.Errorf(missingCredentialFieldsErrorTemplateConstant, strings.Join(missingFields, incompleteCredentialsFieldSeparatorConstant))
}

// privateKeyPEM restores newlines in keys that were flattened into a single line with literal \n sequences.
func (credentials AppCredentials) privateKeyPEM() []byte {
	trimmedKey := strings.TrimSpace(credentials.PrivateKey)
	if !strings.Contains(trimmedKey, newlineCharacterConstant) && strings.Contains(trimmedKey, escapedNewlineSequenceConstant) {
		trimmedKey = strings.ReplaceAll(trimmedKey, escapedNewlineSequenceConstant, newlineCharacterConstant)
	}
	return []byte(trimmedKey)
}
