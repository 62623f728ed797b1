package gitrepo

import "regexp"

const maskedCredentialReplacementConstant = "${1}***@"

var embeddedCredentialPattern = regexp.MustCompile(`(://[^:/@\s'"]+:)[^@\s'"]+@`)

// MaskCredentials replaces the secret of every user:secret@ pair embedded in a URL within text.
func MaskCredentials(text string) string {
	return embeddedCredentialPattern.ReplaceAllString(text, maskedCredentialReplacementConstant)
}
