// Package gitidentity writes the git author identity file mounted into the migration container.
package gitidentity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	pathutils "github.com/temirov/reposync/internal/utils/path"
)

const (
	// DefaultName is the bot display name used for migrated commits.
	DefaultName = "MongoDB Bot"
	// DefaultEmail is the bot contact address used for migrated commits.
	DefaultEmail = "mongo-bot@mongodb.com"
	// DefaultPath is the per-user location of the identity file.
	DefaultPath = "~/mongodb-bot.gitconfig"

	identityFileTemplateConstant        = "[user]\n\tname = %s\n\temail = %s\n"
	identityFilePermissionsConstant     = 0o644
	identityWrittenMessageConstant      = "Wrote git identity file"
	logFieldIdentityPathConstant        = "path"
	resolvePathErrorTemplateConstant    = "unable to resolve git identity path %s: %w"
	writeFileErrorTemplateConstant      = "unable to write git identity file %s: %w"
	incompleteIdentityErrorMessageConst = "git identity requires a name and an email"
)

// ErrIncompleteIdentity indicates that the identity lacks a name or an email.
var ErrIncompleteIdentity = errors.New(incompleteIdentityErrorMessageConst)

// Identity describes the author recorded in the generated gitconfig.
type Identity struct {
	Name  string
	Email string
	Path  string
}

// DefaultIdentity returns the bot identity written by default.
func DefaultIdentity() Identity {
	return Identity{Name: DefaultName, Email: DefaultEmail, Path: DefaultPath}
}

// Render returns the gitconfig content for the identity.
func (identity Identity) Render() string {
	return fmt.Sprintf(identityFileTemplateConstant, strings.TrimSpace(identity.Name), strings.TrimSpace(identity.Email))
}

// Preparer ensures the identity file exists before authenticated git operations.
type Preparer interface {
	Write(identity Identity) (string, error)
}

// Writer overwrites the identity file on every call.
type Writer struct {
	logger       *zap.Logger
	homeExpander *pathutils.HomeExpander
}

// NewWriter constructs a Writer. A nil logger is replaced by a no-op logger.
func NewWriter(logger *zap.Logger, homeExpander *pathutils.HomeExpander) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}
	return &Writer{logger: logger, homeExpander: homeExpander}
}

// Write replaces the file at identity.Path (DefaultPath when empty) with the rendered identity and returns the resolved path.
func (writer *Writer) Write(identity Identity) (string, error) {
	if len(strings.TrimSpace(identity.Name)) == 0 || len(strings.TrimSpace(identity.Email)) == 0 {
		return "", ErrIncompleteIdentity
	}

	requestedPath := strings.TrimSpace(identity.Path)
	if len(requestedPath) == 0 {
		requestedPath = DefaultPath
	}

	resolvedPath, resolutionError := writer.homeExpander.ResolveHomePath(requestedPath)
	if resolutionError != nil {
		return "", fmt.Errorf(resolvePathErrorTemplateConstant, requestedPath, resolutionError)
	}
	resolvedPath = filepath.Clean(resolvedPath)

	if writeError := os.WriteFile(resolvedPath, []byte(identity.Render()), identityFilePermissionsConstant); writeError != nil {
		return "", fmt.Errorf(writeFileErrorTemplateConstant, resolvedPath, writeError)
	}

	writer.logger.Debug(identityWrittenMessageConstant, zap.String(logFieldIdentityPathConstant, resolvedPath))
	return resolvedPath, nil
}
