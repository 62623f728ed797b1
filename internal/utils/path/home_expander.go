package pathutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant                   = "~"
	tildeForwardSlashPrefixConstant       = "~/"
	homeDirectoryUnavailableTemplateConst = "home directory unavailable for %q: %w"
)

// ErrHomeDirectoryUnavailable indicates that a home-relative path could not be resolved.
var ErrHomeDirectoryUnavailable = errors.New("home directory unavailable")

var tildeWithPathSeparatorPrefix = tildeSymbolConstant + string(os.PathSeparator)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander converts user home shortcuts such as ~/.ssh to absolute paths.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectory         string
	homeDirectoryError    error
	initializationGuard   sync.Once
}

// NewHomeExpander constructs a HomeExpander using the operating system lookup.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand resolves leading tilde prefixes to the user's home directory and returns the input unchanged when it cannot.
func (expander *HomeExpander) Expand(candidatePath string) string {
	expandedPath, expansionError := expander.ResolveHomePath(candidatePath)
	if expansionError != nil {
		return candidatePath
	}
	return expandedPath
}

// ResolveHomePath resolves leading tilde prefixes and reports ErrHomeDirectoryUnavailable when the home directory lookup fails.
// Paths without a tilde prefix, and ~user forms, are returned unchanged.
func (expander *HomeExpander) ResolveHomePath(candidatePath string) (string, error) {
	if expander == nil || len(candidatePath) == 0 || !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath, nil
	}

	relativePath, isHomeRelative := trimHomePrefix(candidatePath)
	if !isHomeRelative {
		return candidatePath, nil
	}

	resolvedHomeDirectory, resolutionError := expander.HomeDirectory()
	if resolutionError != nil {
		return "", fmt.Errorf(homeDirectoryUnavailableTemplateConst, candidatePath, resolutionError)
	}

	if len(relativePath) == 0 {
		return resolvedHomeDirectory, nil
	}
	return filepath.Join(resolvedHomeDirectory, relativePath), nil
}

// HomeDirectory returns the cached home directory.
func (expander *HomeExpander) HomeDirectory() (string, error) {
	expander.initializationGuard.Do(func() {
		expander.homeDirectory, expander.homeDirectoryError = expander.homeDirectoryProvider()
		if expander.homeDirectoryError == nil && len(strings.TrimSpace(expander.homeDirectory)) == 0 {
			expander.homeDirectoryError = ErrHomeDirectoryUnavailable
		}
	})
	if expander.homeDirectoryError != nil {
		if errors.Is(expander.homeDirectoryError, ErrHomeDirectoryUnavailable) {
			return "", expander.homeDirectoryError
		}
		return "", errors.Join(ErrHomeDirectoryUnavailable, expander.homeDirectoryError)
	}
	return expander.homeDirectory, nil
}

func trimHomePrefix(candidatePath string) (string, bool) {
	if candidatePath == tildeSymbolConstant {
		return "", true
	}
	if strings.HasPrefix(candidatePath, tildeForwardSlashPrefixConstant) {
		return strings.TrimPrefix(candidatePath, tildeForwardSlashPrefixConstant), true
	}
	if tildeWithPathSeparatorPrefix != tildeForwardSlashPrefixConstant && strings.HasPrefix(candidatePath, tildeWithPathSeparatorPrefix) {
		return strings.TrimPrefix(candidatePath, tildeWithPathSeparatorPrefix), true
	}
	return "", false
}
