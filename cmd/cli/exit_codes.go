package cli

import (
	"errors"

	"github.com/temirov/reposync/internal/expansions"
	"github.com/temirov/reposync/internal/utils"
)

// Process exit codes reported by the reposync binary.
const (
	ExitCodeSuccess              = 0
	ExitCodeFailure              = 1
	ExitCodeInvalidConfiguration = 2
)

// ExitCode maps an execution error onto the process exit code contract.
func ExitCode(executionError error) int {
	if executionError == nil {
		return ExitCodeSuccess
	}
	var configurationError utils.ConfigurationError
	if errors.As(executionError, &configurationError) || errors.Is(executionError, expansions.ErrConfigurationMissing) {
		return ExitCodeInvalidConfiguration
	}
	return ExitCodeFailure
}
