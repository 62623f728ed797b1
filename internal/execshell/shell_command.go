package execshell

import (
	"errors"
	"fmt"
)

const (
	commandGitNameConstant                = "git"
	commandDockerNameConstant             = "docker"
	loggerNotConfiguredMessageConstant    = "logger not configured"
	runnerNotConfiguredMessageConstant    = "command runner not configured"
	commandFailedErrorTemplateConstant    = "%s exited with code %d%s"
	commandExecutionErrorTemplateConstant = "%s could not be executed: %s"
	commandExecutionUnknownCauseConstant  = "unknown cause"
	commandFailedStandardErrorTemplate    = ": %s"
)

// CommandName identifies an executable invoked through the shell executor.
type CommandName string

// Supported executables.
const (
	CommandGit    CommandName = CommandName(commandGitNameConstant)
	CommandDocker CommandName = CommandName(commandDockerNameConstant)
)

// CommandDetails describes the arguments and environment for a single invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	// SensitiveValues are masked whenever the command is rendered for logs or errors.
	SensitiveValues []string
}

// ShellCommand pairs an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable results of executing a command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

var (
	// ErrLoggerNotConfigured indicates the executor was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the executor was constructed without a runner.
	ErrCommandRunnerNotConfigured = errors.New(runnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a command that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command without exposing sensitive values.
func (failure CommandFailedError) Error() string {
	formatter := CommandMessageFormatter{}
	standardErrorSuffix := ""
	redactedStandardError := formatter.Redact(failure.Command, failure.Result.StandardError)
	if len(redactedStandardError) > 0 {
		standardErrorSuffix = fmt.Sprintf(commandFailedStandardErrorTemplate, redactedStandardError)
	}
	return fmt.Sprintf(commandFailedErrorTemplateConstant, formatter.CommandLabel(failure.Command), failure.Result.ExitCode, standardErrorSuffix)
}

// ExitCode returns the process exit status.
func (failure CommandFailedError) ExitCode() int {
	return failure.Result.ExitCode
}

// StandardError returns the exact standard error captured from the process.
func (failure CommandFailedError) StandardError() string {
	return failure.Result.StandardError
}

// CommandExecutionError reports a command that could not be started or waited on.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (failure CommandExecutionError) Error() string {
	cause := commandExecutionUnknownCauseConstant
	if failure.Cause != nil {
		cause = failure.Cause.Error()
	}
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, CommandMessageFormatter{}.CommandLabel(failure.Command), cause)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}
