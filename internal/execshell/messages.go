package execshell

import (
	"fmt"
	"strings"

	"github.com/temirov/reposync/internal/gitrepo"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	dockerBuildStartTemplateConstant        = "Building image %s in %s"
	dockerBuildSuccessTemplateConstant      = "Built image %s in %s"
	dockerBuildFailureTemplateConstant      = "Failed to build image %s in %s (exit code %d%s)"
	dockerBuildExecutionFailureTemplate     = "Unable to build image %s in %s: %s"
	dockerRunStartTemplateConstant          = "Starting container from image %s"
	dockerRunSuccessTemplateConstant        = "Container from image %s exited cleanly"
	dockerRunFailureTemplateConstant        = "Container from image %s failed (exit code %d%s)"
	dockerRunExecutionFailureTemplate       = "Unable to start container from image %s: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	redactedValuePlaceholderConstant        = "***"
	dockerBuildSubcommandConstant           = "build"
	dockerRunSubcommandConstant             = "run"
	dockerTagFlagConstant                   = "-t"
	dockerTagLongFlagConstant               = "--tag"
)

var (
	dockerRunValueFlags = map[string]struct{}{
		"-v":        {},
		"--volume":  {},
		"-e":        {},
		"--env":     {},
		"-w":        {},
		"--workdir": {},
		"--name":    {},
		"--network": {},
		"--user":    {},
		"-u":        {},
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
// Every rendered message has sensitive values masked.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

// CommandLabel renders the command line with its working directory.
func (formatter CommandMessageFormatter) CommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return formatter.Redact(command, fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix))
}

// Redact masks the command's sensitive values and embedded access-token credentials in text.
func (formatter CommandMessageFormatter) Redact(command ShellCommand, text string) string {
	redacted := text
	for _, sensitiveValue := range command.Details.SensitiveValues {
		if len(sensitiveValue) == 0 {
			continue
		}
		redacted = strings.ReplaceAll(redacted, sensitiveValue, redactedValuePlaceholderConstant)
	}
	return gitrepo.MaskCredentials(redacted)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	var message string
	switch command.Name {
	case CommandDocker:
		message = formatter.describeDockerMessage(command, result, failure, stage)
	default:
		message = formatter.buildGenericMessage(command, result, failure, stage)
	}
	return formatter.Redact(command, message)
}

func (formatter CommandMessageFormatter) describeDockerMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch strings.TrimSpace(arguments[0]) {
	case dockerBuildSubcommandConstant:
		imageName := formatter.ensureValue(findFlagValue(arguments, dockerTagFlagConstant, dockerTagLongFlagConstant))
		workingDirectory := formatter.describeWorkingDirectory(command)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(dockerBuildStartTemplateConstant, imageName, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(dockerBuildSuccessTemplateConstant, imageName, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(dockerBuildFailureTemplateConstant, imageName, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(dockerBuildExecutionFailureTemplate, imageName, workingDirectory, formatter.describeFailure(failure))
		}
	case dockerRunSubcommandConstant:
		imageName := formatter.ensureValue(extractRunImage(arguments[1:]))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(dockerRunStartTemplateConstant, imageName)
		case messageStageSuccess:
			return fmt.Sprintf(dockerRunSuccessTemplateConstant, imageName)
		case messageStageFailure:
			return fmt.Sprintf(dockerRunFailureTemplateConstant, imageName, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(dockerRunExecutionFailureTemplate, imageName, formatter.describeFailure(failure))
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.CommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func findFlagValue(arguments []string, flags ...string) string {
	for index := 0; index < len(arguments); index++ {
		trimmedArgument := strings.TrimSpace(arguments[index])
		for _, flag := range flags {
			if trimmedArgument == flag && index+1 < len(arguments) {
				return strings.TrimSpace(arguments[index+1])
			}
		}
	}
	return emptyStringConstant
}

// extractRunImage returns the first positional argument of a docker run invocation.
func extractRunImage(arguments []string) string {
	for index := 0; index < len(arguments); index++ {
		trimmedArgument := strings.TrimSpace(arguments[index])
		if len(trimmedArgument) == 0 {
			continue
		}
		if _, takesValue := dockerRunValueFlags[trimmedArgument]; takesValue {
			index++
			continue
		}
		if strings.HasPrefix(trimmedArgument, "-") {
			continue
		}
		return trimmedArgument
	}
	return emptyStringConstant
}
