package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
)

const (
	environmentAssignmentSeparatorConstant = "="
	environmentAssignmentTemplateConstant  = "%s%s%s"
)

// OSCommandRunner executes commands using the operating system facilities.
type OSCommandRunner struct {
	newOutputMirror func() io.Writer
}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// WithOutputMirror returns a runner that also copies each output stream to its own writer from newMirror while
// capturing it. Mirrors exposing Flush are flushed once the command exits.
func (runner *OSCommandRunner) WithOutputMirror(newMirror func() io.Writer) *OSCommandRunner {
	return &OSCommandRunner{newOutputMirror: newMirror}
}

// Run executes the supplied command and waits for it to exit. A non-zero exit is reported through ExecutionResult, not as an error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	commandArguments := append([]string{}, command.Details.Arguments...)
	executable := exec.CommandContext(executionContext, string(command.Name), commandArguments...)

	if len(command.Details.WorkingDirectory) > 0 {
		executable.Dir = command.Details.WorkingDirectory
	}

	if len(command.Details.EnvironmentVariables) > 0 {
		executable.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	standardOutputMirror := runner.outputMirror()
	standardErrorMirror := runner.outputMirror()
	executable.Stdout = captureWriter(&standardOutputBuffer, standardOutputMirror)
	executable.Stderr = captureWriter(&standardErrorBuffer, standardErrorMirror)
	defer flushMirrors(standardOutputMirror, standardErrorMirror)

	if len(command.Details.StandardInput) > 0 {
		executable.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	runError := executable.Run()
	if runError != nil {
		exitError := &exec.ExitError{}
		if errors.As(runError, &exitError) {
			return ExecutionResult{
				StandardOutput: standardOutputBuffer.String(),
				StandardError:  standardErrorBuffer.String(),
				ExitCode:       exitError.ExitCode(),
			}, nil
		}
		return ExecutionResult{}, runError
	}

	return ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
		ExitCode:       0,
	}, nil
}

func (runner *OSCommandRunner) outputMirror() io.Writer {
	if runner == nil || runner.newOutputMirror == nil {
		return nil
	}
	return runner.newOutputMirror()
}

func captureWriter(buffer *bytes.Buffer, mirror io.Writer) io.Writer {
	if mirror == nil {
		return buffer
	}
	return io.MultiWriter(buffer, mirror)
}

func flushMirrors(mirrors ...io.Writer) {
	for _, mirror := range mirrors {
		if flusher, isFlusher := mirror.(interface{ Flush() error }); isFlusher {
			_ = flusher.Flush()
		}
	}
}

// mergeEnvironment appends overrides to the inherited environment in key order; later entries win.
func mergeEnvironment(inherited []string, overrides map[string]string) []string {
	overrideKeys := make([]string, 0, len(overrides))
	for environmentKey := range overrides {
		overrideKeys = append(overrideKeys, environmentKey)
	}
	sort.Strings(overrideKeys)

	mergedEnvironment := append([]string{}, inherited...)
	for _, environmentKey := range overrideKeys {
		mergedEnvironment = append(mergedEnvironment, fmt.Sprintf(environmentAssignmentTemplateConstant, environmentKey, environmentAssignmentSeparatorConstant, overrides[environmentKey]))
	}
	return mergedEnvironment
}
