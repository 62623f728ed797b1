package copybara_test

import (
	"context"

	"github.com/temirov/reposync/internal/execshell"
)

type recordingRunner struct {
	commands []execshell.ShellCommand
	result   execshell.ExecutionResult
	runError error
}

func (runner *recordingRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.commands = append(runner.commands, command)
	return runner.result, runner.runError
}
