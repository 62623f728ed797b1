package execshell

import "sync"

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that command execution is beginning.
	CommandStarted(command ShellCommand)
	// CommandCompleted notifies observers that command execution finished and supplies the result.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports unexpected failures prior to receiving an execution result.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// noopCommandEventObserver discards all command events.
type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}

// CommandRecord summarizes one finished command with sensitive values already masked.
type CommandRecord struct {
	Label    string
	ExitCode int
	Failed   bool
}

// CommandHistory records every command observed during a run.
type CommandHistory struct {
	mutex     sync.Mutex
	formatter CommandMessageFormatter
	records   []CommandRecord
}

// NewCommandHistory constructs an empty history.
func NewCommandHistory() *CommandHistory {
	return &CommandHistory{}
}

// CommandStarted implements CommandEventObserver.
func (history *CommandHistory) CommandStarted(ShellCommand) {}

// CommandCompleted implements CommandEventObserver.
func (history *CommandHistory) CommandCompleted(command ShellCommand, result ExecutionResult) {
	history.append(CommandRecord{
		Label:    history.formatter.CommandLabel(command),
		ExitCode: result.ExitCode,
		Failed:   result.ExitCode != 0,
	})
}

// CommandExecutionFailed implements CommandEventObserver.
func (history *CommandHistory) CommandExecutionFailed(command ShellCommand, _ error) {
	history.append(CommandRecord{
		Label:    history.formatter.CommandLabel(command),
		ExitCode: -1,
		Failed:   true,
	})
}

// Records returns a copy of the recorded commands in execution order.
func (history *CommandHistory) Records() []CommandRecord {
	history.mutex.Lock()
	defer history.mutex.Unlock()
	return append([]CommandRecord(nil), history.records...)
}

// Labels returns the rendered command lines in execution order.
func (history *CommandHistory) Labels() []string {
	records := history.Records()
	labels := make([]string, 0, len(records))
	for _, record := range records {
		labels = append(labels, record.Label)
	}
	return labels
}

func (history *CommandHistory) append(record CommandRecord) {
	history.mutex.Lock()
	defer history.mutex.Unlock()
	history.records = append(history.records, record)
}
