package fixturetest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/reposync/internal/execshell"
)

const (
	commandUseConstant                    = "fixture-test <fixture-file>"
	commandShortDescriptionConstant       = "Run a server discovery JSON fixture through the installed test binary"
	commandExecutionErrorTemplateConstant = "fixture %s failed: %w"
	flagInstallDirectoryNameConstant      = "install-dir"
	flagInstallDirectoryDescriptionConst  = "Directory containing the installed test binary"
	flagProgramOptionNameConstant         = "option"
	flagProgramOptionDescriptionConstant  = "Additional program option passed as --key=value (repeatable)"
	writeOutputErrorTemplateConstant      = "unable to write fixture output: %w"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// CommandConfiguration captures persistent settings for the fixture-test command.
type CommandConfiguration struct {
	InstallDirectory string            `mapstructure:"install_directory"`
	ExecutableName   string            `mapstructure:"executable_name"`
	SourceDirectory  string            `mapstructure:"source_directory"`
	ProgramOptions   map[string]string `mapstructure:"program_options"`
}

// DefaultCommandConfiguration returns baseline configuration values.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		InstallDirectory: ".",
		ExecutableName:   DefaultExecutableName,
		SourceDirectory:  DefaultSourceDirectory,
	}
}

// ConfigurationProvider returns the current fixture-test configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the fixture-test command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        ConfigurationProvider
	CommandRunner                execshell.CommandRunner
}

// Build constructs the fixture-test command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	command.Flags().String(flagInstallDirectoryNameConstant, "", flagInstallDirectoryDescriptionConst)
	command.Flags().StringToString(flagProgramOptionNameConstant, nil, flagProgramOptionDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.parseConfiguration(command)
	logger := builder.resolveLogger()

	commandRunner := builder.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}
	humanReadableLogging := builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider()
	executor, executorError := execshell.NewShellExecutor(logger, commandRunner, humanReadableLogging)
	if executorError != nil {
		return executorError
	}

	testCase, setupError := NewJSONTestCase(logger, Settings{
		InstallDirectory: configuration.InstallDirectory,
		ExecutableName:   configuration.ExecutableName,
		SourceDirectory:  configuration.SourceDirectory,
	}, arguments[0], configuration.ProgramOptions)
	if setupError != nil {
		return setupError
	}

	result, runError := testCase.Run(command.Context(), executor)
	standardOutput := result.StandardOutput
	var commandFailure execshell.CommandFailedError
	if errors.As(runError, &commandFailure) {
		standardOutput = commandFailure.Result.StandardOutput
	}
	if writeError := writeOutput(command.OutOrStdout(), standardOutput); writeError != nil {
		return writeError
	}
	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, arguments[0], runError)
	}
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if command.Flags().Changed(flagInstallDirectoryNameConstant) {
		installDirectory, _ := command.Flags().GetString(flagInstallDirectoryNameConstant)
		configuration.InstallDirectory = installDirectory
	}
	if command.Flags().Changed(flagProgramOptionNameConstant) {
		flagOptions, _ := command.Flags().GetStringToString(flagProgramOptionNameConstant)
		mergedOptions := make(map[string]string, len(configuration.ProgramOptions)+len(flagOptions))
		for optionName, optionValue := range configuration.ProgramOptions {
			mergedOptions[optionName] = optionValue
		}
		for optionName, optionValue := range flagOptions {
			mergedOptions[strings.TrimSpace(optionName)] = optionValue
		}
		configuration.ProgramOptions = mergedOptions
	}

	return configuration
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func writeOutput(writer io.Writer, output string) error {
	if len(output) == 0 {
		return nil
	}
	if _, writeError := io.WriteString(writer, output); writeError != nil {
		return fmt.Errorf(writeOutputErrorTemplateConstant, writeError)
	}
	return nil
}
