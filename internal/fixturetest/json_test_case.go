package fixturetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposync/internal/execshell"
)

const (
	// DefaultExecutableName is the test binary installed by the build.
	DefaultExecutableName = "sdam_json_test"
	// DefaultSourceDirectory holds the fixture corpus relative to the source root.
	DefaultSourceDirectory = "src/mongo/client/sdam/json_tests/sdam_tests"
	// DisplayName labels fixture runs in logs.
	DisplayName = "SDAM Json Test"

	windowsOperatingSystemConstant    = "windows"
	windowsExecutableSuffixConstant   = ".exe"
	sourceDirectoryFlagConstant       = "--source-dir"
	fixtureFileFlagConstant           = "-f"
	programOptionTemplateConstant     = "--%s=%s"
	missingExecutableTemplateConstant = "failed to locate %s binary at %s"
	emptyFixturePathMessageConstant   = "fixture file path is required"
	runStartedMessageConstant         = "Running fixture"
	runFinishedMessageConstant        = "Fixture passed"
	logFieldTestNameConstant          = "test"
	logFieldFixtureConstant           = "fixture"
	logFieldExecutableConstant        = "executable"
)

// ErrStopExecution marks setup failures that must halt the whole suite instead of failing a single test.
var ErrStopExecution = errors.New("stop execution")

// ErrEmptyFixturePath indicates that no fixture file was provided.
var ErrEmptyFixturePath = errors.New(emptyFixturePathMessageConstant)

// SetupError reports a missing test executable.
type SetupError struct {
	ExecutableName string
	ExecutablePath string
}

func (setupError SetupError) Error() string {
	return fmt.Sprintf(missingExecutableTemplateConstant, setupError.ExecutableName, setupError.ExecutablePath)
}

// Is matches ErrStopExecution.
func (setupError SetupError) Is(target error) bool {
	return target == ErrStopExecution
}

// Executor runs a prepared command.
type Executor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// Settings locate the test binary and the fixture corpus.
type Settings struct {
	InstallDirectory string
	ExecutableName   string
	SourceDirectory  string
}

// JSONTestCase runs one fixture file.
type JSONTestCase struct {
	logger          *zap.Logger
	executablePath  string
	sourceDirectory string
	fixturePath     string
	programOptions  map[string]string
}

// NewJSONTestCase resolves the executable under the install directory. A missing executable yields a SetupError.
func NewJSONTestCase(logger *zap.Logger, settings Settings, fixturePath string, programOptions map[string]string) (*JSONTestCase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	trimmedFixturePath := strings.TrimSpace(fixturePath)
	if len(trimmedFixturePath) == 0 {
		return nil, ErrEmptyFixturePath
	}

	executableName := strings.TrimSpace(settings.ExecutableName)
	if len(executableName) == 0 {
		executableName = DefaultExecutableName
	}
	sourceDirectory := strings.TrimSpace(settings.SourceDirectory)
	if len(sourceDirectory) == 0 {
		sourceDirectory = DefaultSourceDirectory
	}

	executablePath := filepath.Join(strings.TrimSpace(settings.InstallDirectory), executableName)
	if runtime.GOOS == windowsOperatingSystemConstant {
		executablePath += windowsExecutableSuffixConstant
	}
	// A bare relative name would be looked up on PATH instead of the install directory.
	absoluteExecutablePath, absoluteError := filepath.Abs(executablePath)
	if absoluteError != nil {
		return nil, SetupError{ExecutableName: executableName, ExecutablePath: executablePath}
	}
	executablePath = absoluteExecutablePath
	fileInfo, statError := os.Stat(executablePath)
	if statError != nil || !fileInfo.Mode().IsRegular() {
		return nil, SetupError{ExecutableName: executableName, ExecutablePath: executablePath}
	}

	duplicatedOptions := make(map[string]string, len(programOptions))
	for optionName, optionValue := range programOptions {
		duplicatedOptions[optionName] = optionValue
	}

	return &JSONTestCase{
		logger:          logger,
		executablePath:  executablePath,
		sourceDirectory: filepath.Clean(sourceDirectory),
		fixturePath:     filepath.Clean(trimmedFixturePath),
		programOptions:  duplicatedOptions,
	}, nil
}

// ExecutablePath returns the resolved test binary.
func (testCase *JSONTestCase) ExecutablePath() string {
	return testCase.executablePath
}

// CommandLine returns the full argv, executable first. Program options follow in key order.
func (testCase *JSONTestCase) CommandLine() []string {
	commandLine := []string{
		testCase.executablePath,
		sourceDirectoryFlagConstant, testCase.sourceDirectory,
		fixtureFileFlagConstant, testCase.fixturePath,
	}

	optionNames := make([]string, 0, len(testCase.programOptions))
	for optionName := range testCase.programOptions {
		optionNames = append(optionNames, optionName)
	}
	sort.Strings(optionNames)
	for _, optionName := range optionNames {
		commandLine = append(commandLine, fmt.Sprintf(programOptionTemplateConstant, optionName, testCase.programOptions[optionName]))
	}
	return commandLine
}

// Command converts the command line into an executable ShellCommand.
func (testCase *JSONTestCase) Command() execshell.ShellCommand {
	commandLine := testCase.CommandLine()
	return execshell.ShellCommand{
		Name:    execshell.CommandName(commandLine[0]),
		Details: execshell.CommandDetails{Arguments: commandLine[1:]},
	}
}

// Run executes the fixture. A nonzero exit surfaces as execshell.CommandFailedError.
func (testCase *JSONTestCase) Run(executionContext context.Context, executor Executor) (execshell.ExecutionResult, error) {
	testCase.logger.Info(runStartedMessageConstant,
		zap.String(logFieldTestNameConstant, DisplayName),
		zap.String(logFieldFixtureConstant, testCase.fixturePath),
		zap.String(logFieldExecutableConstant, testCase.executablePath),
	)

	result, executionError := executor.Execute(executionContext, testCase.Command())
	if executionError != nil {
		return result, executionError
	}

	testCase.logger.Info(runFinishedMessageConstant,
		zap.String(logFieldTestNameConstant, DisplayName),
		zap.String(logFieldFixtureConstant, testCase.fixturePath),
	)
	return result, nil
}
