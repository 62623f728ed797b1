package syncer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/reposync/internal/copybara"
	"github.com/temirov/reposync/internal/execshell"
	"github.com/temirov/reposync/internal/expansions"
	"github.com/temirov/reposync/internal/githubauth"
	"github.com/temirov/reposync/internal/gitidentity"
	"github.com/temirov/reposync/internal/notify"
	"github.com/temirov/reposync/internal/utils"
	pathutils "github.com/temirov/reposync/internal/utils/path"
)

const (
	commandUseConstant                    = "sync"
	commandShortDescriptionConstant       = "Replay upstream commits into the destination repository"
	commandLongDescriptionConstant        = "sync rebuilds the migration tool image, obtains a GitHub App installation token and migrates new upstream commits into the destination repository. Runs that find nothing to migrate succeed; other failures alert the operations channel."
	commandExecutionErrorTemplateConstant = "synchronization failed: %w"
	unexpectedArgumentsMessageConstant    = "sync does not accept positional arguments"
	daemonPreflightSkippedMessageConstant = "Skipping docker daemon preflight"
	flagExpansionFileNameConstant         = "expansion-file"
	flagExpansionFileDescriptionConstant  = "Location of the expansions file generated by the CI run"
	flagLastRevisionNameConstant          = "last-rev"
	flagLastRevisionDescriptionConstant   = "Last upstream revision already present in the destination"
	logFieldConfigurationFileConstant     = "configuration_file"
	logFieldLogLevelConstant              = "log_level"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current sync configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the sync command. Optional collaborators replace their production defaults.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        ConfigurationProvider
	CommandRunner                execshell.CommandRunner
	CommandEventsObserver        execshell.CommandEventObserver
	TokenProvider                githubauth.TokenProvider
	MessageSender                notify.MessageSender
	DaemonChecker                DaemonChecker
	HomeExpander                 *pathutils.HomeExpander
	WorkingDirectory             string
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagExpansionFileNameConstant, "", flagExpansionFileDescriptionConstant)
	command.Flags().String(flagLastRevisionNameConstant, "", flagLastRevisionDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration := builder.parseConfiguration(command)
	logger := builder.resolveLogger().With(commandContextFields(command)...)

	dependencies, cleanup, dependenciesError := builder.resolveDependencies(command, logger, configuration)
	if dependenciesError != nil {
		return dependenciesError
	}
	defer cleanup()

	service, serviceError := NewService(logger, dependencies)
	if serviceError != nil {
		return serviceError
	}

	runOptions := configuration.RunOptions()
	runOptions.WorkingDirectory = builder.WorkingDirectory

	if _, runError := service.Run(command.Context(), runOptions); runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, runError)
	}
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if command.Flags().Changed(flagExpansionFileNameConstant) {
		expansionFile, _ := command.Flags().GetString(flagExpansionFileNameConstant)
		configuration.ExpansionFile = expansionFile
	}
	if command.Flags().Changed(flagLastRevisionNameConstant) {
		lastRevision, _ := command.Flags().GetString(flagLastRevisionNameConstant)
		configuration.Migration.LastRevision = lastRevision
	}

	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveDependencies(command *cobra.Command, logger *zap.Logger, configuration CommandConfiguration) (Dependencies, func(), error) {
	cleanup := func() {}
	homeExpander := builder.HomeExpander
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}

	commandRunner := builder.CommandRunner
	if commandRunner == nil {
		osCommandRunner := execshell.NewOSCommandRunner()
		if configuration.Tool.StreamOutput {
			errorOutput := command.ErrOrStderr()
			osCommandRunner = osCommandRunner.WithOutputMirror(func() io.Writer {
				return utils.NewFlushingWriter(errorOutput)
			})
		}
		commandRunner = osCommandRunner
	}
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner, builder.humanReadableLogging())
	if executorError != nil {
		return Dependencies{}, cleanup, executorError
	}
	if builder.CommandEventsObserver != nil {
		shellExecutor = shellExecutor.WithObserver(builder.CommandEventsObserver)
	}

	cloner, clonerError := copybara.NewRepositoryCloner(configuration.Tool.CloneBackend, shellExecutor, utils.NewFlushingWriter(command.ErrOrStderr()))
	if clonerError != nil {
		return Dependencies{}, cleanup, clonerError
	}
	workspaceManager, workspaceError := copybara.NewWorkspaceManager(logger, cloner)
	if workspaceError != nil {
		return Dependencies{}, cleanup, workspaceError
	}

	daemonChecker := builder.DaemonChecker
	if daemonChecker == nil && configuration.Tool.VerifyDaemon {
		homeDirectory, _ := homeExpander.HomeDirectory()
		daemonProbe, probeError := copybara.NewEnvironmentDaemonProbe(logger, homeDirectory)
		switch {
		case errors.Is(probeError, copybara.ErrProbeUnsupported):
			logger.Warn(daemonPreflightSkippedMessageConstant, zap.Error(probeError))
		case probeError != nil:
			return Dependencies{}, cleanup, probeError
		default:
			daemonChecker = daemonProbe
			cleanup = func() { _ = daemonProbe.Close() }
		}
	}

	tokenProvider := builder.TokenProvider
	if tokenProvider == nil {
		installationTokenProvider, providerError := githubauth.NewInstallationTokenProvider(logger, nil, configuration.Credentials.APIBaseURL)
		if providerError != nil {
			return Dependencies{}, cleanup, providerError
		}
		tokenProvider = installationTokenProvider
	}

	messageSender := builder.MessageSender
	if messageSender == nil {
		messageSender = notify.FileConfiguredSender{
			ConfigurationPath: configuration.Notification.EvergreenConfig,
			HomeExpander:      homeExpander,
		}
	}
	notifier, notifierError := notify.NewSlackNotifier(logger, messageSender, configuration.NotificationSettings())
	if notifierError != nil {
		return Dependencies{}, cleanup, notifierError
	}

	return Dependencies{
		LoadExpansions: expansions.LoadFile,
		Workspace:      workspaceManager,
		DaemonChecker:  daemonChecker,
		ImageBuilder:   copybara.NewImageBuilder(shellExecutor),
		TokenProvider:  tokenProvider,
		Identity:       gitidentity.NewWriter(logger, homeExpander),
		Executor:       shellExecutor,
		Notifier:       notifier,
		Classifier:     NewOutcomeClassifier(NewAcceptablePatterns(configuration.AcceptableErrors...)),
		HomeExpander:   homeExpander,
	}, cleanup, nil
}

func commandContextFields(command *cobra.Command) []zap.Field {
	accessor := utils.NewCommandContextAccessor()
	var fields []zap.Field
	if configurationFilePath, available := accessor.ConfigurationFilePath(command.Context()); available {
		fields = append(fields, zap.String(logFieldConfigurationFileConstant, configurationFilePath))
	}
	if logLevel, available := accessor.LogLevel(command.Context()); available {
		fields = append(fields, zap.String(logFieldLogLevelConstant, logLevel))
	}
	return fields
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

func (builder *CommandBuilder) humanReadableLogging() bool {
	if builder.HumanReadableLoggingProvider == nil {
		return false
	}
	return builder.HumanReadableLoggingProvider()
}

// DefaultConfigurationValues returns viper defaults for the sync section rooted at prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	key := func(suffix string) string {
		return strings.Join([]string{prefix, suffix}, ".")
	}
	return map[string]any{
		key("tool.repository_url"):                defaults.Tool.RepositoryURL,
		key("tool.directory"):                     defaults.Tool.Directory,
		key("tool.image"):                         defaults.Tool.Image,
		key("tool.clone_backend"):                 defaults.Tool.CloneBackend,
		key("tool.verify_daemon"):                 defaults.Tool.VerifyDaemon,
		key("tool.stream_output"):                 defaults.Tool.StreamOutput,
		key("migration.config_file"):              defaults.Migration.ConfigFile,
		key("migration.subcommand"):               defaults.Migration.Subcommand,
		key("migration.last_revision"):            defaults.Migration.LastRevision,
		key("migration.destination_repository"):   defaults.Migration.DestinationRepository,
		key("migration.ssh_directory"):            defaults.Migration.SSHDirectory,
		key("migration.verbose"):                  defaults.Migration.Verbose,
		key("identity.name"):                      defaults.Identity.Name,
		key("identity.email"):                     defaults.Identity.Email,
		key("identity.path"):                      defaults.Identity.Path,
		key("notification.enabled"):               defaults.Notification.Enabled,
		key("notification.channel"):               defaults.Notification.Channel,
		key("notification.task_name"):             defaults.Notification.TaskName,
		key("notification.version_link_template"): defaults.Notification.VersionLinkTemplate,
		key("notification.evergreen_config"):      defaults.Notification.EvergreenConfig,
		key("acceptable_errors"):                  defaults.AcceptableErrors,
	}
}
