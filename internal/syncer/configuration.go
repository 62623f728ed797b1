package syncer

import (
	"strings"

	"github.com/temirov/reposync/internal/copybara"
	"github.com/temirov/reposync/internal/gitidentity"
	"github.com/temirov/reposync/internal/notify"
)

// CommandConfiguration captures persistent settings for the sync command.
type CommandConfiguration struct {
	ExpansionFile    string                    `mapstructure:"expansion_file"`
	Tool             ToolConfiguration         `mapstructure:"tool"`
	Migration        MigrationConfiguration    `mapstructure:"migration"`
	Identity         IdentityConfiguration     `mapstructure:"identity"`
	Credentials      CredentialsConfiguration  `mapstructure:"credentials"`
	Notification     NotificationConfiguration `mapstructure:"notification"`
	AcceptableErrors []string                  `mapstructure:"acceptable_errors"`
}

// ToolConfiguration locates and builds the migration tool.
type ToolConfiguration struct {
	RepositoryURL string `mapstructure:"repository_url"`
	Directory     string `mapstructure:"directory"`
	Image         string `mapstructure:"image"`
	CloneBackend  string `mapstructure:"clone_backend" validate:"omitempty,oneof=git go-git"`
	VerifyDaemon  bool   `mapstructure:"verify_daemon"`
	StreamOutput  bool   `mapstructure:"stream_output"`
}

// MigrationConfiguration parameterizes the migration container.
type MigrationConfiguration struct {
	ConfigFile            string `mapstructure:"config_file"`
	Subcommand            string `mapstructure:"subcommand"`
	LastRevision          string `mapstructure:"last_revision"`
	DestinationRepository string `mapstructure:"destination_repository"`
	SSHDirectory          string `mapstructure:"ssh_directory"`
	Verbose               bool   `mapstructure:"verbose"`
}

// IdentityConfiguration describes the bot identity file.
type IdentityConfiguration struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email" validate:"omitempty,email"`
	Path  string `mapstructure:"path"`
}

// CredentialsConfiguration points at the GitHub API used for token exchange.
type CredentialsConfiguration struct {
	APIBaseURL string `mapstructure:"api_base_url" validate:"omitempty,url"`
}

// NotificationConfiguration controls failure alerts.
type NotificationConfiguration struct {
	Enabled             bool   `mapstructure:"enabled"`
	Channel             string `mapstructure:"channel"`
	TaskName            string `mapstructure:"task_name"`
	VersionLinkTemplate string `mapstructure:"version_link_template" validate:"omitempty,contains=%s"`
	EvergreenConfig     string `mapstructure:"evergreen_config"`
}

// DefaultCommandConfiguration returns baseline configuration values for the sync command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Tool: ToolConfiguration{
			RepositoryURL: copybara.DefaultRepositoryURL,
			Directory:     copybara.DefaultDirectory,
			Image:         copybara.DefaultImage,
			CloneBackend:  copybara.CloneBackendGit,
			VerifyDaemon:  true,
		},
		Migration: MigrationConfiguration{
			ConfigFile:            copybara.DefaultConfigFile,
			Subcommand:            copybara.DefaultSubcommand,
			LastRevision:          copybara.DefaultLastRevision,
			DestinationRepository: copybara.DefaultDestinationRepository,
			SSHDirectory:          copybara.DefaultSSHDirectory,
			Verbose:               true,
		},
		Identity: IdentityConfiguration{
			Name:  gitidentity.DefaultName,
			Email: gitidentity.DefaultEmail,
			Path:  gitidentity.DefaultPath,
		},
		Notification: NotificationConfiguration{
			Enabled:             true,
			Channel:             notify.DefaultChannel,
			TaskName:            notify.DefaultTaskName,
			VersionLinkTemplate: notify.DefaultVersionLinkTemplate,
			EvergreenConfig:     notify.DefaultEvergreenConfigurationPath,
		},
		AcceptableErrors: DefaultAcceptablePatterns().Patterns(),
	}
}

// Sanitize trims values and substitutes defaults for blank strings. Boolean settings are kept as configured.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.ExpansionFile = strings.TrimSpace(configuration.ExpansionFile)

	sanitized.Tool.RepositoryURL = valueOrDefault(configuration.Tool.RepositoryURL, defaults.Tool.RepositoryURL)
	sanitized.Tool.Directory = valueOrDefault(configuration.Tool.Directory, defaults.Tool.Directory)
	sanitized.Tool.Image = valueOrDefault(configuration.Tool.Image, defaults.Tool.Image)
	sanitized.Tool.CloneBackend = valueOrDefault(configuration.Tool.CloneBackend, defaults.Tool.CloneBackend)

	sanitized.Migration.ConfigFile = valueOrDefault(configuration.Migration.ConfigFile, defaults.Migration.ConfigFile)
	sanitized.Migration.Subcommand = valueOrDefault(configuration.Migration.Subcommand, defaults.Migration.Subcommand)
	sanitized.Migration.LastRevision = valueOrDefault(configuration.Migration.LastRevision, defaults.Migration.LastRevision)
	sanitized.Migration.DestinationRepository = valueOrDefault(configuration.Migration.DestinationRepository, defaults.Migration.DestinationRepository)
	sanitized.Migration.SSHDirectory = valueOrDefault(configuration.Migration.SSHDirectory, defaults.Migration.SSHDirectory)

	sanitized.Identity.Name = valueOrDefault(configuration.Identity.Name, defaults.Identity.Name)
	sanitized.Identity.Email = valueOrDefault(configuration.Identity.Email, defaults.Identity.Email)
	sanitized.Identity.Path = valueOrDefault(configuration.Identity.Path, defaults.Identity.Path)

	sanitized.Credentials.APIBaseURL = strings.TrimSpace(configuration.Credentials.APIBaseURL)

	sanitized.Notification.Channel = valueOrDefault(configuration.Notification.Channel, defaults.Notification.Channel)
	sanitized.Notification.TaskName = valueOrDefault(configuration.Notification.TaskName, defaults.Notification.TaskName)
	sanitized.Notification.VersionLinkTemplate = valueOrDefault(configuration.Notification.VersionLinkTemplate, defaults.Notification.VersionLinkTemplate)
	sanitized.Notification.EvergreenConfig = valueOrDefault(configuration.Notification.EvergreenConfig, defaults.Notification.EvergreenConfig)

	// An explicit empty list disables benign classification; only an unset list falls back to the defaults.
	if configuration.AcceptableErrors == nil {
		sanitized.AcceptableErrors = defaults.AcceptableErrors
	} else {
		sanitized.AcceptableErrors = NewAcceptablePatterns(configuration.AcceptableErrors...).Patterns()
	}

	return sanitized
}

// RunOptions converts the configuration into per-run options.
func (configuration CommandConfiguration) RunOptions() RunOptions {
	return RunOptions{
		ExpansionFile: configuration.ExpansionFile,
		Tool: copybara.WorkingCopy{
			RepositoryURL: configuration.Tool.RepositoryURL,
			Directory:     configuration.Tool.Directory,
		},
		Image:                 configuration.Tool.Image,
		ConfigFile:            configuration.Migration.ConfigFile,
		Subcommand:            configuration.Migration.Subcommand,
		LastRevision:          configuration.Migration.LastRevision,
		DestinationRepository: configuration.Migration.DestinationRepository,
		SSHDirectory:          configuration.Migration.SSHDirectory,
		Verbose:               configuration.Migration.Verbose,
		Identity: gitidentity.Identity{
			Name:  configuration.Identity.Name,
			Email: configuration.Identity.Email,
			Path:  configuration.Identity.Path,
		},
	}
}

// NotificationSettings converts the notification section.
func (configuration CommandConfiguration) NotificationSettings() notify.Settings {
	return notify.Settings{
		Enabled:             configuration.Notification.Enabled,
		Channel:             configuration.Notification.Channel,
		TaskName:            configuration.Notification.TaskName,
		VersionLinkTemplate: configuration.Notification.VersionLinkTemplate,
	}
}

func valueOrDefault(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}
