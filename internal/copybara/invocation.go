package copybara

import (
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/reposync/internal/execshell"
	"github.com/temirov/reposync/internal/githubauth"
	"github.com/temirov/reposync/internal/gitrepo"
)

const (
	// DefaultConfigFile is the migration configuration read from the working directory.
	DefaultConfigFile = "copybara.sky"
	// DefaultSubcommand selects the migration workflow.
	DefaultSubcommand = "migrate"
	// DefaultLastRevision marks the last upstream revision already present in the destination.
	DefaultLastRevision = "0fd0cc3"
	// DefaultDestinationRepository is the host path of the destination repository.
	DefaultDestinationRepository = "github.com/mongodb/mongo.git"
	// DefaultSSHDirectory is mounted so the tool can reach SSH remotes.
	DefaultSSHDirectory = "~/.ssh"

	// ConfigurationEnvironmentVariable names the configuration file inside the container.
	ConfigurationEnvironmentVariable = "COPYBARA_CONFIG"
	// SubcommandEnvironmentVariable names the tool subcommand.
	SubcommandEnvironmentVariable = "COPYBARA_SUBCOMMAND"
	// OptionsEnvironmentVariable carries the tool options, including the authenticated destination.
	OptionsEnvironmentVariable = "COPYBARA_OPTIONS"

	toolCommandConstant                  = "copybara"
	containerConfigFileNameConstant      = "copy.bara.sky"
	containerConfigPathConstant          = "/usr/src/app/copy.bara.sky"
	containerSSHDirectoryConstant        = "/root/.ssh"
	containerGitConfigPathConstant       = "/root/.gitconfig"
	dockerRunSubcommandConstant          = "run"
	dockerVolumeFlagConstant             = "-v"
	dockerEnvironmentFlagConstant        = "-e"
	volumeMappingTemplateConstant        = "%s:%s"
	environmentAssignmentTemplateConst   = "%s=%s"
	verboseOptionConstant                = "-v"
	lastRevisionOptionTemplateConstant   = "--last-rev=%s"
	destinationURLOptionTemplateConstant = "--git-destination-url=%s"
	accessTokenUserConstant              = "x-access-token"
	destinationParseErrorTemplateConst   = "invalid destination repository: %w"
	missingInvocationFieldTemplateConst  = "migration invocation requires %s"
)

// ErrTokenRequired indicates an attempt to build an authenticated URL from an absent token.
var ErrTokenRequired = errors.New("an installation access token is required for the destination URL")

// AuthenticatedDestinationURL embeds token as transient credentials in the HTTPS URL of repository.
// SSH and scheme-less locations are rewritten to HTTPS.
func AuthenticatedDestinationURL(repository string, token githubauth.AccessToken) (string, error) {
	if token.IsZero() {
		return "", ErrTokenRequired
	}
	location := strings.TrimSpace(repository)
	if len(location) == 0 {
		location = DefaultDestinationRepository
	}
	destination, parseError := gitrepo.ParseRemoteURL(location)
	if parseError != nil {
		return "", fmt.Errorf(destinationParseErrorTemplateConst, parseError)
	}
	return gitrepo.FormatCredentialedHTTPSURL(destination, accessTokenUserConstant, token.Value())
}

// MigrationInvocation describes one container run of the migration tool. Host paths must be absolute.
type MigrationInvocation struct {
	Image           string
	SSHDirectory    string
	GitConfigPath   string
	ConfigFilePath  string
	Subcommand      string
	LastRevision    string
	DestinationURL  string
	Verbose         bool
	SensitiveValues []string
}

// Options renders the tool options passed through OptionsEnvironmentVariable.
func (invocation MigrationInvocation) Options() string {
	options := make([]string, 0, 3)
	if invocation.Verbose {
		options = append(options, verboseOptionConstant)
	}
	if len(strings.TrimSpace(invocation.LastRevision)) > 0 {
		options = append(options, fmt.Sprintf(lastRevisionOptionTemplateConstant, strings.TrimSpace(invocation.LastRevision)))
	}
	options = append(options, fmt.Sprintf(destinationURLOptionTemplateConstant, invocation.DestinationURL))
	return strings.Join(options, " ")
}

// Command assembles the docker run invocation. The options, which hold the destination credentials,
// reach the container through the docker client environment rather than its argument list.
func (invocation MigrationInvocation) Command() (execshell.CommandDetails, error) {
	if validationError := invocation.validate(); validationError != nil {
		return execshell.CommandDetails{}, validationError
	}

	image := strings.TrimSpace(invocation.Image)
	if len(image) == 0 {
		image = DefaultImage
	}
	subcommand := strings.TrimSpace(invocation.Subcommand)
	if len(subcommand) == 0 {
		subcommand = DefaultSubcommand
	}

	arguments := []string{
		dockerRunSubcommandConstant,
		dockerVolumeFlagConstant, fmt.Sprintf(volumeMappingTemplateConstant, invocation.SSHDirectory, containerSSHDirectoryConstant),
		dockerVolumeFlagConstant, fmt.Sprintf(volumeMappingTemplateConstant, invocation.GitConfigPath, containerGitConfigPathConstant),
		dockerVolumeFlagConstant, fmt.Sprintf(volumeMappingTemplateConstant, invocation.ConfigFilePath, containerConfigPathConstant),
		dockerEnvironmentFlagConstant, fmt.Sprintf(environmentAssignmentTemplateConst, ConfigurationEnvironmentVariable, containerConfigFileNameConstant),
		dockerEnvironmentFlagConstant, fmt.Sprintf(environmentAssignmentTemplateConst, SubcommandEnvironmentVariable, subcommand),
		dockerEnvironmentFlagConstant, OptionsEnvironmentVariable,
		image,
		toolCommandConstant,
	}

	sensitiveValues := append([]string{invocation.DestinationURL}, invocation.SensitiveValues...)

	return execshell.CommandDetails{
		Arguments:            arguments,
		EnvironmentVariables: map[string]string{OptionsEnvironmentVariable: invocation.Options()},
		SensitiveValues:      sensitiveValues,
	}, nil
}

func (invocation MigrationInvocation) validate() error {
	requiredFields := []struct {
		name  string
		value string
	}{
		{name: "an ssh directory", value: invocation.SSHDirectory},
		{name: "a git config path", value: invocation.GitConfigPath},
		{name: "a configuration file path", value: invocation.ConfigFilePath},
		{name: "a destination URL", value: invocation.DestinationURL},
	}
	for _, requiredField := range requiredFields {
		if len(strings.TrimSpace(requiredField.value)) == 0 {
			return fmt.Errorf(missingInvocationFieldTemplateConst, requiredField.name)
		}
	}
	return nil
}
