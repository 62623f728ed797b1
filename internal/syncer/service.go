package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposync/internal/copybara"
	"github.com/temirov/reposync/internal/execshell"
	"github.com/temirov/reposync/internal/expansions"
	"github.com/temirov/reposync/internal/githubauth"
	"github.com/temirov/reposync/internal/gitidentity"
	"github.com/temirov/reposync/internal/notify"
	pathutils "github.com/temirov/reposync/internal/utils/path"
)

const (
	loadExpansionsErrorTemplateConstant  = "unable to load expansions: %w"
	syncerCredentialsErrorTemplateConst  = "syncer credentials unavailable: %w"
	workingCopyErrorTemplateConstant     = "unable to prepare migration tool: %w"
	daemonErrorTemplateConstant          = "docker daemon check failed: %w"
	imageBuildErrorTemplateConstant      = "unable to build migration tool image: %w"
	accessTokenErrorTemplateConstant     = "unable to obtain installation access token: %w"
	identityErrorTemplateConstant        = "unable to prepare git identity: %w"
	resolvePathErrorTemplateConstant     = "unable to resolve %s: %w"
	invocationErrorTemplateConstant      = "unable to assemble migration invocation: %w"
	migrationFailedErrorTemplateConstant = "migration failed: %w"
	sshDirectoryDescriptionConstant      = "ssh directory"
	configFileDescriptionConstant        = "migration configuration file"
	runStartedMessageConstant            = "Starting repository synchronization"
	credentialsLoadedMessageConstant     = "Loaded syncer credentials from expansions"
	migrationStartedMessageConstant      = "Launching migration container"
	migrationSucceededMessageConstant    = "Migration completed"
	benignNoOpMessageConstant            = "Migration reported no changes to apply; treating as success"
	genuineFailureMessageConstant        = "Migration failed; notifying operators"
	notificationFailedMessageConstant    = "Failure notification could not be delivered"
	logFieldExpansionFileConstant        = "expansion_file"
	logFieldVersionIDConstant            = "version_id"
	logFieldInstallationIDConstant       = "installation_id"
	logFieldOutcomeConstant              = "outcome"
	logFieldLastRevisionConstant         = "last_revision"
	logFieldDestinationConstant          = "destination"
)

var (
	// ErrDependencyMissing indicates that a Service was constructed without a required collaborator.
	ErrDependencyMissing = errors.New("syncer: required dependency missing")
	// ErrAbsentToken indicates that the credential provider returned no token without reporting an error.
	ErrAbsentToken = errors.New("installation access token absent")
)

// ExpansionsLoader reads run expansions from a file.
type ExpansionsLoader func(filePath string) (expansions.Expansions, error)

// WorkingCopyEnsurer guarantees that the tool sources are present locally.
type WorkingCopyEnsurer interface {
	EnsureWorkingCopy(executionContext context.Context, workingCopy copybara.WorkingCopy) (copybara.WorkingCopyStatus, error)
}

// DaemonChecker verifies container runtime availability.
type DaemonChecker interface {
	Ping(executionContext context.Context) error
}

// ImageBuilder rebuilds the tool image.
type ImageBuilder interface {
	Build(executionContext context.Context, directory string, image string) error
}

// Dependencies groups the collaborators of a Service. DaemonChecker is optional and a zero Classifier uses DefaultAcceptablePatterns.
type Dependencies struct {
	LoadExpansions ExpansionsLoader
	Workspace      WorkingCopyEnsurer
	DaemonChecker  DaemonChecker
	ImageBuilder   ImageBuilder
	TokenProvider  githubauth.TokenProvider
	Identity       gitidentity.Preparer
	Executor       copybara.DockerExecutor
	Notifier       notify.FailureNotifier
	Classifier     OutcomeClassifier
	HomeExpander   *pathutils.HomeExpander
}

// RunOptions parameterize a single synchronization run.
type RunOptions struct {
	ExpansionFile         string
	Tool                  copybara.WorkingCopy
	Image                 string
	ConfigFile            string
	Subcommand            string
	LastRevision          string
	DestinationRepository string
	SSHDirectory          string
	Verbose               bool
	Identity              gitidentity.Identity
	WorkingDirectory      string
}

// RunResult summarizes a finished run.
type RunResult struct {
	Outcome     Outcome
	WorkingCopy copybara.WorkingCopyStatus
	Notified    bool
}

// Service executes synchronization runs sequentially; it keeps no state between runs.
type Service struct {
	logger       *zap.Logger
	dependencies Dependencies
}

// NewService validates dependencies and constructs a Service.
func NewService(logger *zap.Logger, dependencies Dependencies) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	missing := make([]string, 0)
	if dependencies.LoadExpansions == nil {
		missing = append(missing, "expansions loader")
	}
	if dependencies.Workspace == nil {
		missing = append(missing, "workspace")
	}
	if dependencies.ImageBuilder == nil {
		missing = append(missing, "image builder")
	}
	if dependencies.TokenProvider == nil {
		missing = append(missing, "token provider")
	}
	if dependencies.Identity == nil {
		missing = append(missing, "identity preparer")
	}
	if dependencies.Executor == nil {
		missing = append(missing, "executor")
	}
	if dependencies.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDependencyMissing, strings.Join(missing, ", "))
	}
	if dependencies.HomeExpander == nil {
		dependencies.HomeExpander = pathutils.NewHomeExpander()
	}
	if dependencies.Classifier.IsZero() {
		dependencies.Classifier = NewOutcomeClassifier(DefaultAcceptablePatterns())
	}
	return &Service{logger: logger, dependencies: dependencies}, nil
}

// Run performs one synchronization. Expansions and credentials are validated before any command runs.
// A benign no-op returns a nil error; a genuine migration failure is reported once and then returned.
func (service *Service) Run(executionContext context.Context, options RunOptions) (RunResult, error) {
	service.logger.Info(runStartedMessageConstant, zap.String(logFieldExpansionFileConstant, options.ExpansionFile))

	result := RunResult{Outcome: OutcomeAborted}

	runExpansions, loadError := service.dependencies.LoadExpansions(options.ExpansionFile)
	if loadError != nil {
		return result, fmt.Errorf(loadExpansionsErrorTemplateConstant, loadError)
	}

	syncerCredentials, credentialsError := expansions.LoadSyncerCredentials(runExpansions)
	if credentialsError != nil {
		return result, fmt.Errorf(syncerCredentialsErrorTemplateConst, credentialsError)
	}
	service.logger.Debug(credentialsLoadedMessageConstant,
		zap.String(logFieldVersionIDConstant, runExpansions.VersionID()),
		zap.String(logFieldInstallationIDConstant, syncerCredentials.InstallationID),
	)

	workingCopyStatus, workingCopyError := service.dependencies.Workspace.EnsureWorkingCopy(executionContext, options.Tool)
	if workingCopyError != nil {
		return result, fmt.Errorf(workingCopyErrorTemplateConstant, workingCopyError)
	}
	result.WorkingCopy = workingCopyStatus

	if service.dependencies.DaemonChecker != nil {
		if pingError := service.dependencies.DaemonChecker.Ping(executionContext); pingError != nil {
			return result, fmt.Errorf(daemonErrorTemplateConstant, pingError)
		}
	}

	if buildError := service.dependencies.ImageBuilder.Build(executionContext, workingCopyStatus.Path, options.Image); buildError != nil {
		return result, fmt.Errorf(imageBuildErrorTemplateConstant, buildError)
	}

	accessToken, tokenError := service.dependencies.TokenProvider.AccessToken(executionContext, githubauth.AppCredentials{
		AppID:          syncerCredentials.AppID,
		PrivateKey:     syncerCredentials.PrivateKey,
		InstallationID: syncerCredentials.InstallationID,
	})
	if tokenError != nil {
		return result, fmt.Errorf(accessTokenErrorTemplateConstant, tokenError)
	}
	if accessToken.IsZero() {
		return result, fmt.Errorf(accessTokenErrorTemplateConstant, errors.Join(githubauth.ErrTokenUnavailable, ErrAbsentToken))
	}

	identityPath, identityError := service.dependencies.Identity.Write(options.Identity)
	if identityError != nil {
		return result, fmt.Errorf(identityErrorTemplateConstant, identityError)
	}

	invocationDetails, invocationError := service.buildInvocation(options, identityPath, accessToken)
	if invocationError != nil {
		return result, invocationError
	}

	service.logger.Info(migrationStartedMessageConstant,
		zap.String(logFieldLastRevisionConstant, options.LastRevision),
		zap.String(logFieldDestinationConstant, options.DestinationRepository),
	)
	_, migrationError := service.dependencies.Executor.ExecuteDocker(executionContext, invocationDetails)

	result.Outcome = service.dependencies.Classifier.Classify(migrationError)
	switch result.Outcome {
	case OutcomeSucceeded:
		service.logger.Info(migrationSucceededMessageConstant, zap.Stringer(logFieldOutcomeConstant, result.Outcome))
		return result, nil
	case OutcomeBenignNoOp:
		service.logger.Info(benignNoOpMessageConstant, zap.Stringer(logFieldOutcomeConstant, result.Outcome))
		return result, nil
	}

	service.logger.Error(genuineFailureMessageConstant,
		zap.Stringer(logFieldOutcomeConstant, result.Outcome),
		zap.String(logFieldVersionIDConstant, runExpansions.VersionID()),
		zap.Error(migrationError),
	)
	if notifyError := service.dependencies.Notifier.NotifyFailure(executionContext, runExpansions); notifyError != nil {
		service.logger.Error(notificationFailedMessageConstant, zap.Error(notifyError))
	} else {
		result.Notified = true
	}
	return result, fmt.Errorf(migrationFailedErrorTemplateConstant, migrationError)
}

func (service *Service) buildInvocation(options RunOptions, identityPath string, accessToken githubauth.AccessToken) (execshell.CommandDetails, error) {
	sshDirectory, sshError := service.dependencies.HomeExpander.ResolveHomePath(valueOrDefault(options.SSHDirectory, copybara.DefaultSSHDirectory))
	if sshError != nil {
		return execshell.CommandDetails{}, fmt.Errorf(resolvePathErrorTemplateConstant, sshDirectoryDescriptionConstant, sshError)
	}

	configFilePath, configError := service.resolveConfigFile(options)
	if configError != nil {
		return execshell.CommandDetails{}, fmt.Errorf(resolvePathErrorTemplateConstant, configFileDescriptionConstant, configError)
	}

	destinationURL, destinationError := copybara.AuthenticatedDestinationURL(options.DestinationRepository, accessToken)
	if destinationError != nil {
		return execshell.CommandDetails{}, fmt.Errorf(invocationErrorTemplateConstant, destinationError)
	}

	invocationDetails, commandError := copybara.MigrationInvocation{
		Image:           options.Image,
		SSHDirectory:    sshDirectory,
		GitConfigPath:   identityPath,
		ConfigFilePath:  configFilePath,
		Subcommand:      options.Subcommand,
		LastRevision:    options.LastRevision,
		DestinationURL:  destinationURL,
		Verbose:         options.Verbose,
		SensitiveValues: []string{accessToken.Value()},
	}.Command()
	if commandError != nil {
		return execshell.CommandDetails{}, fmt.Errorf(invocationErrorTemplateConstant, commandError)
	}
	return invocationDetails, nil
}

func (service *Service) resolveConfigFile(options RunOptions) (string, error) {
	configFile, expansionError := service.dependencies.HomeExpander.ResolveHomePath(valueOrDefault(options.ConfigFile, copybara.DefaultConfigFile))
	if expansionError != nil {
		return "", expansionError
	}
	if filepath.IsAbs(configFile) {
		return configFile, nil
	}
	workingDirectory := strings.TrimSpace(options.WorkingDirectory)
	if len(workingDirectory) == 0 {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return "", workingDirectoryError
		}
		workingDirectory = currentDirectory
	}
	return filepath.Join(workingDirectory, configFile), nil
}
