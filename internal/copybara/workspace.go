package copybara

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/temirov/reposync/internal/execshell"
)

const (
	// DefaultRepositoryURL locates the migration tool sources.
	DefaultRepositoryURL = "https://github.com/10gen/copybara.git"
	// DefaultDirectory is the working copy location relative to the working directory.
	DefaultDirectory = "copybara"
	// CloneBackendGit clones with the git executable so ambient credential helpers apply.
	CloneBackendGit = "git"
	// CloneBackendGoGit clones in-process with go-git.
	CloneBackendGoGit = "go-git"

	gitCloneSubcommandConstant             = "clone"
	workingCopyPresentMessageConstant      = "Migration tool working copy already present; skipping clone"
	workingCopyClonedMessageConstant       = "Cloned migration tool working copy"
	workingCopyRevisionUnknownMessageConst = "Unable to inspect migration tool working copy revision"
	logFieldDirectoryConstant              = "directory"
	logFieldRepositoryConstant             = "repository"
	logFieldRevisionConstant               = "revision"
	notDirectoryErrorTemplateConstant      = "working copy path %s exists but is not a directory"
	inspectPathErrorTemplateConstant       = "unable to inspect working copy path %s: %w"
	cloneErrorTemplateConstant             = "unable to clone %s into %s: %w"
	unsupportedBackendErrorTemplateConst   = "unsupported clone backend %q"
)

// ErrClonerNotConfigured indicates that a workspace manager was constructed without a cloner.
var ErrClonerNotConfigured = errors.New("copybara: repository cloner not configured")

// RepositoryCloner materializes a repository at a destination directory.
type RepositoryCloner interface {
	Clone(executionContext context.Context, repositoryURL string, destination string) error
}

// GitCommandCloner clones through the git executable.
type GitCommandCloner struct {
	Executor *execshell.ShellExecutor
}

// Clone runs git clone <repositoryURL> <destination>.
func (cloner GitCommandCloner) Clone(executionContext context.Context, repositoryURL string, destination string) error {
	_, executionError := cloner.Executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitCloneSubcommandConstant, repositoryURL, destination},
	})
	return executionError
}

// GoGitCloner clones in-process, reporting transfer progress to Progress when set.
type GoGitCloner struct {
	Progress io.Writer
}

// Clone performs a full non-bare clone.
func (cloner GoGitCloner) Clone(executionContext context.Context, repositoryURL string, destination string) error {
	_, cloneError := git.PlainCloneContext(executionContext, destination, false, &git.CloneOptions{
		URL:      repositoryURL,
		Progress: cloner.Progress,
	})
	if flusher, isFlusher := cloner.Progress.(interface{ Flush() error }); isFlusher {
		_ = flusher.Flush()
	}
	return cloneError
}

// NewRepositoryCloner returns the cloner for backend; an empty backend selects CloneBackendGit.
func NewRepositoryCloner(backend string, executor *execshell.ShellExecutor, progress io.Writer) (RepositoryCloner, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", CloneBackendGit:
		if executor == nil {
			return nil, ErrClonerNotConfigured
		}
		return GitCommandCloner{Executor: executor}, nil
	case CloneBackendGoGit:
		return GoGitCloner{Progress: progress}, nil
	default:
		return nil, fmt.Errorf(unsupportedBackendErrorTemplateConst, backend)
	}
}

// WorkingCopy names the tool repository and where it lives locally.
type WorkingCopy struct {
	RepositoryURL string
	Directory     string
}

// WorkingCopyStatus reports the outcome of EnsureWorkingCopy.
type WorkingCopyStatus struct {
	Path     string
	Cloned   bool
	Revision string
}

// WorkspaceManager ensures the tool working copy exists. Existing directories are reused without any freshness check.
type WorkspaceManager struct {
	logger *zap.Logger
	cloner RepositoryCloner
}

// NewWorkspaceManager constructs a WorkspaceManager.
func NewWorkspaceManager(logger *zap.Logger, cloner RepositoryCloner) (*WorkspaceManager, error) {
	if cloner == nil {
		return nil, ErrClonerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceManager{logger: logger, cloner: cloner}, nil
}

// EnsureWorkingCopy clones the repository when the directory is absent.
func (manager *WorkspaceManager) EnsureWorkingCopy(executionContext context.Context, workingCopy WorkingCopy) (WorkingCopyStatus, error) {
	directory := filepath.Clean(strings.TrimSpace(workingCopy.Directory))
	if len(strings.TrimSpace(workingCopy.Directory)) == 0 {
		directory = DefaultDirectory
	}
	repositoryURL := strings.TrimSpace(workingCopy.RepositoryURL)
	if len(repositoryURL) == 0 {
		repositoryURL = DefaultRepositoryURL
	}

	fileInfo, statError := os.Stat(directory)
	switch {
	case statError == nil && !fileInfo.IsDir():
		return WorkingCopyStatus{}, fmt.Errorf(notDirectoryErrorTemplateConstant, directory)
	case statError == nil:
		status := WorkingCopyStatus{Path: directory, Revision: manager.inspectRevision(directory)}
		manager.logger.Info(workingCopyPresentMessageConstant,
			zap.String(logFieldDirectoryConstant, directory),
			zap.String(logFieldRevisionConstant, status.Revision),
		)
		return status, nil
	case !errors.Is(statError, os.ErrNotExist):
		return WorkingCopyStatus{}, fmt.Errorf(inspectPathErrorTemplateConstant, directory, statError)
	}

	if cloneError := manager.cloner.Clone(executionContext, repositoryURL, directory); cloneError != nil {
		return WorkingCopyStatus{}, fmt.Errorf(cloneErrorTemplateConstant, repositoryURL, directory, cloneError)
	}

	status := WorkingCopyStatus{Path: directory, Cloned: true, Revision: manager.inspectRevision(directory)}
	manager.logger.Info(workingCopyClonedMessageConstant,
		zap.String(logFieldRepositoryConstant, repositoryURL),
		zap.String(logFieldDirectoryConstant, directory),
		zap.String(logFieldRevisionConstant, status.Revision),
	)
	return status, nil
}

func (manager *WorkspaceManager) inspectRevision(directory string) string {
	repository, openError := git.PlainOpen(directory)
	if openError != nil {
		manager.logger.Debug(workingCopyRevisionUnknownMessageConst, zap.String(logFieldDirectoryConstant, directory), zap.Error(openError))
		return ""
	}
	headReference, headError := repository.Head()
	if headError != nil {
		manager.logger.Debug(workingCopyRevisionUnknownMessageConst, zap.String(logFieldDirectoryConstant, directory), zap.Error(headError))
		return ""
	}
	return headReference.Hash().String()
}
