package copybara_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/reposync/internal/copybara"
	"github.com/temirov/reposync/internal/execshell"
)

type recordedClone struct {
	repositoryURL string
	destination   string
}

type recordingCloner struct {
	clones     []recordedClone
	cloneError error
}

func (cloner *recordingCloner) Clone(executionContext context.Context, repositoryURL string, destination string) error {
	cloner.clones = append(cloner.clones, recordedClone{repositoryURL: repositoryURL, destination: destination})
	if cloner.cloneError != nil {
		return cloner.cloneError
	}
	return os.MkdirAll(destination, 0o755)
}

func initializeRepository(testInstance *testing.T, directory string) string {
	testInstance.Helper()
	repository, initError := git.PlainInit(directory, false)
	require.NoError(testInstance, initError)
	require.NoError(testInstance, os.WriteFile(filepath.Join(directory, "Dockerfile"), []byte("FROM scratch\n"), 0o644))

	worktree, worktreeError := repository.Worktree()
	require.NoError(testInstance, worktreeError)
	_, addError := worktree.Add("Dockerfile")
	require.NoError(testInstance, addError)

	commitHash, commitError := worktree.Commit("Initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(testInstance, commitError)
	return commitHash.String()
}

func TestWorkspaceManagerClonesMissingWorkingCopy(testInstance *testing.T) {
	cloner := &recordingCloner{}
	observerCore, observerLogs := observer.New(zap.DebugLevel)
	manager, creationError := copybara.NewWorkspaceManager(zap.New(observerCore), cloner)
	require.NoError(testInstance, creationError)

	directory := filepath.Join(testInstance.TempDir(), "copybara")
	status, ensureError := manager.EnsureWorkingCopy(context.Background(), copybara.WorkingCopy{Directory: directory})
	require.NoError(testInstance, ensureError)

	require.True(testInstance, status.Cloned)
	require.Equal(testInstance, directory, status.Path)
	require.Empty(testInstance, status.Revision)
	require.Equal(testInstance, []recordedClone{{repositoryURL: copybara.DefaultRepositoryURL, destination: directory}}, cloner.clones)
	require.Equal(testInstance, 1, observerLogs.FilterMessage("Cloned migration tool working copy").Len())
}

func TestWorkspaceManagerSkipsExistingWorkingCopy(testInstance *testing.T) {
	directory := filepath.Join(testInstance.TempDir(), "copybara")
	expectedRevision := initializeRepository(testInstance, directory)

	cloner := &recordingCloner{}
	manager, creationError := copybara.NewWorkspaceManager(zap.NewNop(), cloner)
	require.NoError(testInstance, creationError)

	status, ensureError := manager.EnsureWorkingCopy(context.Background(), copybara.WorkingCopy{RepositoryURL: "https://example.com/tool.git", Directory: directory})
	require.NoError(testInstance, ensureError)
	require.False(testInstance, status.Cloned)
	require.Equal(testInstance, expectedRevision, status.Revision)
	require.Empty(testInstance, cloner.clones)
}

func TestWorkspaceManagerSkipsExistingPlainDirectory(testInstance *testing.T) {
	directory := testInstance.TempDir()
	cloner := &recordingCloner{}
	manager, creationError := copybara.NewWorkspaceManager(zap.NewNop(), cloner)
	require.NoError(testInstance, creationError)

	status, ensureError := manager.EnsureWorkingCopy(context.Background(), copybara.WorkingCopy{Directory: directory})
	require.NoError(testInstance, ensureError)
	require.False(testInstance, status.Cloned)
	require.Empty(testInstance, status.Revision)
	require.Empty(testInstance, cloner.clones)
}

func TestWorkspaceManagerFailures(testInstance *testing.T) {
	testInstance.Run("path_is_file", func(testInstance *testing.T) {
		filePath := filepath.Join(testInstance.TempDir(), "copybara")
		require.NoError(testInstance, os.WriteFile(filePath, []byte("not a directory"), 0o644))

		manager, creationError := copybara.NewWorkspaceManager(zap.NewNop(), &recordingCloner{})
		require.NoError(testInstance, creationError)

		_, ensureError := manager.EnsureWorkingCopy(context.Background(), copybara.WorkingCopy{Directory: filePath})
		require.ErrorContains(testInstance, ensureError, "is not a directory")
	})

	testInstance.Run("clone_failure_propagates", func(testInstance *testing.T) {
		cloneFailure := execshell.CommandFailedError{
			Command: execshell.ShellCommand{Name: execshell.CommandGit},
			Result:  execshell.ExecutionResult{ExitCode: 128, StandardError: "fatal: repository not found"},
		}
		manager, creationError := copybara.NewWorkspaceManager(zap.NewNop(), &recordingCloner{cloneError: cloneFailure})
		require.NoError(testInstance, creationError)

		_, ensureError := manager.EnsureWorkingCopy(context.Background(), copybara.WorkingCopy{Directory: filepath.Join(testInstance.TempDir(), "copybara")})
		var commandFailure execshell.CommandFailedError
		require.ErrorAs(testInstance, ensureError, &commandFailure)
		require.Equal(testInstance, 128, commandFailure.ExitCode())
	})

	testInstance.Run("missing_cloner", func(testInstance *testing.T) {
		_, creationError := copybara.NewWorkspaceManager(zap.NewNop(), nil)
		require.ErrorIs(testInstance, creationError, copybara.ErrClonerNotConfigured)
	})
}

func TestNewRepositoryClonerSelectsBackend(testInstance *testing.T) {
	executor, executorError := execshell.NewShellExecutor(zap.NewNop(), &recordingRunner{})
	require.NoError(testInstance, executorError)

	defaultCloner, defaultError := copybara.NewRepositoryCloner("", executor, nil)
	require.NoError(testInstance, defaultError)
	require.IsType(testInstance, copybara.GitCommandCloner{}, defaultCloner)

	goGitCloner, goGitError := copybara.NewRepositoryCloner("Go-Git", nil, nil)
	require.NoError(testInstance, goGitError)
	require.IsType(testInstance, copybara.GoGitCloner{}, goGitCloner)

	_, unsupportedError := copybara.NewRepositoryCloner("svn", executor, nil)
	require.Error(testInstance, unsupportedError)

	_, missingExecutorError := copybara.NewRepositoryCloner(copybara.CloneBackendGit, nil, nil)
	require.True(testInstance, errors.Is(missingExecutorError, copybara.ErrClonerNotConfigured))
}

func TestGitCommandClonerRunsGitClone(testInstance *testing.T) {
	runner := &recordingRunner{}
	executor, executorError := execshell.NewShellExecutor(zap.NewNop(), runner)
	require.NoError(testInstance, executorError)

	cloneError := copybara.GitCommandCloner{Executor: executor}.Clone(context.Background(), copybara.DefaultRepositoryURL, "copybara")
	require.NoError(testInstance, cloneError)
	require.Len(testInstance, runner.commands, 1)
	require.Equal(testInstance, execshell.CommandGit, runner.commands[0].Name)
	require.Equal(testInstance, []string{"clone", copybara.DefaultRepositoryURL, "copybara"}, runner.commands[0].Details.Arguments)
}
