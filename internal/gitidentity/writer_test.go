package gitidentity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/reposync/internal/gitidentity"
	pathutils "github.com/temirov/reposync/internal/utils/path"
)

const testExpectedIdentityContentConstant = "[user]\n\tname = MongoDB Bot\n\temail = mongo-bot@mongodb.com\n"

func newTestWriter(homeDirectory string) *gitidentity.Writer {
	return gitidentity.NewWriter(zap.NewNop(), pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return homeDirectory, nil
	}))
}

func TestWriterWritesDefaultIdentityIntoHomeDirectory(testInstance *testing.T) {
	homeDirectory := testInstance.TempDir()

	writtenPath, writeError := newTestWriter(homeDirectory).Write(gitidentity.DefaultIdentity())
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, filepath.Join(homeDirectory, "mongodb-bot.gitconfig"), writtenPath)

	content, readError := os.ReadFile(writtenPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, testExpectedIdentityContentConstant, string(content))
}

func TestWriterIsIdempotentAndOverwrites(testInstance *testing.T) {
	homeDirectory := testInstance.TempDir()
	identityPath := filepath.Join(homeDirectory, "mongodb-bot.gitconfig")
	require.NoError(testInstance, os.WriteFile(identityPath, []byte("[user]\n\tname = Someone Else\n[core]\n\teditor = vim\n"), 0o600))

	writer := newTestWriter(homeDirectory)

	_, firstError := writer.Write(gitidentity.DefaultIdentity())
	require.NoError(testInstance, firstError)
	firstContent, firstReadError := os.ReadFile(identityPath)
	require.NoError(testInstance, firstReadError)

	_, secondError := writer.Write(gitidentity.DefaultIdentity())
	require.NoError(testInstance, secondError)
	secondContent, secondReadError := os.ReadFile(identityPath)
	require.NoError(testInstance, secondReadError)

	require.Equal(testInstance, testExpectedIdentityContentConstant, string(firstContent))
	require.Equal(testInstance, firstContent, secondContent)
}

func TestWriterRejectsIncompleteIdentityAndPropagatesIOFailures(testInstance *testing.T) {
	homeDirectory := testInstance.TempDir()
	writer := newTestWriter(homeDirectory)

	_, incompleteError := writer.Write(gitidentity.Identity{Name: "MongoDB Bot"})
	require.ErrorIs(testInstance, incompleteError, gitidentity.ErrIncompleteIdentity)

	_, missingDirectoryError := writer.Write(gitidentity.Identity{
		Name:  gitidentity.DefaultName,
		Email: gitidentity.DefaultEmail,
		Path:  filepath.Join(homeDirectory, "absent", "bot.gitconfig"),
	})
	require.Error(testInstance, missingDirectoryError)
	require.ErrorIs(testInstance, missingDirectoryError, os.ErrNotExist)
}
