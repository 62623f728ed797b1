package copybara

import (
	"context"
	"strings"

	"github.com/temirov/reposync/internal/execshell"
)

const (
	// DefaultImage tags the migration tool image and names its entrypoint.
	DefaultImage = "copybara"

	dockerBuildSubcommandConstant = "build"
	dockerRemoveIntermediateFlag  = "--rm"
	dockerTagFlagConstant         = "-t"
	dockerBuildContextConstant    = "."
)

// DockerExecutor runs docker CLI commands.
type DockerExecutor interface {
	ExecuteDocker(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ImageBuilder rebuilds the tool image on every call; no content-based caching is attempted.
type ImageBuilder struct {
	executor DockerExecutor
}

// NewImageBuilder constructs an ImageBuilder.
func NewImageBuilder(executor DockerExecutor) *ImageBuilder {
	return &ImageBuilder{executor: executor}
}

// BuildCommand returns docker build --rm -t <image> . run inside directory.
func BuildCommand(directory string, image string) execshell.CommandDetails {
	if len(strings.TrimSpace(image)) == 0 {
		image = DefaultImage
	}
	return execshell.CommandDetails{
		Arguments:        []string{dockerBuildSubcommandConstant, dockerRemoveIntermediateFlag, dockerTagFlagConstant, image, dockerBuildContextConstant},
		WorkingDirectory: directory,
	}
}

// Build runs the image build in directory.
func (builder *ImageBuilder) Build(executionContext context.Context, directory string, image string) error {
	_, executionError := builder.executor.ExecuteDocker(executionContext, BuildCommand(directory, image))
	return executionError
}
