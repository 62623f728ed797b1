package copybara

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dockerHostEnvironmentConstant        = "DOCKER_HOST"
	dockerContextEnvironmentConstant     = "DOCKER_CONTEXT"
	dockerConfigEnvironmentConstant      = "DOCKER_CONFIG"
	dockerConfigFileNameConstant         = "config.json"
	dockerContextsDirectoryConstant      = "contexts"
	dockerContextsMetaDirectoryConstant  = "meta"
	dockerContextMetaFileNameConstant    = "meta.json"
	dockerEndpointNameConstant           = "docker"
	defaultDockerContextNameConstant     = "default"
	defaultDockerConfigDirectoryConstant = ".docker"
	contextConfigReadErrorTemplateConst  = "unable to read docker configuration %s: %w"
	contextMetaReadErrorTemplateConstant = "unable to read docker context %q: %w"
	contextEndpointMissingTemplateConst  = "docker context %q has no docker endpoint"
)

var probedHostSchemes = []string{"unix://", "tcp://", "npipe://", "http://", "https://"}

// ErrProbeUnsupported indicates that the active docker endpoint cannot be dialed by the SDK client, so the preflight is skipped.
var ErrProbeUnsupported = errors.New("docker endpoint not supported by the daemon probe")

type dockerCLIConfiguration struct {
	CurrentContext string `json:"currentContext"`
}

type dockerContextMetadata struct {
	Endpoints map[string]struct {
		Host string `json:"Host"`
	} `json:"Endpoints"`
}

// DockerConfigDirectory returns $DOCKER_CONFIG, or ~/.docker under homeDirectory.
func DockerConfigDirectory(lookupEnvironment func(string) string, homeDirectory string) string {
	if configured := strings.TrimSpace(lookupEnvironment(dockerConfigEnvironmentConstant)); len(configured) > 0 {
		return configured
	}
	return filepath.Join(homeDirectory, defaultDockerConfigDirectoryConstant)
}

// ResolveDaemonHost picks the daemon host the docker CLI would use. DOCKER_HOST wins and is left to the SDK, so the
// result is empty; otherwise the context named by DOCKER_CONTEXT or by currentContext in config.json supplies the
// docker endpoint host. The default context also yields an empty host. TLS material stored with a context is not read.
func ResolveDaemonHost(lookupEnvironment func(string) string, configDirectory string) (string, error) {
	if len(strings.TrimSpace(lookupEnvironment(dockerHostEnvironmentConstant))) > 0 {
		return "", nil
	}

	contextName := strings.TrimSpace(lookupEnvironment(dockerContextEnvironmentConstant))
	if len(contextName) == 0 {
		configPath := filepath.Join(configDirectory, dockerConfigFileNameConstant)
		configContent, readError := os.ReadFile(configPath)
		switch {
		case errors.Is(readError, fs.ErrNotExist):
			return "", nil
		case readError != nil:
			return "", fmt.Errorf(contextConfigReadErrorTemplateConst, configPath, readError)
		}
		var cliConfiguration dockerCLIConfiguration
		if decodeError := json.Unmarshal(configContent, &cliConfiguration); decodeError != nil {
			return "", fmt.Errorf(contextConfigReadErrorTemplateConst, configPath, decodeError)
		}
		contextName = strings.TrimSpace(cliConfiguration.CurrentContext)
	}
	if len(contextName) == 0 || contextName == defaultDockerContextNameConstant {
		return "", nil
	}

	// The context store names each metadata directory after the SHA-256 digest of the context name.
	contextDigest := sha256.Sum256([]byte(contextName))
	metaPath := filepath.Join(configDirectory, dockerContextsDirectoryConstant, dockerContextsMetaDirectoryConstant, hex.EncodeToString(contextDigest[:]), dockerContextMetaFileNameConstant)
	metaContent, readError := os.ReadFile(metaPath)
	if readError != nil {
		return "", fmt.Errorf(contextMetaReadErrorTemplateConstant, contextName, readError)
	}
	var metadata dockerContextMetadata
	if decodeError := json.Unmarshal(metaContent, &metadata); decodeError != nil {
		return "", fmt.Errorf(contextMetaReadErrorTemplateConstant, contextName, decodeError)
	}
	host := strings.TrimSpace(metadata.Endpoints[dockerEndpointNameConstant].Host)
	if len(host) == 0 {
		return "", fmt.Errorf(contextEndpointMissingTemplateConst, contextName)
	}
	return host, nil
}

func probeSupportsHost(host string) bool {
	for _, scheme := range probedHostSchemes {
		if strings.HasPrefix(host, scheme) {
			return true
		}
	}
	return false
}
