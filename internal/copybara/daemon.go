package copybara

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

const (
	// DefaultPingTimeout bounds the daemon availability check.
	DefaultPingTimeout = 5 * time.Second

	daemonReachableMessageConstant      = "Docker daemon reachable"
	logFieldAPIVersionConstant          = "api_version"
	logFieldOperatingSystemConstant     = "os_type"
	clientCreationErrorTemplateConstant = "unable to create docker client: %w"
	daemonPingErrorTemplateConstant     = "docker daemon did not respond: %w"
	unsupportedHostErrorTemplateConst   = "%w: %s"
	contextResolutionFailedMessageConst = "Unable to resolve docker CLI context; using SDK defaults"
	logFieldDockerHostConstant          = "docker_host"
	daemonProbeTargetMessageConstant    = "Docker daemon probe target"
)

// ErrDaemonUnavailable indicates that the Docker daemon could not be reached.
var ErrDaemonUnavailable = errors.New("docker daemon unavailable")

// DaemonClient is the subset of the Docker SDK client used by DaemonProbe.
type DaemonClient interface {
	Ping(executionContext context.Context) (types.Ping, error)
	Close() error
}

// DaemonProbe verifies that the Docker daemon answers before images are built or containers started.
type DaemonProbe struct {
	logger      *zap.Logger
	client      DaemonClient
	pingTimeout time.Duration
}

// NewDaemonProbe wraps an existing client.
func NewDaemonProbe(logger *zap.Logger, daemonClient DaemonClient) *DaemonProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DaemonProbe{logger: logger, client: daemonClient, pingTimeout: DefaultPingTimeout}
}

// NewEnvironmentDaemonProbe builds a probe for the daemon the docker CLI would address: DOCKER_HOST and related
// variables first, then the active CLI context under the docker config directory of homeDirectory.
// Endpoints the SDK cannot dial, such as ssh://, yield ErrProbeUnsupported.
func NewEnvironmentDaemonProbe(logger *zap.Logger, homeDirectory string) (*DaemonProbe, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientOptions := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}

	host := strings.TrimSpace(os.Getenv(dockerHostEnvironmentConstant))
	if len(host) == 0 {
		contextHost, resolveError := ResolveDaemonHost(os.Getenv, DockerConfigDirectory(os.Getenv, homeDirectory))
		if resolveError != nil {
			logger.Warn(contextResolutionFailedMessageConst, zap.Error(resolveError))
		} else if len(contextHost) > 0 {
			host = contextHost
			clientOptions = append(clientOptions, client.WithHost(contextHost))
		}
	}
	if len(host) > 0 && !probeSupportsHost(host) {
		return nil, fmt.Errorf(unsupportedHostErrorTemplateConst, ErrProbeUnsupported, host)
	}

	dockerClient, creationError := client.NewClientWithOpts(clientOptions...)
	if creationError != nil {
		return nil, errors.Join(ErrDaemonUnavailable, fmt.Errorf(clientCreationErrorTemplateConstant, creationError))
	}
	logger.Debug(daemonProbeTargetMessageConstant, zap.String(logFieldDockerHostConstant, dockerClient.DaemonHost()))
	return NewDaemonProbe(logger, dockerClient), nil
}

// Ping checks daemon availability within DefaultPingTimeout.
func (probe *DaemonProbe) Ping(executionContext context.Context) error {
	if probe.client == nil {
		return ErrDaemonUnavailable
	}
	if executionContext == nil {
		executionContext = context.Background()
	}
	pingContext, cancel := context.WithTimeout(executionContext, probe.pingTimeout)
	defer cancel()

	pingResult, pingError := probe.client.Ping(pingContext)
	if pingError != nil {
		return errors.Join(ErrDaemonUnavailable, fmt.Errorf(daemonPingErrorTemplateConstant, pingError))
	}

	probe.logger.Debug(daemonReachableMessageConstant,
		zap.String(logFieldAPIVersionConstant, pingResult.APIVersion),
		zap.String(logFieldOperatingSystemConstant, pingResult.OSType),
	)
	return nil
}

// Close releases the underlying client.
func (probe *DaemonProbe) Close() error {
	if probe.client == nil {
		return nil
	}
	return probe.client.Close()
}
