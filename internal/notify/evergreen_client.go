package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pathutils "github.com/temirov/reposync/internal/utils/path"
)

const (
	// DefaultEvergreenConfigurationPath is the credentials file read when none is configured.
	DefaultEvergreenConfigurationPath = ".evergreen.yml"
	// DefaultAPIServerHost is used when the credentials file omits api_server_host.
	DefaultAPIServerHost = "https://evergreen.mongodb.com/api"
	// DefaultRequestTimeout bounds a single notification request.
	DefaultRequestTimeout = 30 * time.Second

	slackNotificationPathConstant         = "/rest/v2/notifications/slack"
	apiUserHeaderNameConstant             = "Api-User"
	apiKeyHeaderNameConstant              = "Api-Key"
	contentTypeHeaderNameConstant         = "Content-Type"
	jsonContentTypeConstant               = "application/json"
	maximumErrorBodyBytesConstant         = 512
	readCredentialsErrorTemplateConstant  = "unable to read evergreen credentials %s: %w"
	parseCredentialsErrorTemplateConstant = "unable to parse evergreen credentials %s: %w"
	incompleteCredentialsTemplateConstant = "evergreen credentials %s lack user or api_key"
	encodeMessageErrorTemplateConstant    = "unable to encode slack message: %w"
	buildRequestErrorTemplateConstant     = "unable to build slack notification request: %w"
	sendRequestErrorTemplateConstant      = "slack notification request failed: %w"
	unexpectedStatusErrorTemplateConstant = "slack notification rejected with status %d: %s"
)

// ErrIncompleteCredentials indicates that the Evergreen credentials file lacks a user or key.
var ErrIncompleteCredentials = errors.New("incomplete evergreen credentials")

// HTTPClient is the subset of *http.Client used by EvergreenClient.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// MessageSender delivers a message to a Slack target.
type MessageSender interface {
	SendSlackMessage(executionContext context.Context, target string, message string) error
}

// EvergreenCredentials mirrors the fields of an Evergreen CLI configuration file.
type EvergreenCredentials struct {
	User          string `yaml:"user"`
	APIKey        string `yaml:"api_key"`
	APIServerHost string `yaml:"api_server_host"`
}

// LoadEvergreenCredentials reads an Evergreen CLI configuration file; "~/" prefixes are expanded.
func LoadEvergreenCredentials(configurationPath string, homeExpander *pathutils.HomeExpander) (EvergreenCredentials, error) {
	if len(strings.TrimSpace(configurationPath)) == 0 {
		configurationPath = DefaultEvergreenConfigurationPath
	}
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}
	resolvedPath, resolutionError := homeExpander.ResolveHomePath(strings.TrimSpace(configurationPath))
	if resolutionError != nil {
		return EvergreenCredentials{}, fmt.Errorf(readCredentialsErrorTemplateConstant, configurationPath, resolutionError)
	}

	content, readError := os.ReadFile(resolvedPath)
	if readError != nil {
		return EvergreenCredentials{}, fmt.Errorf(readCredentialsErrorTemplateConstant, resolvedPath, readError)
	}

	var credentials EvergreenCredentials
	if unmarshalError := yaml.Unmarshal(content, &credentials); unmarshalError != nil {
		return EvergreenCredentials{}, fmt.Errorf(parseCredentialsErrorTemplateConstant, resolvedPath, unmarshalError)
	}

	credentials.User = strings.TrimSpace(credentials.User)
	credentials.APIKey = strings.TrimSpace(credentials.APIKey)
	credentials.APIServerHost = strings.TrimRight(strings.TrimSpace(credentials.APIServerHost), "/")
	if len(credentials.User) == 0 || len(credentials.APIKey) == 0 {
		return EvergreenCredentials{}, fmt.Errorf("%w: "+incompleteCredentialsTemplateConstant, ErrIncompleteCredentials, resolvedPath)
	}
	if len(credentials.APIServerHost) == 0 {
		credentials.APIServerHost = DefaultAPIServerHost
	}
	return credentials, nil
}

// EvergreenClient posts Slack notifications through the Evergreen REST API.
type EvergreenClient struct {
	httpClient  HTTPClient
	credentials EvergreenCredentials
}

type slackMessageRequest struct {
	Target  string `json:"target"`
	Message string `json:"msg"`
}

// NewEvergreenClient constructs a client. A nil httpClient uses an http.Client with DefaultRequestTimeout.
func NewEvergreenClient(httpClient HTTPClient, credentials EvergreenCredentials) *EvergreenClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if len(credentials.APIServerHost) == 0 {
		credentials.APIServerHost = DefaultAPIServerHost
	}
	return &EvergreenClient{httpClient: httpClient, credentials: credentials}
}

// SendSlackMessage performs a single POST of the message to target.
func (client *EvergreenClient) SendSlackMessage(executionContext context.Context, target string, message string) error {
	if executionContext == nil {
		executionContext = context.Background()
	}

	payload, encodeError := json.Marshal(slackMessageRequest{Target: target, Message: message})
	if encodeError != nil {
		return fmt.Errorf(encodeMessageErrorTemplateConstant, encodeError)
	}

	request, requestError := http.NewRequestWithContext(executionContext, http.MethodPost, client.credentials.APIServerHost+slackNotificationPathConstant, bytes.NewReader(payload))
	if requestError != nil {
		return fmt.Errorf(buildRequestErrorTemplateConstant, requestError)
	}
	request.Header.Set(contentTypeHeaderNameConstant, jsonContentTypeConstant)
	request.Header.Set(apiUserHeaderNameConstant, client.credentials.User)
	request.Header.Set(apiKeyHeaderNameConstant, client.credentials.APIKey)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return fmt.Errorf(sendRequestErrorTemplateConstant, responseError)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		errorBody, _ := io.ReadAll(io.LimitReader(response.Body, maximumErrorBodyBytesConstant))
		return fmt.Errorf(unexpectedStatusErrorTemplateConstant, response.StatusCode, strings.TrimSpace(string(errorBody)))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

// FileConfiguredSender reads Evergreen credentials when a message is sent, so a missing credentials file only affects notification delivery.
type FileConfiguredSender struct {
	ConfigurationPath string
	HTTPClient        HTTPClient
	HomeExpander      *pathutils.HomeExpander
}

// SendSlackMessage loads credentials and delegates to an EvergreenClient.
func (sender FileConfiguredSender) SendSlackMessage(executionContext context.Context, target string, message string) error {
	credentials, loadError := LoadEvergreenCredentials(sender.ConfigurationPath, sender.HomeExpander)
	if loadError != nil {
		return loadError
	}
	return NewEvergreenClient(sender.HTTPClient, credentials).SendSlackMessage(executionContext, target, message)
}
