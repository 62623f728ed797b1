package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/reposync/internal/notify"
	pathutils "github.com/temirov/reposync/internal/utils/path"
)

type recordedSlackRequest struct {
	path    string
	user    string
	apiKey  string
	payload map[string]string
}

func newSlackServer(testInstance *testing.T, statusCode int, recorded *[]recordedSlackRequest) *httptest.Server {
	testInstance.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		payload := map[string]string{}
		require.NoError(testInstance, json.NewDecoder(request.Body).Decode(&payload))
		*recorded = append(*recorded, recordedSlackRequest{
			path:    request.URL.Path,
			user:    request.Header.Get("Api-User"),
			apiKey:  request.Header.Get("Api-Key"),
			payload: payload,
		})
		responseWriter.WriteHeader(statusCode)
		_, _ = responseWriter.Write([]byte(`{"message":"done"}`))
	}))
	testInstance.Cleanup(server.Close)
	return server
}

func TestEvergreenClientSendsSlackMessage(testInstance *testing.T) {
	var recorded []recordedSlackRequest
	server := newSlackServer(testInstance, http.StatusOK, &recorded)

	client := notify.NewEvergreenClient(server.Client(), notify.EvergreenCredentials{User: "bot", APIKey: "key-123", APIServerHost: server.URL + "/api"})
	require.NoError(testInstance, client.SendSlackMessage(context.Background(), "#sdp-triager", "hello"))

	require.Len(testInstance, recorded, 1)
	require.Equal(testInstance, "/api/rest/v2/notifications/slack", recorded[0].path)
	require.Equal(testInstance, "bot", recorded[0].user)
	require.Equal(testInstance, "key-123", recorded[0].apiKey)
	require.Equal(testInstance, map[string]string{"target": "#sdp-triager", "msg": "hello"}, recorded[0].payload)
}

func TestEvergreenClientReportsRejectedMessage(testInstance *testing.T) {
	var recorded []recordedSlackRequest
	server := newSlackServer(testInstance, http.StatusUnauthorized, &recorded)

	client := notify.NewEvergreenClient(server.Client(), notify.EvergreenCredentials{User: "bot", APIKey: "wrong", APIServerHost: server.URL})
	sendError := client.SendSlackMessage(context.Background(), "#sdp-triager", "hello")
	require.Error(testInstance, sendError)
	require.Contains(testInstance, sendError.Error(), "status 401")
}

func TestLoadEvergreenCredentials(testInstance *testing.T) {
	testCases := []struct {
		name                string
		content             string
		expectedCredentials notify.EvergreenCredentials
		expectedIs          error
	}{
		{
			name:    "complete_with_host",
			content: "user: bot\napi_key: key-123\napi_server_host: https://evergreen.example.com/api/\n",
			expectedCredentials: notify.EvergreenCredentials{
				User:          "bot",
				APIKey:        "key-123",
				APIServerHost: "https://evergreen.example.com/api",
			},
		},
		{
			name:    "host_defaults",
			content: "user: bot\napi_key: key-123\n",
			expectedCredentials: notify.EvergreenCredentials{
				User:          "bot",
				APIKey:        "key-123",
				APIServerHost: notify.DefaultAPIServerHost,
			},
		},
		{
			name:       "missing_key",
			content:    "user: bot\n",
			expectedIs: notify.ErrIncompleteCredentials,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			homeDirectory := testInstance.TempDir()
			require.NoError(testInstance, os.WriteFile(filepath.Join(homeDirectory, ".evergreen.yml"), []byte(testCase.content), 0o600))
			expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return homeDirectory, nil })

			credentials, loadError := notify.LoadEvergreenCredentials("~/.evergreen.yml", expander)
			if testCase.expectedIs != nil {
				require.ErrorIs(testInstance, loadError, testCase.expectedIs)
				return
			}
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedCredentials, credentials)
		})
	}
}

func TestFileConfiguredSenderReportsMissingCredentialsFile(testInstance *testing.T) {
	sender := notify.FileConfiguredSender{ConfigurationPath: filepath.Join(testInstance.TempDir(), ".evergreen.yml")}
	sendError := sender.SendSlackMessage(context.Background(), "#sdp-triager", "hello")
	require.ErrorIs(testInstance, sendError, os.ErrNotExist)
}

func TestFileConfiguredSenderDelivers(testInstance *testing.T) {
	var recorded []recordedSlackRequest
	server := newSlackServer(testInstance, http.StatusOK, &recorded)

	configurationPath := filepath.Join(testInstance.TempDir(), ".evergreen.yml")
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte("user: bot\napi_key: key-123\napi_server_host: "+server.URL+"\n"), 0o600))

	sender := notify.FileConfiguredSender{ConfigurationPath: configurationPath, HTTPClient: server.Client()}
	require.NoError(testInstance, sender.SendSlackMessage(context.Background(), "#ops", "hello"))
	require.Len(testInstance, recorded, 1)
	require.Equal(testInstance, "/rest/v2/notifications/slack", recorded[0].path)
}
