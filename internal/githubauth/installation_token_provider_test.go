package githubauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/reposync/internal/githubauth"
)

const (
	testAppIDConstant              = "123456"
	testInstallationIDConstant     = "987654"
	testIssuedTokenConstant        = "ghs_issuedinstallationtoken"
	testExpectedPathConstant       = "/app/installations/987654/access_tokens"
	testSuccessfulResponseConstant = `{"token":"ghs_issuedinstallationtoken","expires_at":"2026-10-17T12:00:00Z"}`
)

type tokenTestFixture struct {
	privateKey    *rsa.PrivateKey
	privateKeyPEM string
}

func newTokenTestFixture(testInstance *testing.T) tokenTestFixture {
	testInstance.Helper()
	privateKey, generationError := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(testInstance, generationError)
	encodedKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	return tokenTestFixture{privateKey: privateKey, privateKeyPEM: string(encodedKey)}
}

func (fixture tokenTestFixture) credentials() githubauth.AppCredentials {
	return githubauth.AppCredentials{
		AppID:          testAppIDConstant,
		PrivateKey:     fixture.privateKeyPEM,
		InstallationID: testInstallationIDConstant,
	}
}

func TestInstallationTokenProviderIssuesToken(testInstance *testing.T) {
	fixture := newTokenTestFixture(testInstance)
	fixedNow := time.Now()

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, http.MethodPost, request.Method)
		require.Equal(testInstance, testExpectedPathConstant, request.URL.Path)
		require.Equal(testInstance, "application/vnd.github+json", request.Header.Get("Accept"))

		authorization := request.Header.Get("Authorization")
		require.True(testInstance, strings.HasPrefix(authorization, "Bearer "))

		parsedClaims := &jwt.RegisteredClaims{}
		parsedToken, parseError := jwt.ParseWithClaims(strings.TrimPrefix(authorization, "Bearer "), parsedClaims, func(token *jwt.Token) (any, error) {
			require.Equal(testInstance, jwt.SigningMethodRS256.Alg(), token.Method.Alg())
			return &fixture.privateKey.PublicKey, nil
		})
		require.NoError(testInstance, parseError)
		require.True(testInstance, parsedToken.Valid)
		require.Equal(testInstance, testAppIDConstant, parsedClaims.Issuer)
		require.Equal(testInstance, fixedNow.Add(-60*time.Second).Unix(), parsedClaims.IssuedAt.Unix())
		require.Equal(testInstance, fixedNow.Add(9*time.Minute).Unix(), parsedClaims.ExpiresAt.Unix())

		responseWriter.WriteHeader(http.StatusCreated)
		_, _ = responseWriter.Write([]byte(testSuccessfulResponseConstant))
	}))
	defer server.Close()

	observerCore, observerLogs := observer.New(zap.DebugLevel)
	provider, creationError := githubauth.NewInstallationTokenProvider(zap.New(observerCore), server.Client(), server.URL+"/")
	require.NoError(testInstance, creationError)

	accessToken, tokenError := provider.WithClock(func() time.Time { return fixedNow }).AccessToken(context.Background(), fixture.credentials())
	require.NoError(testInstance, tokenError)
	require.False(testInstance, accessToken.IsZero())
	require.Equal(testInstance, testIssuedTokenConstant, accessToken.Value())
	require.Equal(testInstance, time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC), accessToken.ExpiresAt().UTC())

	for _, entry := range observerLogs.All() {
		require.NotContains(testInstance, entry.Message, testIssuedTokenConstant)
		for _, field := range entry.Context {
			require.NotContains(testInstance, field.String, testIssuedTokenConstant)
		}
	}
}

func TestInstallationTokenProviderAcceptsFlattenedPrivateKey(testInstance *testing.T) {
	fixture := newTokenTestFixture(testInstance)
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusCreated)
		_, _ = responseWriter.Write([]byte(testSuccessfulResponseConstant))
	}))
	defer server.Close()

	provider, creationError := githubauth.NewInstallationTokenProvider(zap.NewNop(), server.Client(), server.URL)
	require.NoError(testInstance, creationError)

	credentials := fixture.credentials()
	credentials.PrivateKey = strings.ReplaceAll(strings.TrimSpace(fixture.privateKeyPEM), "\n", `\n`)

	accessToken, tokenError := provider.AccessToken(context.Background(), credentials)
	require.NoError(testInstance, tokenError)
	require.Equal(testInstance, testIssuedTokenConstant, accessToken.Value())
}

func TestInstallationTokenProviderReportsAbsence(testInstance *testing.T) {
	fixture := newTokenTestFixture(testInstance)

	testCases := []struct {
		name           string
		statusCode     int
		responseBody   string
		mutate         func(credentials *githubauth.AppCredentials)
		expectedCause  error
		expectedDetail string
	}{
		{
			name:          "empty_token",
			statusCode:    http.StatusCreated,
			responseBody:  `{"token":"","expires_at":"2026-10-17T12:00:00Z"}`,
			expectedCause: githubauth.ErrEmptyToken,
		},
		{
			name:          "missing_token_field",
			statusCode:    http.StatusCreated,
			responseBody:  `{}`,
			expectedCause: githubauth.ErrEmptyToken,
		},
		{
			name:           "rejected_exchange",
			statusCode:     http.StatusUnauthorized,
			responseBody:   `{"message":"A JSON web token could not be decoded"}`,
			expectedDetail: "status 401",
		},
		{
			name:           "malformed_response",
			statusCode:     http.StatusCreated,
			responseBody:   `{"token":`,
			expectedDetail: "decode token response",
		},
		{
			name:           "invalid_private_key",
			statusCode:     http.StatusCreated,
			responseBody:   testSuccessfulResponseConstant,
			mutate:         func(credentials *githubauth.AppCredentials) { credentials.PrivateKey = "not a key" },
			expectedDetail: "invalid application private key",
		},
		{
			name:           "missing_identifiers",
			statusCode:     http.StatusCreated,
			responseBody:   testSuccessfulResponseConstant,
			mutate:         func(credentials *githubauth.AppCredentials) { credentials.AppID = ""; credentials.InstallationID = " " },
			expectedDetail: "app id, installation id",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			requestCount := 0
			server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
				requestCount++
				responseWriter.WriteHeader(testCase.statusCode)
				_, _ = fmt.Fprint(responseWriter, testCase.responseBody)
			}))
			defer server.Close()

			observerCore, observerLogs := observer.New(zap.DebugLevel)
			provider, creationError := githubauth.NewInstallationTokenProvider(zap.New(observerCore), server.Client(), server.URL)
			require.NoError(testInstance, creationError)

			credentials := fixture.credentials()
			if testCase.mutate != nil {
				testCase.mutate(&credentials)
			}

			accessToken, tokenError := provider.AccessToken(context.Background(), credentials)
			require.True(testInstance, accessToken.IsZero())
			require.Empty(testInstance, accessToken.Value())
			require.ErrorIs(testInstance, tokenError, githubauth.ErrTokenUnavailable)

			var exchangeError githubauth.CredentialExchangeError
			require.ErrorAs(testInstance, tokenError, &exchangeError)
			if testCase.expectedCause != nil {
				require.ErrorIs(testInstance, tokenError, testCase.expectedCause)
			}
			if len(testCase.expectedDetail) > 0 {
				require.Contains(testInstance, tokenError.Error(), testCase.expectedDetail)
			}
			require.NotContains(testInstance, tokenError.Error(), "PRIVATE KEY")
			require.LessOrEqual(testInstance, requestCount, 1)
			require.Len(testInstance, observerLogs.FilterLevelExact(zap.WarnLevel).All(), 1)
		})
	}
}

func TestInstallationTokenProviderReportsNetworkFailure(testInstance *testing.T) {
	fixture := newTokenTestFixture(testInstance)
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	unreachableURL := server.URL
	server.Close()

	provider, creationError := githubauth.NewInstallationTokenProvider(zap.NewNop(), nil, unreachableURL)
	require.NoError(testInstance, creationError)

	accessToken, tokenError := provider.AccessToken(context.Background(), fixture.credentials())
	require.True(testInstance, accessToken.IsZero())
	require.ErrorIs(testInstance, tokenError, githubauth.ErrTokenUnavailable)
	require.Contains(testInstance, tokenError.Error(), "token request failed")
}

func TestAccessTokenFormattingNeverRevealsValue(testInstance *testing.T) {
	accessToken := githubauth.NewAccessToken(testIssuedTokenConstant, time.Time{})
	require.Equal(testInstance, "***", accessToken.String())
	require.NotContains(testInstance, fmt.Sprintf("%v %s %#v", accessToken, accessToken, accessToken), testIssuedTokenConstant)
	require.Equal(testInstance, "<absent>", githubauth.AccessToken{}.String())
}

func TestNewInstallationTokenProviderRequiresLogger(testInstance *testing.T) {
	_, creationError := githubauth.NewInstallationTokenProvider(nil, nil, "")
	require.ErrorIs(testInstance, creationError, githubauth.ErrLoggerNotConfigured)
}
