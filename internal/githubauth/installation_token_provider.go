package githubauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const (
	// DefaultAPIBaseURL is the public GitHub REST endpoint.
	DefaultAPIBaseURL = "https://api.github.com"
	// DefaultRequestTimeout bounds a single token exchange.
	DefaultRequestTimeout = 30 * time.Second

	installationTokenPathTemplateConstant = "%s/app/installations/%s/access_tokens"
	acceptHeaderNameConstant              = "Accept"
	acceptHeaderValueConstant             = "application/vnd.github+json"
	authorizationHeaderNameConstant       = "Authorization"
	bearerAuthorizationPrefixConstant     = "Bearer "
	apiVersionHeaderNameConstant          = "X-GitHub-Api-Version"
	apiVersionHeaderValueConstant         = "2022-11-28"
	assertionBackdateConstant             = 60 * time.Second
	assertionLifetimeConstant             = 9 * time.Minute
	maximumErrorBodyBytesConstant         = 512
	tokenExchangeStartedMessageConstant   = "Requesting installation access token"
	tokenExchangeSucceededMessageConstant = "Installation access token issued"
	tokenExchangeFailedMessageConstant    = "Installation access token unavailable"
	logFieldAppIDConstant                 = "app_id"
	logFieldInstallationIDConstant        = "installation_id"
	logFieldTokenExpiryConstant           = "expires_at"
)

// HTTPClient is the subset of *http.Client used for the token exchange.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// TokenProvider exchanges application credentials for an installation access token.
type TokenProvider interface {
	AccessToken(executionContext context.Context, credentials AppCredentials) (AccessToken, error)
}

// InstallationTokenProvider signs an application assertion and exchanges it for an installation access token.
// Each call performs exactly one exchange; tokens are never cached.
type InstallationTokenProvider struct {
	logger     *zap.Logger
	httpClient HTTPClient
	apiBaseURL string
	clock      func() time.Time
}

type installationTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewInstallationTokenProvider constructs a provider. A nil client uses an http.Client with DefaultRequestTimeout and an empty base URL uses DefaultAPIBaseURL.
func NewInstallationTokenProvider(logger *zap.Logger, httpClient HTTPClient, apiBaseURL string) (*InstallationTokenProvider, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	normalizedBaseURL := strings.TrimRight(strings.TrimSpace(apiBaseURL), "/")
	if len(normalizedBaseURL) == 0 {
		normalizedBaseURL = DefaultAPIBaseURL
	}
	return &InstallationTokenProvider{
		logger:     logger,
		httpClient: httpClient,
		apiBaseURL: normalizedBaseURL,
		clock:      time.Now,
	}, nil
}

// WithClock returns a copy of the provider that stamps assertions using clock.
func (provider *InstallationTokenProvider) WithClock(clock func() time.Time) *InstallationTokenProvider {
	duplicated := *provider
	if clock != nil {
		duplicated.clock = clock
	}
	return &duplicated
}

// AccessToken performs a single exchange. Any failure yields a zero AccessToken and a CredentialExchangeError matching ErrTokenUnavailable.
func (provider *InstallationTokenProvider) AccessToken(executionContext context.Context, credentials AppCredentials) (AccessToken, error) {
	installationID := strings.TrimSpace(credentials.InstallationID)
	provider.logger.Debug(tokenExchangeStartedMessageConstant,
		zap.String(logFieldAppIDConstant, strings.TrimSpace(credentials.AppID)),
		zap.String(logFieldInstallationIDConstant, installationID),
	)

	token, exchangeError := provider.exchange(executionContext, credentials)
	if exchangeError != nil {
		wrappedError := CredentialExchangeError{InstallationID: installationID, Cause: exchangeError}
		provider.logger.Warn(tokenExchangeFailedMessageConstant,
			zap.String(logFieldInstallationIDConstant, installationID),
			zap.Error(exchangeError),
		)
		return AccessToken{}, wrappedError
	}

	provider.logger.Info(tokenExchangeSucceededMessageConstant,
		zap.String(logFieldInstallationIDConstant, installationID),
		zap.Time(logFieldTokenExpiryConstant, token.ExpiresAt()),
	)
	return token, nil
}

func (provider *InstallationTokenProvider) exchange(executionContext context.Context, credentials AppCredentials) (AccessToken, error) {
	if validationError := credentials.Validate(); validationError != nil {
		return AccessToken{}, validationError
	}

	signedAssertion, signingError := provider.signAssertion(credentials)
	if signingError != nil {
		return AccessToken{}, signingError
	}

	if executionContext == nil {
		executionContext = context.Background()
	}

	requestURL := fmt.Sprintf(installationTokenPathTemplateConstant, provider.apiBaseURL, url.PathEscape(strings.TrimSpace(credentials.InstallationID)))
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodPost, requestURL, bytes.NewReader(nil))
	if requestError != nil {
		return AccessToken{}, fmt.Errorf(requestConstructionErrorTemplateConstant, requestError)
	}
	request.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	request.Header.Set(authorizationHeaderNameConstant, bearerAuthorizationPrefixConstant+signedAssertion)
	request.Header.Set(apiVersionHeaderNameConstant, apiVersionHeaderValueConstant)

	response, responseError := provider.httpClient.Do(request)
	if responseError != nil {
		return AccessToken{}, fmt.Errorf(requestExecutionErrorTemplateConstant, responseError)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated {
		errorBody, _ := io.ReadAll(io.LimitReader(response.Body, maximumErrorBodyBytesConstant))
		return AccessToken{}, UnexpectedStatusError{StatusCode: response.StatusCode, Body: strings.TrimSpace(string(errorBody))}
	}

	var decodedResponse installationTokenResponse
	if decodeError := json.NewDecoder(response.Body).Decode(&decodedResponse); decodeError != nil {
		return AccessToken{}, fmt.Errorf(responseDecodingErrorTemplateConstant, decodeError)
	}

	if len(strings.TrimSpace(decodedResponse.Token)) == 0 {
		return AccessToken{}, ErrEmptyToken
	}

	return NewAccessToken(decodedResponse.Token, decodedResponse.ExpiresAt), nil
}

func (provider *InstallationTokenProvider) signAssertion(credentials AppCredentials) (string, error) {
	privateKey, parseError := jwt.ParseRSAPrivateKeyFromPEM(credentials.privateKeyPEM())
	if parseError != nil {
		return "", fmt.Errorf(privateKeyParseErrorTemplateConstant, parseError)
	}

	issuedAt := provider.clock().Add(-assertionBackdateConstant)
	claims := jwt.RegisteredClaims{
		Issuer:    strings.TrimSpace(credentials.AppID),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(assertionBackdateConstant + assertionLifetimeConstant)),
	}

	signedAssertion, signingError := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if signingError != nil {
		return "", fmt.Errorf(assertionSigningErrorTemplateConstant, signingError)
	}
	return signedAssertion, nil
}
