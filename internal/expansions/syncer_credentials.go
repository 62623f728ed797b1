package expansions

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	mapstructure "github.com/go-viper/mapstructure/v2"
)

const (
	// AppIDKey names the GitHub App identifier expansion.
	AppIDKey = "app_id_copybara_syncer"
	// PrivateKeyKey names the GitHub App private key expansion.
	PrivateKeyKey = "private_key_copybara_syncer"
	// InstallationIDKey names the GitHub App installation identifier expansion.
	InstallationIDKey = "installation_id_copybara_syncer"

	mapstructureTagNameConstant         = "mapstructure"
	tagOptionSeparatorConstant          = ","
	decodeCredentialsErrorTemplateConst = "unable to decode syncer credentials: %w"
)

// SyncerCredentials holds the GitHub App identity of the repository syncer.
type SyncerCredentials struct {
	AppID          string `mapstructure:"app_id_copybara_syncer" validate:"required"`
	PrivateKey     string `mapstructure:"private_key_copybara_syncer" validate:"required"`
	InstallationID string `mapstructure:"installation_id_copybara_syncer" validate:"required"`
}

var credentialsValidator = newCredentialsValidator()

func newCredentialsValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		tagName := strings.SplitN(field.Tag.Get(mapstructureTagNameConstant), tagOptionSeparatorConstant, 2)[0]
		if len(tagName) == 0 {
			return field.Name
		}
		return tagName
	})
	return validate
}

// LoadSyncerCredentials extracts the syncer identity. Absent or blank keys yield a MissingKeyError naming each of them.
func LoadSyncerCredentials(expansions Expansions) (SyncerCredentials, error) {
	var credentials SyncerCredentials
	trimmedValues := make(map[string]string, len(expansions))
	for key, value := range expansions {
		trimmedValues[key] = strings.TrimSpace(value)
	}

	if decodeError := mapstructure.Decode(trimmedValues, &credentials); decodeError != nil {
		return SyncerCredentials{}, fmt.Errorf(decodeCredentialsErrorTemplateConst, decodeError)
	}

	validationError := credentialsValidator.Struct(credentials)
	if validationError == nil {
		return credentials, nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(validationError, &fieldErrors) {
		return SyncerCredentials{}, validationError
	}

	missingKeys := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		missingKeys = append(missingKeys, fieldError.Field())
	}
	sort.Strings(missingKeys)
	return SyncerCredentials{}, MissingKeyError{Keys: missingKeys}
}
