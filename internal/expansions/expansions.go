// Package expansions loads the flat key/value file a CI run writes for its tasks and exposes typed views over it.
package expansions

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// VersionIDKey names the expansion holding the run identifier used in failure links.
	VersionIDKey = "version_id"

	readFileErrorTemplateConstant      = "unable to read expansions file %s: %w"
	parseFileErrorTemplateConstant     = "unable to parse expansions file %s: %w"
	nonScalarValueErrorTemplateConst   = "expansion %q in %s is not a scalar value"
	missingKeysErrorTemplateConstant   = "missing required expansions: %s"
	missingKeysSeparatorConstant       = ", "
	emptyExpansionFilePathErrorMessage = "expansions file path is empty"
)

// ErrConfigurationMissing identifies absent required configuration.
var ErrConfigurationMissing = errors.New("required configuration missing")

// ErrEmptyFilePath indicates that no expansions file was named.
var ErrEmptyFilePath = fmt.Errorf("%w: %s", ErrConfigurationMissing, emptyExpansionFilePathErrorMessage)

// MissingKeyError lists every required expansion absent from a run.
type MissingKeyError struct {
	Keys []string
}

func (missingError MissingKeyError) Error() string {
	return fmt.Sprintf(missingKeysErrorTemplateConstant, strings.Join(missingError.Keys, missingKeysSeparatorConstant))
}

// Unwrap exposes ErrConfigurationMissing.
func (missingError MissingKeyError) Unwrap() error {
	return ErrConfigurationMissing
}

// Expansions maps expansion keys to their scalar values.
type Expansions map[string]string

// Lookup returns the value for key and whether it was present.
func (expansions Expansions) Lookup(key string) (string, bool) {
	value, exists := expansions[key]
	return value, exists
}

// Value returns the value for key or an empty string.
func (expansions Expansions) Value(key string) string {
	return expansions[key]
}

// VersionID returns the run identifier, or an empty string when absent.
func (expansions Expansions) VersionID() string {
	return strings.TrimSpace(expansions[VersionIDKey])
}

// Require returns the values for keys or a MissingKeyError naming every absent or blank key.
func (expansions Expansions) Require(keys ...string) (map[string]string, error) {
	resolved := make(map[string]string, len(keys))
	missingKeys := make([]string, 0)
	for _, key := range keys {
		value, exists := expansions[key]
		if !exists || len(strings.TrimSpace(value)) == 0 {
			missingKeys = append(missingKeys, key)
			continue
		}
		resolved[key] = value
	}
	if len(missingKeys) > 0 {
		sort.Strings(missingKeys)
		return nil, MissingKeyError{Keys: missingKeys}
	}
	return resolved, nil
}

// LoadFile reads a YAML mapping of scalar values. Scalars keep their literal text so identifiers such as 0123 survive intact.
func LoadFile(filePath string) (Expansions, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return nil, ErrEmptyFilePath
	}

	content, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return nil, fmt.Errorf(readFileErrorTemplateConstant, trimmedPath, readError)
	}

	return Parse(trimmedPath, content)
}

// Parse decodes expansions from YAML content; source only labels errors.
func Parse(source string, content []byte) (Expansions, error) {
	var rawValues map[string]yaml.Node
	if unmarshalError := yaml.Unmarshal(content, &rawValues); unmarshalError != nil {
		return nil, fmt.Errorf(parseFileErrorTemplateConstant, source, unmarshalError)
	}

	parsed := make(Expansions, len(rawValues))
	for key, node := range rawValues {
		switch {
		case node.Kind == yaml.ScalarNode && node.Tag == "!!null":
			parsed[key] = ""
		case node.Kind == yaml.ScalarNode:
			parsed[key] = node.Value
		default:
			return nil, fmt.Errorf(nonScalarValueErrorTemplateConst, key, source)
		}
	}
	return parsed, nil
}
