// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses the ConfigurationLoader and LoggerFactory abstractions that
// integrate Viper, environment variables, and zap logging for the CLI. Loggers
// built by the factory mask URL-embedded credentials, and FlushingWriter does
// the same for clone progress output.
package utils
