// Package cli constructs the reposync command-line interface, wiring the
// Cobra command hierarchy, the configuration loader and structured logging.
package cli
