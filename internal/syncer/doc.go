// Package syncer orchestrates one repository synchronization run.
//
// A run loads the CI expansions, prepares the migration tool, exchanges the
// GitHub App identity for an installation token, writes the bot git identity
// and launches the migration container. A failed migration whose standard
// error matches a known no-op message is treated as success; any other
// failure is reported to operators exactly once and returned to the caller.
package syncer
