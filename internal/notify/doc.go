// Package notify delivers failure alerts for synchronization runs to a Slack channel through the Evergreen REST API.
package notify
