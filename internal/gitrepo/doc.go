// Package gitrepo parses repository remote locations, renders credentialed
// HTTPS remotes and masks credentials embedded in URLs.
package gitrepo
