// Package copybara prepares and invokes the containerized migration tool.
//
// It keeps a working copy of the tool's sources, checks that the Docker daemon
// answers, rebuilds the tool image and assembles the authenticated container
// invocation that replays upstream commits into the destination repository.
package copybara
