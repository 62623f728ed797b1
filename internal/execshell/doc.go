// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and reports non-zero exits as CommandFailedError
// values that carry the captured standard error so callers can classify them.
package execshell
