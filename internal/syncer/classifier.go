package syncer

import (
	"errors"
	"strings"

	"github.com/temirov/reposync/internal/execshell"
)

const (
	// NoNewChangesPattern is reported when source and destination are identical.
	NoNewChangesPattern = "No new changes to import for resolved ref"
	// NoDestinationChangesPattern is reported when upstream changes are all excluded from the destination.
	NoDestinationChangesPattern = "Iterative workflow produced no changes in the destination for resolved ref"

	outcomeSucceededNameConstant      = "succeeded"
	outcomeBenignNoOpNameConstant     = "benign_no_op"
	outcomeGenuineFailureNameConstant = "genuine_failure"
	outcomeAbortedNameConstant        = "aborted"
)

// Outcome classifies the result of a migration invocation.
type Outcome int

// Migration outcomes.
const (
	OutcomeSucceeded Outcome = iota
	OutcomeBenignNoOp
	OutcomeGenuineFailure
	// OutcomeAborted marks a run that stopped before the migration was invoked.
	OutcomeAborted
)

func (outcome Outcome) String() string {
	switch outcome {
	case OutcomeSucceeded:
		return outcomeSucceededNameConstant
	case OutcomeBenignNoOp:
		return outcomeBenignNoOpNameConstant
	case OutcomeAborted:
		return outcomeAbortedNameConstant
	default:
		return outcomeGenuineFailureNameConstant
	}
}

// AcceptablePatterns is an immutable set of standard error substrings that mark a failed invocation as a no-op.
type AcceptablePatterns struct {
	patterns []string
}

// NewAcceptablePatterns copies patterns, dropping blank entries.
func NewAcceptablePatterns(patterns ...string) AcceptablePatterns {
	retained := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if len(trimmedPattern) == 0 {
			continue
		}
		retained = append(retained, trimmedPattern)
	}
	return AcceptablePatterns{patterns: retained}
}

// DefaultAcceptablePatterns returns the no-op messages emitted by the migration tool.
func DefaultAcceptablePatterns() AcceptablePatterns {
	return NewAcceptablePatterns(NoNewChangesPattern, NoDestinationChangesPattern)
}

// Patterns returns a copy of the configured substrings. The copy is never nil.
func (acceptablePatterns AcceptablePatterns) Patterns() []string {
	return append(make([]string, 0, len(acceptablePatterns.patterns)), acceptablePatterns.patterns...)
}

// Matches reports whether text contains any acceptable pattern.
func (acceptablePatterns AcceptablePatterns) Matches(text string) bool {
	for _, pattern := range acceptablePatterns.patterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

// OutcomeClassifier maps a migration invocation error to an Outcome.
type OutcomeClassifier struct {
	patterns   AcceptablePatterns
	configured bool
}

// NewOutcomeClassifier constructs a classifier over patterns. An empty set treats every failure as genuine.
func NewOutcomeClassifier(patterns AcceptablePatterns) OutcomeClassifier {
	return OutcomeClassifier{patterns: patterns, configured: true}
}

// IsZero reports whether the classifier was declared without NewOutcomeClassifier.
func (classifier OutcomeClassifier) IsZero() bool {
	return !classifier.configured
}

// Classify inspects only the captured standard error of a CommandFailedError. Any other error is a genuine failure.
func (classifier OutcomeClassifier) Classify(invocationError error) Outcome {
	if invocationError == nil {
		return OutcomeSucceeded
	}
	var commandFailure execshell.CommandFailedError
	if errors.As(invocationError, &commandFailure) && classifier.patterns.Matches(commandFailure.StandardError()) {
		return OutcomeBenignNoOp
	}
	return OutcomeGenuineFailure
}
