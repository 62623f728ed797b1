package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/reposync/internal/expansions"
)

const (
	// DefaultChannel receives failure alerts.
	DefaultChannel = "#sdp-triager"
	// DefaultTaskName identifies the failing task in alerts.
	DefaultTaskName = "* Copybara Sync Between Repos"
	// DefaultVersionLinkTemplate renders the run link; %s receives the version identifier.
	DefaultVersionLinkTemplate = "https://spruce.mongodb.com/version/%s"

	failureMessageTemplateConstant   = "Evergreen task '%s' failed\nFor more details: <%s|here>."
	notificationSentMessageConstant  = "Sent failure notification"
	notificationDisabledMessageConst = "Failure notification disabled; skipping"
	deliveryFailedErrorTemplateConst = "failure notification to %s not delivered: %w"
	logFieldChannelConstant          = "channel"
	logFieldVersionIDConstant        = "version_id"
)

// ErrSenderNotConfigured indicates that a notifier was constructed without a message sender.
var ErrSenderNotConfigured = errors.New("notify: message sender not configured")

// FailureNotifier alerts operators about a genuine synchronization failure.
type FailureNotifier interface {
	NotifyFailure(executionContext context.Context, runExpansions expansions.Expansions) error
}

// Settings control the alert target and wording.
type Settings struct {
	Enabled             bool
	Channel             string
	TaskName            string
	VersionLinkTemplate string
}

// DefaultSettings returns the enabled defaults.
func DefaultSettings() Settings {
	return Settings{
		Enabled:             true,
		Channel:             DefaultChannel,
		TaskName:            DefaultTaskName,
		VersionLinkTemplate: DefaultVersionLinkTemplate,
	}
}

// SlackNotifier sends exactly one message per NotifyFailure call, with no deduplication.
type SlackNotifier struct {
	logger   *zap.Logger
	sender   MessageSender
	settings Settings
}

// NewSlackNotifier constructs a notifier; blank settings fall back to DefaultSettings values.
func NewSlackNotifier(logger *zap.Logger, sender MessageSender, settings Settings) (*SlackNotifier, error) {
	if sender == nil {
		return nil, ErrSenderNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultSettings()
	if len(strings.TrimSpace(settings.Channel)) == 0 {
		settings.Channel = defaults.Channel
	}
	if len(strings.TrimSpace(settings.TaskName)) == 0 {
		settings.TaskName = defaults.TaskName
	}
	if len(strings.TrimSpace(settings.VersionLinkTemplate)) == 0 {
		settings.VersionLinkTemplate = defaults.VersionLinkTemplate
	}
	return &SlackNotifier{logger: logger, sender: sender, settings: settings}, nil
}

// ComposeFailureMessage renders the alert. An absent version identifier renders as an empty link segment.
func (notifier *SlackNotifier) ComposeFailureMessage(runExpansions expansions.Expansions) string {
	versionLink := fmt.Sprintf(notifier.settings.VersionLinkTemplate, runExpansions.VersionID())
	return fmt.Sprintf(failureMessageTemplateConstant, notifier.settings.TaskName, versionLink)
}

// NotifyFailure delivers the alert for the run described by runExpansions.
func (notifier *SlackNotifier) NotifyFailure(executionContext context.Context, runExpansions expansions.Expansions) error {
	if !notifier.settings.Enabled {
		notifier.logger.Info(notificationDisabledMessageConst, zap.String(logFieldVersionIDConstant, runExpansions.VersionID()))
		return nil
	}

	message := notifier.ComposeFailureMessage(runExpansions)
	if sendError := notifier.sender.SendSlackMessage(executionContext, notifier.settings.Channel, message); sendError != nil {
		return fmt.Errorf(deliveryFailedErrorTemplateConst, notifier.settings.Channel, sendError)
	}

	notifier.logger.Info(notificationSentMessageConstant,
		zap.String(logFieldChannelConstant, notifier.settings.Channel),
		zap.String(logFieldVersionIDConstant, runExpansions.VersionID()),
	)
	return nil
}
