package notifications

import (
	"context"

	"github.com/learnsphere/learnsphere-backend/pkg/db/models"
	pkgerrors "github.com/learnsphere/learnsphere-backend/pkg/errors"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
	"github.com/learnsphere/learnsphere-backend/pkg/mailer"
)

// Channel performs the medium-specific delivery of a processed notification.
// A nil recipient means lookup found nobody; channels decide whether that
// degrades or skips delivery.
type Channel interface {
	Deliver(ctx context.Context, recipient *models.User, intent Intent) error
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// EmailChannel delivers through SMTP. Subject and HTML body are escaped; the
// plain-text alternative carries the message verbatim.
type EmailChannel struct {
	sender mailSender
	logg   *logger.Logger
}

// NewEmailChannel wires the email adapter.
func NewEmailChannel(sender mailSender, logg *logger.Logger) (*EmailChannel, error) {
	if sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mail sender required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &EmailChannel{sender: sender, logg: logg}, nil
}

// Deliver sends the email, or skips silently when the recipient has no
// address. The skip is deliberate degraded behavior, not a failure: the
// record already exists and a retry could never succeed.
func (c *EmailChannel) Deliver(ctx context.Context, recipient *models.User, intent Intent) error {
	if recipient == nil || recipient.Email == nil || *recipient.Email == "" {
		c.logg.Warn(logCtxWithUser(ctx, c.logg, intent.UserID), "email dispatch skipped, recipient has no address")
		return nil
	}

	msg := mailer.Message{
		To:      *recipient.Email,
		Subject: escapeHTML(intent.Subject()),
		Text:    intent.Message,
		HTML:    "<p>" + escapeHTML(intent.Message) + "</p>",
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		return err
	}
	c.logg.Info(logCtxWithUser(ctx, c.logg, intent.UserID), "email dispatched")
	return nil
}

// LogChannel is the extension point for media without a transport yet. The
// dispatch is recorded in the log and acknowledged as delivered.
type LogChannel struct {
	medium string
	logg   *logger.Logger
}

// NewLogChannel builds a logging no-op channel for the named medium.
func NewLogChannel(medium string, logg *logger.Logger) (*LogChannel, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &LogChannel{medium: medium, logg: logg}, nil
}

func (c *LogChannel) Deliver(ctx context.Context, recipient *models.User, intent Intent) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"medium":  c.medium,
		"user_id": intent.UserID,
	})
	c.logg.Info(logCtx, "notification queued for dispatch")
	return nil
}

func logCtxWithUser(ctx context.Context, logg *logger.Logger, userID string) context.Context {
	return logg.WithUserID(ctx, userID)
}
