// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify delivers account lifecycle notifications.

Two transports implement [auth.Notifier]:
  - [LogNotifier]: writes the message and its action link to the structured log.
    Used in development and wherever no mail pipeline is attached.
  - [KafkaNotifier]: publishes one event per notification so a downstream mailer
    can render and send it.
*/
package notify

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
)

// Frontend routes that consume the ephemeral tokens.
const (
	VerifyEmailPath   = "/verify-email"
	ResetPasswordPath = "/reset-password"
)

// ActionLink builds the frontend URL that carries token to the given path.
func ActionLink(frontendURL, path, token string) string {
	return strings.TrimRight(frontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// # Log Notifier

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	logger      *slog.Logger
	frontendURL string
}

// NewLogNotifier creates a notifier that logs the links it would have mailed.
func NewLogNotifier(logger *slog.Logger, frontendURL string) *LogNotifier {
	return &LogNotifier{logger: logger, frontendURL: frontendURL}
}

func (notifier *LogNotifier) log(ctx context.Context, event, email, name string, attrs ...slog.Attr) {
	logger := notifier.logger
	if logger == nil {
		logger = ctxutil.GetLogger(ctx)
	}

	attrs = append([]slog.Attr{
		slog.String("email", email),
		slog.String("name", name),
	}, attrs...)

	logger.LogAttrs(ctx, slog.LevelInfo, event, attrs...)
}

// SendVerification logs the email verification link.
func (notifier *LogNotifier) SendVerification(ctx context.Context, email, token, name string) error {
	notifier.log(ctx, "notify_verification", email, name,
		slog.String("link", ActionLink(notifier.frontendURL, VerifyEmailPath, token)))
	return nil
}

// SendPasswordReset logs the password reset link.
func (notifier *LogNotifier) SendPasswordReset(ctx context.Context, email, token, name string) error {
	notifier.log(ctx, "notify_password_reset", email, name,
		slog.String("link", ActionLink(notifier.frontendURL, ResetPasswordPath, token)))
	return nil
}

// SendWelcome logs the welcome message.
func (notifier *LogNotifier) SendWelcome(ctx context.Context, email, name string) error {
	notifier.log(ctx, "notify_welcome", email, name)
	return nil
}

// SendPasswordChanged logs the password change confirmation.
func (notifier *LogNotifier) SendPasswordChanged(ctx context.Context, email, name string) error {
	notifier.log(ctx, "notify_password_changed", email, name)
	return nil
}
