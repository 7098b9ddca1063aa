package notify

import (
	"context"
	"log/slog"
)

// Dispatcher delivers account lifecycle notices to the account holder.
// Implementations decide the channel; the core only hands over the raw
// token, never a formatted message.
type Dispatcher interface {
	// VerificationNotice delivers the email verification token to a newly
	// registered account.
	VerificationNotice(ctx context.Context, email, token string) error

	// PasswordResetNotice delivers a password reset token.
	PasswordResetNotice(ctx context.Context, email, token string) error

	// WelcomeNotice is sent once an account completes verification.
	WelcomeNotice(ctx context.Context, email, firstName string) error
}

// LogDispatcher writes notices to the structured log instead of sending
// anything. It is the default when no mail transport is configured, which
// keeps local development and CI self-contained.
type LogDispatcher struct {
	Logger *slog.Logger
}

var _ Dispatcher = (*LogDispatcher)(nil)

func (d *LogDispatcher) VerificationNotice(ctx context.Context, email, token string) error {
	d.Logger.InfoContext(ctx, "verification notice",
		slog.String("email", email),
		slog.String("token", token),
	)
	return nil
}

func (d *LogDispatcher) PasswordResetNotice(ctx context.Context, email, token string) error {
	d.Logger.InfoContext(ctx, "password reset notice",
		slog.String("email", email),
		slog.String("token", token),
	)
	return nil
}

func (d *LogDispatcher) WelcomeNotice(ctx context.Context, email, firstName string) error {
	d.Logger.InfoContext(ctx, "welcome notice",
		slog.String("email", email),
		slog.String("first_name", firstName),
	)
	return nil
}
