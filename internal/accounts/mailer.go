// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package accounts

import (
	"context"
	"log/slog"
)

// Mailer delivers account mail.
type Mailer interface {
	SendVerification(ctx context.Context, email, username, token string) error
}

// LogMailer writes verification mails to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) SendVerification(_ context.Context, email, username, token string) error {
	slog.Info("verification mail", "to", email, "username", username, "token", token)
	return nil
}
