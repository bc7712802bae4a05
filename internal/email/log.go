// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package email

import (
	"context"
	"log/slog"
)

// LogTransport writes a line per message instead of sending it. Bodies are
// never logged since they carry tokens.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a LogTransport. A nil logger uses slog.Default.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

// Send logs msg's envelope.
func (l *LogTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "email not sent, log transport",
		"to", msg.To,
		"subject", msg.Subject,
		"tag", msg.Tag)
	return nil
}

var _ Transport = (*LogTransport)(nil)
