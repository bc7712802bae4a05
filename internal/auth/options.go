// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"log/slog"
	"time"
)

type settings struct {
	logger *slog.Logger
	now    func() time.Time
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option customizes SessionManager and CredentialService.
type Option func(*settings)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Pass the same clock to the token
// codec so both agree on expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
