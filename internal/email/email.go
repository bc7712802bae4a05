// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package email renders and delivers account emails. It implements
// auth.EmailSender on top of a pluggable Transport.
package email

import (
	"context"
	"net/mail"

	"github.com/samber/oops"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	// Tag groups messages in provider analytics, e.g. "verify-email".
	Tag  string
	HTML string
	Text string
}

// Transport delivers a rendered Message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Validate checks that msg can be handed to a transport.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return oops.Code("EMAIL_INVALID_RECIPIENT").Wrap(err)
	}
	if m.Subject == "" {
		return oops.Code("EMAIL_INVALID_MESSAGE").Errorf("subject is required")
	}
	if m.HTML == "" && m.Text == "" {
		return oops.Code("EMAIL_INVALID_MESSAGE").Errorf("body is required")
	}
	return nil
}

func validAddress(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}
