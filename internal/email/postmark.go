// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package email

import (
	"context"

	"github.com/mrz1836/postmark"
	"github.com/samber/oops"
)

// PostmarkConfig configures the Postmark transport.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	Sender       string
	// Support receives replies.
	Support string
}

// postmarkAPI is the part of *postmark.Client the transport calls.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkTransport sends through Postmark's transactional API.
type PostmarkTransport struct {
	api postmarkAPI
	cfg PostmarkConfig
}

// NewPostmarkTransport validates cfg and creates a transport.
func NewPostmarkTransport(cfg PostmarkConfig) (*PostmarkTransport, error) {
	switch {
	case cfg.ServerToken == "":
		return nil, oops.Code("EMAIL_INVALID_CONFIG").Errorf("postmark server token is required")
	case cfg.AccountToken == "":
		return nil, oops.Code("EMAIL_INVALID_CONFIG").Errorf("postmark account token is required")
	case !validAddress(cfg.Sender):
		return nil, oops.Code("EMAIL_INVALID_CONFIG").With("sender", cfg.Sender).Errorf("sender must be a valid email address")
	case !validAddress(cfg.Support):
		return nil, oops.Code("EMAIL_INVALID_CONFIG").With("support", cfg.Support).Errorf("support must be a valid email address")
	}
	return &PostmarkTransport{
		api: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		cfg: cfg,
	}, nil
}

// Send delivers msg. Link tracking is left off since every link carries a
// single-use token.
func (p *PostmarkTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	resp, err := p.api.SendEmail(ctx, postmark.Email{
		From:       p.cfg.Sender,
		ReplyTo:    p.cfg.Support,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Text,
		TrackOpens: false,
		TrackLinks: "None",
	})
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").With("provider", "postmark").With("tag", msg.Tag).Wrap(err)
	}
	if resp.ErrorCode > 0 {
		return oops.Code("EMAIL_SEND_FAILED").
			With("provider", "postmark").
			With("tag", msg.Tag).
			With("postmark_code", resp.ErrorCode).
			Errorf("postmark rejected message: %s", resp.Message)
	}
	return nil
}

var _ Transport = (*PostmarkTransport)(nil)
