// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package email

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"net/url"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/samber/oops"

	"github.com/fellowhub/fellowhub/internal/auth"
)

//go:embed templates/*
var templatesFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/*.txt"))
)

// SenderConfig configures link generation.
type SenderConfig struct {
	// BaseURL is the public web origin links point at, e.g. https://fellowhub.example.
	BaseURL         string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Sender renders account emails and hands them to a Transport.
type Sender struct {
	transport Transport
	base      *url.URL
	cfg       SenderConfig
}

// NewSender creates a Sender.
func NewSender(transport Transport, cfg SenderConfig) (*Sender, error) {
	if transport == nil {
		return nil, oops.Code("EMAIL_INVALID_CONFIG").Errorf("transport is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.Code("EMAIL_INVALID_CONFIG").With("base_url", cfg.BaseURL).Errorf("base URL must be absolute")
	}
	return &Sender{transport: transport, base: base, cfg: cfg}, nil
}

type templateData struct {
	Name      string
	Link      string
	ExpiresIn string
}

// SendVerificationEmail sends the link that confirms the user's address.
func (s *Sender) SendVerificationEmail(ctx context.Context, user *auth.User, token string) error {
	return s.send(ctx, user, "verify_email", "Confirm your FellowHub email", "/verify-email", token, s.cfg.VerificationTTL)
}

// SendPasswordResetEmail sends the single-use password reset link.
func (s *Sender) SendPasswordResetEmail(ctx context.Context, user *auth.User, token string) error {
	return s.send(ctx, user, "reset_password", "Reset your FellowHub password", "/reset-password", token, s.cfg.ResetTTL)
}

func (s *Sender) send(ctx context.Context, user *auth.User, name, subject, path, token string, ttl time.Duration) error {
	link := *s.base
	link.Path += path
	link.RawQuery = url.Values{"uid": {user.IDString()}, "token": {token}}.Encode()

	data := templateData{
		Name:      user.Name,
		Link:      link.String(),
		ExpiresIn: humanDuration(ttl),
	}

	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return oops.Code("EMAIL_RENDER_FAILED").With("template", name).Wrap(err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return oops.Code("EMAIL_RENDER_FAILED").With("template", name).Wrap(err)
	}

	return s.transport.Send(ctx, Message{
		To:      user.Email,
		Subject: subject,
		Tag:     strings.ReplaceAll(name, "_", "-"),
		HTML:    html.String(),
		Text:    text.String(),
	})
}

// humanDuration formats whole hours or minutes, e.g. "48 hours".
func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

var _ auth.EmailSender = (*Sender)(nil)
