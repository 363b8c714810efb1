// Package email delivers notification emails over SMTP.
package email

import (
	"context"

	"followup_backend/platform/config"
)

// Message is the content of one notification email.
type Message struct {
	Subject  string
	Heading  string
	Body     string
	Details  []Detail
	CTALabel string
	CTAURL   string
}

// Detail is a labelled line rendered under the body.
type Detail struct {
	Label string
	Value string
}

// Sender sends notification emails.
type Sender interface {
	SendNotificationEmail(ctx context.Context, toEmail string, msg Message) error
}

// NoopSender drops every email. It is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendNotificationEmail(ctx context.Context, toEmail string, msg Message) error {
	return nil
}

// NewSender returns an SMTP sender, or a NoopSender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}
