// Package email sends transactional email for the donation portal.
package email

import (
	"context"

	"donation_portal_backend/platform/config"
)

// Sender delivers notification emails. Implementations render the shared
// HTML templates and differ only in transport.
type Sender interface {
	SendHighPriorityLeadEmail(ctx context.Context, toEmail string, data HighPriorityLeadData) error
	SendFollowUpReminderEmail(ctx context.Context, toEmail string, data FollowUpReminderData) error
}

// HighPriorityLeadData carries the fields rendered into the high-priority
// lead alert.
type HighPriorityLeadData struct {
	LeadTitle string
	Company   string
	Priority  int
	LeadURL   string
}

// FollowUpReminderData carries the fields rendered into the follow-up
// reminder.
type FollowUpReminderData struct {
	LeadTitle string
	Company   string
	Reason    string
	DueDate   string
	LeadURL   string
}

// NewSender returns the configured sender, or a no-op sender when email
// delivery is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NopSender{}, nil
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

// NopSender drops all email. Used in development and in environments
// without SMTP credentials.
type NopSender struct{}

func (NopSender) SendHighPriorityLeadEmail(context.Context, string, HighPriorityLeadData) error {
	return nil
}

func (NopSender) SendFollowUpReminderEmail(context.Context, string, FollowUpReminderData) error {
	return nil
}
