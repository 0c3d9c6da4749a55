package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection
// via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendHighPriorityLeadEmail(ctx context.Context, toEmail string, data HighPriorityLeadData) error {
	content, err := renderEmailTemplate("high_priority_lead.html", highPriorityLeadEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectHighPriorityLead,
			Heading:  "High-priority donation lead",
			CTALabel: "Open lead",
			CTAURL:   data.LeadURL,
		},
		LeadTitle: data.LeadTitle,
		Company:   data.Company,
		Priority:  data.Priority,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectHighPriorityLead, content)
}

func (s *SMTPSender) SendFollowUpReminderEmail(ctx context.Context, toEmail string, data FollowUpReminderData) error {
	content, err := renderEmailTemplate("follow_up_reminder.html", followUpReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectFollowUpReminder,
			Heading:  "Follow-up due",
			CTALabel: "Open lead",
			CTAURL:   data.LeadURL,
		},
		LeadTitle: data.LeadTitle,
		Company:   data.Company,
		Reason:    data.Reason,
		DueDate:   data.DueDate,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectFollowUpReminder, content)
}
