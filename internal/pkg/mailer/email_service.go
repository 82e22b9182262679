// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendEscalationAlert(toEmail, reason, customerRef, summary string) error
}

type emailService struct {
	dialer       *gomail.Dialer
	senderEmail  string
	senderName   string
	dashboardURL string // Added to construct links
}

func NewEmailService(host string, port int, email, password, senderName string) IEmailService {
	d := gomail.NewDialer(host, port, email, password)

	// Get Dashboard URL from ENV or default to a safe placeholder
	dashboardURL := os.Getenv("DASHBOARD_URL")

	return &emailService{
		dialer:       d,
		senderEmail:  email,
		senderName:   senderName,
		dashboardURL: dashboardURL,
	}
}

func (s *emailService) SendEscalationAlert(toEmail, reason, customerRef, summary string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("A customer needs attention (%s)", reason))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Customer waiting for a human</h2>
			<p>Conversation <b>%s</b> was handed off to operators.</p>
			<p>Trigger: <b>%s</b></p>
			<blockquote style="border-left: 3px solid #007BFF; padding-left: 10px; color: #555;">%s</blockquote>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Open the dashboard</a>
			<p>Reply from your connected channel to take over the conversation.</p>
		</div>
	`, customerRef, reason, summary, s.dashboardURL)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send escalation alert to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Escalation alert sent to %s\n", toEmail)
	return nil
}
