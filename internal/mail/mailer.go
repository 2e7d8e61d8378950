// Package mail sends billing notices over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Mailer struct {
	cfg       Config
	templates map[string]*template.Template
	send      func(m *gomail.Message) error
}

func NewMailer(cfg Config) (*Mailer, error) {
	m := &Mailer{cfg: cfg, templates: make(map[string]*template.Template)}

	for name, body := range map[string]string{
		"payment_failed":        paymentFailedTemplate,
		"subscription_canceled": subscriptionCanceledTemplate,
	} {
		tmpl, err := template.New(name).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		m.templates[name] = tmpl
	}

	m.send = m.dialAndSend
	return m, nil
}

func (m *Mailer) SendPaymentFailed(ctx context.Context, to, name string) error {
	body, err := m.render("payment_failed", map[string]any{"Name": name})
	if err != nil {
		return err
	}
	return m.deliver(ctx, to, "Action required: your EcoStep payment failed", body)
}

func (m *Mailer) SendSubscriptionCanceled(ctx context.Context, to, name string) error {
	body, err := m.render("subscription_canceled", map[string]any{"Name": name})
	if err != nil {
		return err
	}
	return m.deliver(ctx, to, "Your EcoStep Premium subscription has ended", body)
}

func (m *Mailer) render(name string, data any) (string, error) {
	tmpl, ok := m.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func (m *Mailer) deliver(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.send(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// dialAndSend uses STARTTLS on 587 and implicit TLS on 465.
func (m *Mailer) dialAndSend(msg *gomail.Message) error {
	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	d.SSL = m.cfg.Port == 465
	d.TLSConfig = &tls.Config{ServerName: m.cfg.Host}
	return d.DialAndSend(msg)
}

const paymentFailedTemplate = `
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #E65100;">We couldn't process your payment</h2>
        <p>Hi {{.Name}},</p>
        <p>Your latest EcoStep Premium payment did not go through. Please update your payment method to keep your premium challenges.</p>
        <p style="color: #999; font-size: 12px;">This is an automated email, please do not reply.</p>
    </div>
</body>
</html>
`

const subscriptionCanceledTemplate = `
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2E7D32;">Thanks for being Premium</h2>
        <p>Hi {{.Name}},</p>
        <p>Your EcoStep Premium subscription has ended. Your progress, points and badges stay with you, and you can upgrade again at any time.</p>
        <p style="color: #999; font-size: 12px;">This is an automated email, please do not reply.</p>
    </div>
</body>
</html>
`
