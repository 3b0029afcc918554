package email

import (
	"fmt"

	"dreamlog_backend/internal/config"

	"gopkg.in/gomail.v2"
)

type SMTPProvider struct {
	cfg *config.Config
}

func NewSMTPProvider(cfg *config.Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.cfg.Email.FromEmail, p.cfg.Email.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(
		p.cfg.Email.SMTPHost,
		p.cfg.Email.SMTPPort,
		p.cfg.Email.SMTPUsername,
		p.cfg.Email.SMTPPassword,
	)
	return d.DialAndSend(m)
}

func (p *SMTPProvider) SendVerification(to, token string) error {
	body, err := render(verificationTmpl, templateData{
		ActionURL: fmt.Sprintf("%s/verify?token=%s", p.cfg.App.PublicURL, token),
	})
	if err != nil {
		return err
	}
	return p.Send(to, "Confirm your DreamLog email", body)
}

func (p *SMTPProvider) SendPasswordReset(to, token string) error {
	body, err := render(passwordResetTmpl, templateData{
		ActionURL: fmt.Sprintf("%s/reset-password?token=%s", p.cfg.App.PublicURL, token),
	})
	if err != nil {
		return err
	}
	return p.Send(to, "Reset your DreamLog password", body)
}
