package email

// Provider sends transactional mail. The SMTP implementation is the only
// real one; tests and local development use the mock in internal/app.
type Provider interface {
	Send(to, subject, htmlBody string) error
	SendVerification(to, token string) error
	SendPasswordReset(to, token string) error
}
