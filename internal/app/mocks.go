package app

// MockEmailProvider is used for tests and local development without SMTP.
type MockEmailProvider struct{}

func (m *MockEmailProvider) Send(to, subject, htmlBody string) error  { return nil }
func (m *MockEmailProvider) SendVerification(to, token string) error  { return nil }
func (m *MockEmailProvider) SendPasswordReset(to, token string) error { return nil }
