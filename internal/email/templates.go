package email

import (
	"bytes"
	"html/template"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`
<p>Welcome to DreamLog!</p>
<p>Confirm your email address to activate your journal:</p>
<p><a href="{{.ActionURL}}">Confirm email</a></p>
<p>If you did not sign up, ignore this message.</p>
`))

var passwordResetTmpl = template.Must(template.New("password_reset").Parse(`
<p>We received a request to reset your DreamLog password.</p>
<p><a href="{{.ActionURL}}">Choose a new password</a></p>
<p>The link expires in one hour. If you did not request this, ignore this message.</p>
`))

type templateData struct {
	ActionURL string
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
