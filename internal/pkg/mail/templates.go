package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Welcome, {{.Username}}!</h2>
  <p>Thanks for creating an account at {{.AppName}}. Please confirm your email address to activate it.</p>
  <p><a href="{{.Link}}" style="display:inline-block;padding:10px 20px;background:#2563eb;color:#fff;text-decoration:none;border-radius:4px;">Verify my account</a></p>
  <p>If the button does not work, copy this link into your browser:</p>
  <p>{{.Link}}</p>
  <p>If you did not create this account you can ignore this email.</p>
</body>
</html>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Your account is active</h2>
  <p>Hi {{.Username}}, your {{.AppName}} account has been verified. You can now sign in and start shopping.</p>
  <p><a href="{{.Link}}">Go to the store</a></p>
</body>
</html>`))

var passwordResetTmpl = template.Must(template.New("reset").Parse(`<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Password reset requested</h2>
  <p>Hi {{.Username}}, we received a request to reset the password for your {{.AppName}} account.</p>
  <p><a href="{{.Link}}" style="display:inline-block;padding:10px 20px;background:#2563eb;color:#fff;text-decoration:none;border-radius:4px;">Reset my password</a></p>
  <p>The link is valid until you change your password or request a new one.</p>
  <p>If you did not request this, no action is needed; your password is unchanged.</p>
</body>
</html>`))

type templateData struct {
	AppName  string
	Username string
	Link     string
}

func render(tmpl *template.Template, data templateData) string {
	var buf bytes.Buffer
	// Templates are static and parsed at init; execution cannot fail.
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

// NewAccountVerificationMessage builds the email sent after registration.
// The token travels as a query parameter back to the frontend, which posts
// it to the verify endpoint.
func NewAccountVerificationMessage(appName, frontendHost, username, email, token string) Message {
	link := fmt.Sprintf("%s/auth/account-verify?token=%s&email=%s",
		frontendHost, url.QueryEscape(token), url.QueryEscape(email))
	return Message{
		To:      []string{email},
		Subject: fmt.Sprintf("Verify your %s account", appName),
		HTML:    render(verificationTmpl, templateData{AppName: appName, Username: username, Link: link}),
	}
}

// NewWelcomeMessage builds the email sent once an account is verified.
func NewWelcomeMessage(appName, frontendHost, username, email string) Message {
	return Message{
		To:      []string{email},
		Subject: fmt.Sprintf("Welcome to %s", appName),
		HTML:    render(welcomeTmpl, templateData{AppName: appName, Username: username, Link: frontendHost}),
	}
}

// NewPasswordResetMessage builds the email carrying a password reset link.
func NewPasswordResetMessage(appName, frontendHost, username, email, token string) Message {
	link := fmt.Sprintf("%s/reset-password?token=%s&email=%s",
		frontendHost, url.QueryEscape(token), url.QueryEscape(email))
	return Message{
		To:      []string{email},
		Subject: fmt.Sprintf("Reset your %s password", appName),
		HTML:    render(passwordResetTmpl, templateData{AppName: appName, Username: username, Link: link}),
	}
}
