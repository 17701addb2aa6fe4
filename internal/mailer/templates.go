package mailer

import (
	"bytes"
	"html/template"
	"net/url"
)

var (
	verificationTmpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html><body>
<p>Hi {{.Username}},</p>
<p>Confirm your email address to finish setting up your TalentBridge account.</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>This link expires on {{.Expires}}.</p>
</body></html>`))

	resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html><body>
<p>Hi {{.Username}},</p>
<p>We received a request to reset your password. If it was not you, ignore this email.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>This link expires on {{.Expires}}.</p>
</body></html>`))
)

type linkData struct {
	Username string
	Link     string
	Expires  string
}

// Link builds base+path?token=<escaped token>.
func Link(base, path, token string) string {
	return base + path + "?token=" + url.QueryEscape(token)
}

// VerificationEmail renders the email sent at signup and on reissue.
func VerificationEmail(to, username, link, expires string) (Message, error) {
	return render(verificationTmpl, to, "Verify your email", linkData{username, link, expires})
}

// PasswordResetEmail renders the forgot-password email.
func PasswordResetEmail(to, username, link, expires string) (Message, error) {
	return render(resetTmpl, to, "Reset your password", linkData{username, link, expires})
}

func render(t *template.Template, to, subject string, data linkData) (Message, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: b.String()}, nil
}
