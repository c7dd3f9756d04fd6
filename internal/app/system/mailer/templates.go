package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// Email kinds, used for logging and metrics.
const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
	KindApproval      = "approval"
)

// CodeEmailData holds data for the verification and password-reset emails.
type CodeEmailData struct {
	SiteName  string
	Code      string
	ExpiresIn string // e.g., "15 minutes"
	Heading   string
	Intro     string
}

// BuildVerificationEmail creates the registration/sign-in code email.
func BuildVerificationEmail(data CodeEmailData) Email {
	data.Heading = "Verify your email"
	data.Intro = "Use this code to verify your email address:"
	return Email{
		Kind:     KindVerification,
		Subject:  fmt.Sprintf("Your %s verification code", data.SiteName),
		TextBody: buildCodeText(data),
		HTMLBody: render(codeHTML, data),
	}
}

// BuildPasswordResetEmail creates the password-reset code email.
func BuildPasswordResetEmail(data CodeEmailData) Email {
	data.Heading = "Reset your password"
	data.Intro = "Use this code to confirm your new password:"
	return Email{
		Kind:     KindPasswordReset,
		Subject:  fmt.Sprintf("Your %s password reset code", data.SiteName),
		TextBody: buildCodeText(data),
		HTMLBody: render(codeHTML, data),
	}
}

func buildCodeText(data CodeEmailData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n\n", data.Intro)
	fmt.Fprintf(&buf, "    %s\n\n", data.Code)
	fmt.Fprintf(&buf, "This code expires in %s.\n\n", data.ExpiresIn)
	buf.WriteString("If you did not request this code, you can safely ignore this email.\n")
	return buf.String()
}

// ApprovalEmailData holds data for the account-approved email.
type ApprovalEmailData struct {
	SiteName string
	Name     string
	LoginURL string
}

// BuildApprovalEmail tells a member their account is active.
func BuildApprovalEmail(data ApprovalEmailData) Email {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hello %s,\n\n", data.Name)
	fmt.Fprintf(&buf, "Your %s account has been approved. You can now sign in:\n", data.SiteName)
	buf.WriteString(data.LoginURL + "\n")
	return Email{
		Kind:     KindApproval,
		Subject:  fmt.Sprintf("Your %s account has been approved", data.SiteName),
		TextBody: buf.String(),
		HTMLBody: render(approvalHTML, data),
	}
}

var (
	codeHTML     = template.Must(template.New("code").Parse(codeHTMLTemplate))
	approvalHTML = template.Must(template.New("approval").Parse(approvalHTMLTemplate))
)

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.String()
}

const codeHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Heading}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #065f46;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <h2 style="margin: 0 0 16px; font-size: 18px; color: #111827;">{{.Heading}}</h2>
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151;">{{.Intro}}</p>
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 24px; text-align: center; margin-bottom: 24px;">
                <span style="font-size: 32px; font-weight: 700; letter-spacing: 8px; color: #1f2937; font-family: 'Courier New', monospace;">{{.Code}}</span>
              </div>
              <p style="margin: 0; font-size: 13px; color: #9ca3af; text-align: center;">This code expires in {{.ExpiresIn}}.</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                If you did not request this code, you can safely ignore this email.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`

const approvalHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Account approved</title></head>
<body style="margin: 0; padding: 24px; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <div style="max-width: 480px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; padding: 32px;">
    <h1 style="margin: 0 0 16px; font-size: 22px; color: #065f46;">{{.SiteName}}</h1>
    <p style="font-size: 16px; color: #374151;">Hello {{.Name}},</p>
    <p style="font-size: 16px; color: #374151;">Your account has been approved. You now have full access to the repository.</p>
    <p style="text-align: center; margin-top: 24px;">
      <a href="{{.LoginURL}}" style="display: inline-block; padding: 12px 28px; background-color: #065f46; color: #ffffff; text-decoration: none; border-radius: 6px;">Sign In</a>
    </p>
  </div>
</body>
</html>`
