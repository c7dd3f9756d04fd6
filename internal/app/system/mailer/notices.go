package mailer

import (
	"strings"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	"go.uber.org/zap"
)

// Notices composes and queues the application's emails.
type Notices struct {
	Mailer   *Mailer
	SiteName string
	BaseURL  string
	Logger   *zap.Logger
}

// VerificationCode queues a verification code. The code is also logged at
// info level so it can be recovered when delivery fails.
func (n Notices) VerificationCode(to, code, expiresIn string) {
	n.Logger.Info("verification code issued", zap.String("to", to), zap.String("code", code))
	e := BuildVerificationEmail(CodeEmailData{SiteName: n.SiteName, Code: code, ExpiresIn: expiresIn})
	e.To = to
	n.Mailer.SendAsync(e)
}

// PasswordResetCode queues a password-reset code, logging it likewise.
func (n Notices) PasswordResetCode(to, code, expiresIn string) {
	n.Logger.Info("password reset code issued", zap.String("to", to), zap.String("code", code))
	e := BuildPasswordResetEmail(CodeEmailData{SiteName: n.SiteName, Code: code, ExpiresIn: expiresIn})
	e.To = to
	n.Mailer.SendAsync(e)
}

// Approved queues the account-approved email.
func (n Notices) Approved(a models.Account) {
	name := strings.TrimSpace(a.Profile.PendingFirstName)
	if name == "" {
		name = a.Email
	}
	e := BuildApprovalEmail(ApprovalEmailData{
		SiteName: n.SiteName,
		Name:     name,
		LoginURL: strings.TrimRight(n.BaseURL, "/") + "/login",
	})
	e.To = a.Email
	n.Mailer.SendAsync(e)
}
