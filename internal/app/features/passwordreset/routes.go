// internal/app/features/passwordreset/routes.go
package passwordreset

import "github.com/go-chi/chi/v5"

// MountRoutes registers the password reset steps under /accounts.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get(ForgotPath, h.ServeForgot)
	r.Post(ForgotPath, h.HandleForgot)
	r.Get(VerifyPath, h.ServeVerify)
	r.Post(VerifyPath, h.HandleVerify)
	r.Post(ResendPath, h.HandleResend)
}
