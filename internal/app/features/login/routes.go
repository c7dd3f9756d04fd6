// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// MountRoutes registers the sign-in and email verification endpoints. The
// paths span /login and /accounts, so they are mounted on the root router.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/login", h.ServeLogin)
	r.Post("/login", h.HandleLogin)
	r.Get("/accounts/verify-email", h.ServeVerify)
	r.Post("/accounts/verify-email", h.HandleVerify)
	r.Post("/accounts/resend-verification", h.HandleResend)
}
