// internal/app/features/register/routes.go
package register

import "github.com/go-chi/chi/v5"

// Routes serves the sign-up form. Mounted at /accounts/register.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeRegister)
	r.Post("/", h.HandleRegister)
	return r
}
