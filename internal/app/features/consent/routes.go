// internal/app/features/consent/routes.go
package consent

import (
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the student consent page and the teacher review
// queue.
func MountRoutes(r chi.Router, h *Handler, sm *auth.SessionManager) {
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireCapability(models.Role.IsStudent))
		pr.Get(ConsentPath, h.ServeConsent)
		pr.Post("/accounts/update-consent", h.HandleUpdate)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireCapability(models.Role.CanReviewConsent))
		pr.Get(ReviewPath, h.ServeReview)
		pr.Post("/accounts/approve-consent/{id}", h.HandleApprove)
		pr.Post("/accounts/deny-consent/{id}", h.HandleDeny)
	})

	// Reviewers and the form's owner; checked in the handler.
	r.With(sm.RequireSignedIn).Get("/accounts/consent-file/{id}", h.ServeFile)
}
