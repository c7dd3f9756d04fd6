// internal/app/features/papers/routes.go
package papers

import (
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the catalog at /, /papers and /authors, and the
// management screens under /papers/manage.
func MountRoutes(r chi.Router, h *Handler, sm *auth.SessionManager) {
	r.Get("/", h.ServeHome)
	r.Get("/authors", h.ServeAuthors)

	r.Get("/papers", h.ServeList)
	r.Get("/papers/search", h.ServeSearch)
	r.Get("/papers/strand/{strand}", h.ServeStrand)
	r.Get("/papers/strand/{strand}/{design}", h.ServeStrand)
	r.Get("/papers/designs", h.ServeDesigns)
	r.Get("/papers/{id}", h.ServeDetail)
	// Shielded by the approval gate; checked again in the handler.
	r.Get("/papers/{id}/file", h.ServeFile)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireCapability(models.Role.CanManagePapers))

		pr.Get("/papers/authors-by-batch", h.ServeAuthorsByBatch)

		pr.Get(ManagePath, h.ServeManage)
		pr.Get(ManagePath+"/new", h.ServeNew)
		pr.Post(ManagePath+"/new", h.HandleCreate)
		pr.Get(ManagePath+"/{id}/edit", h.ServeEdit)
		pr.Post(ManagePath+"/{id}/edit", h.HandleEdit)
		pr.Post(ManagePath+"/{id}/delete", h.HandleDelete)
		pr.Post(ManagePath+"/{id}/citations", h.HandleAddCitation)

		pr.Get(ManagePath+"/reference", h.ServeReference)
		pr.Post(ManagePath+"/keywords", h.HandleAddKeyword)
		pr.Post(ManagePath+"/keywords/{id}/delete", h.HandleDeleteKeyword)
		pr.Post(ManagePath+"/awards", h.HandleAddAward)

		pr.Get(AuthorsPath, h.ServeManageAuthors)
		pr.Post(AuthorsPath, h.HandleCreateAuthor)
		pr.Get(AuthorsPath+"/{id}/edit", h.ServeEditAuthor)
		pr.Post(AuthorsPath+"/{id}/edit", h.HandleEditAuthor)
		pr.Post(AuthorsPath+"/{id}/delete", h.HandleDeleteAuthor)
	})
}
