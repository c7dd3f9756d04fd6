// internal/app/features/dashboard/student.go
package dashboard

import (
	"context"
	"errors"
	"net/http"

	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	"github.com/dalemusser/scholarhub/internal/app/system/names"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type studentData struct {
	viewdata.BaseVM
	AuthorName   string
	PublicName   string
	HasIdentity  bool
	Papers       []catalog.Card
	ConsentLabel string
	Consented    bool
}

// ServeStudent shows the papers linked to the student's author identity
// and how their name currently appears on them.
func (h *Handler) ServeStudent(w http.ResponseWriter, r *http.Request, u *auth.SessionUser) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	consent := u.ConsentStatus.Normalize()
	data := studentData{
		BaseVM:       viewdata.NewBaseVM(r, "My research", "/"),
		ConsentLabel: consent.Label(),
		Consented:    consent == models.ConsentConsented,
	}

	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		templates.Render(w, r, "student_dashboard", data)
		return
	}
	author, err := h.Authors.GetByAccount(ctx, id)
	if errors.Is(err, authorstore.ErrNotFound) {
		templates.Render(w, r, "student_dashboard", data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load author identity failed", err, "A database error occurred.", "/")
		return
	}

	data.HasIdentity = true
	data.AuthorName = names.Full(author)
	data.PublicName = names.Public(author, consent)

	papers, err := h.Papers.ListByAuthor(ctx, author.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list my papers failed", err, "A database error occurred.", "/")
		return
	}
	if data.Papers, err = h.Catalog.Cards(ctx, papers); err != nil {
		h.ErrLog.LogServerError(w, r, "build paper cards failed", err, "A database error occurred.", "/")
		return
	}
	templates.Render(w, r, "student_dashboard", data)
}
