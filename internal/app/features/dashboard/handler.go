// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	"github.com/dalemusser/scholarhub/internal/app/system/gates"
	"go.uber.org/zap"
)

type Handler struct {
	Accounts *accountstore.Store
	Authors  *authorstore.Store
	Papers   *paperstore.Store
	Catalog  *catalog.Service
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(cat *catalog.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts: cat.Accounts,
		Authors:  cat.Authors,
		Papers:   cat.Papers,
		Catalog:  cat,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// ServeDashboard handles GET /dashboard and dispatches on role. Unapproved
// accounts are sent to the pending page.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if !u.MayEnter() {
		http.Redirect(w, r, gates.PendingPath, http.StatusSeeOther)
		return
	}

	switch {
	case u.Role.CanManageUsers():
		h.ServeAdmin(w, r)
	case u.Role.IsTeacher():
		h.ServeTeacher(w, r)
	default:
		h.ServeStudent(w, r, u)
	}
}
