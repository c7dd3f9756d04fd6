// internal/app/features/users/handler.go
package users

import (
	"net/http"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	"github.com/dalemusser/scholarhub/internal/app/system/auditlog"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	"github.com/dalemusser/scholarhub/internal/app/system/consent"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ListPath is the user management list.
const ListPath = "/users"

// Handler serves the admin user management screens.
type Handler struct {
	Accounts *accountstore.Store
	Authors  *authorstore.Store
	Consent  *consent.Service
	Catalog  *catalog.Service
	Sessions *auth.SessionManager
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
	AuditLog *auditlog.Logger
}

func NewHandler(accounts *accountstore.Store, authors *authorstore.Store, cs *consent.Service, cat *catalog.Service,
	sm *auth.SessionManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts: accounts,
		Authors:  authors,
		Consent:  cs,
		Catalog:  cat,
		Sessions: sm,
		ErrLog:   errLog,
		Log:      logger,
	}
}

func accountID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	return id, err == nil
}

// isSelf reports whether id is the signed-in admin.
func isSelf(r *http.Request, id primitive.ObjectID) bool {
	u, ok := auth.CurrentUser(r)
	return ok && u.ID == id.Hex()
}

type option struct {
	Value    string
	Label    string
	Selected bool
}
