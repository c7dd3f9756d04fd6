// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Visitor is the pseudo-role reported for anonymous requests.
const Visitor models.Role = "visitor"

// UserCtx returns the user's role, name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// Visitor, "", NilObjectID, false, so ok=true always means a valid,
// authenticated user.
func UserCtx(r *http.Request) (role models.Role, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return Visitor, "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session; fail closed.
		return Visitor, "", primitive.NilObjectID, false
	}
	return user.Role, user.Name, userID, true
}

// Can reports whether the signed-in user's role satisfies capability.
func Can(r *http.Request, capability func(models.Role) bool) bool {
	role, _, _, ok := UserCtx(r)
	return ok && capability(role)
}

func IsAdmin(r *http.Request) bool { return Can(r, models.Role.CanManageUsers) }

func CanManagePapers(r *http.Request) bool { return Can(r, models.Role.CanManagePapers) }

func CanReviewConsent(r *http.Request) bool { return Can(r, models.Role.CanReviewConsent) }

// MayReadPDFs reports whether the user may download stored PDFs: admins
// always, everyone else once approved.
func MayReadPDFs(r *http.Request) bool {
	u, ok := auth.CurrentUser(r)
	return ok && u.MayEnter()
}
