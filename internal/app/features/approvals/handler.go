// internal/app/features/approvals/handler.go
package approvals

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/approval"
	"github.com/dalemusser/scholarhub/internal/app/system/auditlog"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	"github.com/dalemusser/scholarhub/internal/app/system/consent"
	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ListPath is the approval queue.
const ListPath = "/accounts/pending-accounts"

type Handler struct {
	Accounts *accountstore.Store
	Approval *approval.Service
	Consent  *consent.Service
	Sessions *auth.SessionManager
	ErrLog   *uierrors.ErrorLogger
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	AuditLog *auditlog.Logger

	// Catalog, when set, has its cached batch author lists dropped after
	// an approval touches an author record.
	Catalog *catalog.Service
}

func NewHandler(accounts *accountstore.Store, svc *approval.Service, cs *consent.Service, sm *auth.SessionManager, errLog *uierrors.ErrorLogger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts: accounts,
		Approval: svc,
		Consent:  cs,
		Sessions: sm,
		ErrLog:   errLog,
		Metrics:  m,
		Log:      logger,
	}
}

func accountID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	return id, err == nil
}

const conflictMsg = "An author with this name is already linked to another account. " +
	"Correct the name with Edit & Approve, or resolve the author record first."

// approvalFailed renders the error page for a failed approval. It returns
// false when err is nil.
func (h *Handler) approvalFailed(w http.ResponseWriter, r *http.Request, id primitive.ObjectID, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, approval.ErrNotFound):
		uierrors.RenderNotFound(w, r, "That account no longer exists.", ListPath)
	case errors.Is(err, approval.ErrAlreadyApproved):
		h.Sessions.AddFlash(w, r, auth.FlashInfo, "That account was already approved.")
		http.Redirect(w, r, ListPath, http.StatusSeeOther)
	case errors.Is(err, approval.ErrIdentityConflict):
		h.Log.Warn("approval blocked by identity conflict", zap.String("account_id", id.Hex()))
		uierrors.RenderConflict(w, r, conflictMsg, "/accounts/approve-edit/"+id.Hex())
	default:
		h.ErrLog.LogServerError(w, r, "approve account failed", err, "Could not approve the account.", ListPath)
	}
	return true
}

func (h *Handler) approved(w http.ResponseWriter, r *http.Request, res approval.Result) {
	h.Metrics.Approved(res.Resolution.String())
	h.AuditLog.AccountApproved(r.Context(), r, res.Account.ID, res.Account.Email, res.Resolution.String())
	if res.Author != nil && h.Catalog != nil {
		h.Catalog.AuthorsChanged(r.Context())
	}
	msg := accountstore.DisplayName(res.Account) + " approved."
	if res.Author != nil {
		switch res.Resolution {
		case approval.Claimed:
			msg += " Linked to the existing author record."
		case approval.Created:
			msg += " A new author record was created."
		}
	}
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, msg)
	http.Redirect(w, r, ListPath, http.StatusSeeOther)
}
