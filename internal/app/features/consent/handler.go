// internal/app/features/consent/handler.go
package consent

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/auditlog"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	consentsvc "github.com/dalemusser/scholarhub/internal/app/system/consent"
	"github.com/dalemusser/scholarhub/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	ConsentPath = "/accounts/consent"
	ReviewPath  = "/accounts/consents"
)

type Handler struct {
	Accounts *accountstore.Store
	Consent  *consentsvc.Service
	Sessions *auth.SessionManager
	ErrLog   *uierrors.ErrorLogger
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	AuditLog *auditlog.Logger
}

func NewHandler(accounts *accountstore.Store, svc *consentsvc.Service, sm *auth.SessionManager, errLog *uierrors.ErrorLogger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts: accounts,
		Consent:  svc,
		Sessions: sm,
		ErrLog:   errLog,
		Metrics:  m,
		Log:      logger,
	}
}

// userFacing reports whether err carries a message meant for the user
// rather than an internal failure.
func userFacing(err error) bool {
	var ce *consentsvc.Error
	return errors.As(err, &ce) ||
		errors.Is(err, consentsvc.ErrWrongState) ||
		errors.Is(err, consentsvc.ErrNotFound)
}

func accountID(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	return id, err == nil
}
