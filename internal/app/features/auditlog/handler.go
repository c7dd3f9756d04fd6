// internal/app/features/auditlog/handler.go
package auditlog

import (
	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Handler serves the admin audit trail.
type Handler struct {
	Events   *audit.Store
	Accounts *accountstore.Store
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs an Audit Log feature handler.
func NewHandler(events *audit.Store, accounts *accountstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events:   events,
		Accounts: accounts,
		ErrLog:   errLog,
		Log:      logger,
	}
}
