// internal/app/features/papers/handler.go
package papers

import (
	"net/http"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	awardstore "github.com/dalemusser/scholarhub/internal/app/store/awards"
	citationstore "github.com/dalemusser/scholarhub/internal/app/store/citations"
	keywordstore "github.com/dalemusser/scholarhub/internal/app/store/keywords"
	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/app/system/auditlog"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ManagePath is the paper management list.
const ManagePath = "/papers/manage"

// MaxFileSize caps a paper PDF upload.
const MaxFileSize = 25 << 20

// Handler serves the public catalog and the paper management screens.
type Handler struct {
	Catalog   *catalog.Service
	Papers    *paperstore.Store
	Authors   *authorstore.Store
	Accounts  *accountstore.Store
	Keywords  *keywordstore.Store
	Awards    *awardstore.Store
	Citations *citationstore.Store
	Files     storage.Store
	Sessions  *auth.SessionManager
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
	AuditLog  *auditlog.Logger
}

func NewHandler(cat *catalog.Service, citations *citationstore.Store, files storage.Store,
	sm *auth.SessionManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Catalog:   cat,
		Papers:    cat.Papers,
		Authors:   cat.Authors,
		Accounts:  cat.Accounts,
		Keywords:  cat.Keywords,
		Awards:    cat.Awards,
		Citations: citations,
		Files:     files,
		Sessions:  sm,
		ErrLog:    errLog,
		Log:       logger,
	}
}

func urlID(r *http.Request, key string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, key))
	return id, err == nil
}

type option struct {
	Value    string
	Label    string
	Selected bool
}
