// internal/app/features/terms/handler.go
package terms

import (
	"net/http"

	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		Log: logger,
	}
}

func (h *Handler) ServeTerms(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "terms", viewdata.NewBaseVM(r, "Terms of Use", "/"))
}
