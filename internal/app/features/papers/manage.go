// internal/app/features/papers/manage.go
package papers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/navigation"
	"github.com/dalemusser/scholarhub/internal/app/system/objectstore"
	"github.com/dalemusser/scholarhub/internal/app/system/paging"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type manageRow struct {
	ID         string
	Title      string
	GradeLevel int
	Strand     string
	Design     string
	SchoolYear string
	Authors    int
	Citations  int64
	HasFile    bool
}

type manageData struct {
	viewdata.BaseVM
	Search string
	Rows   []manageRow
	Total  int64
	Pager  paging.Pager

	ReturnURL string
}

// ServeManage handles GET /papers/manage.
func (h *Handler) ServeManage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	search := strings.TrimSpace(query.Get(r, "q"))
	pg := paging.New(paging.ParsePage(r), paging.ManagePageSize)
	found, total, err := h.Papers.Search(ctx, paperstore.SearchFilter{
		Query: search,
		Sort:  paperstore.SortNewest,
		Skip:  pg.Skip(),
		Limit: pg.Limit(),
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list papers failed", err, "A database error occurred.", "/dashboard")
		return
	}

	data := manageData{
		BaseVM: viewdata.NewBaseVM(r, "Manage papers", "/dashboard"),
		Search: search,
		Total:  total,
		Pager:  pg.WithTotal(total).Pager(r),

		ReturnURL: r.URL.RequestURI(),
	}
	for _, p := range found {
		n, err := h.Citations.CountForPaper(ctx, p.ID)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "count citations failed", err, "A database error occurred.", "/dashboard")
			return
		}
		data.Rows = append(data.Rows, manageRow{
			ID:         p.ID.Hex(),
			Title:      p.Title,
			GradeLevel: p.GradeLevel,
			Strand:     string(p.Strand),
			Design:     p.ResearchDesign.Label(),
			SchoolYear: p.SchoolYear,
			Authors:    len(p.AuthorIDs),
			Citations:  n,
			HasFile:    p.FilePath != "",
		})
	}
	templates.Render(w, r, "papers_manage", data)
}

// HandleDelete handles POST /papers/manage/{id}/delete. The paper's
// citations, profile links and stored file go with it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	back := navigation.SafeBackURL(r, navigation.ManagePapersBackURL)
	id, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "Paper not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, err := h.Papers.Delete(ctx, id)
	if errors.Is(err, paperstore.ErrNotFound) {
		h.Sessions.AddFlash(w, r, auth.FlashInfo, "That paper was already deleted.")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete paper failed", err, "Could not delete the paper.", ManagePath)
		return
	}

	if err := h.Citations.DeleteForPaper(ctx, id); err != nil {
		h.Log.Warn("failed to delete citations of removed paper", zap.String("paper_id", id.Hex()), zap.Error(err))
	}
	if err := h.Accounts.UnlinkPaper(ctx, id); err != nil {
		h.Log.Warn("failed to unlink removed paper from profiles", zap.String("paper_id", id.Hex()), zap.Error(err))
	}
	h.removeFile(ctx, id.Hex(), p.FilePath)
	h.Catalog.PapersChanged(ctx)

	h.Log.Info("paper deleted", zap.String("paper_id", id.Hex()), zap.String("title", p.Title))
	h.AuditLog.PaperDeleted(ctx, r, id, p.Title)
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Deleted “"+p.Title+"”.")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// removeFile deletes a stored PDF that no paper points at any more.
func (h *Handler) removeFile(ctx context.Context, paperID, key string) {
	if err := objectstore.Remove(ctx, h.Files, key); err != nil {
		h.Log.Warn("failed to delete paper file",
			zap.String("paper_id", paperID),
			zap.String("key", key),
			zap.Error(err))
	}
}
