// internal/app/features/papers/detail.go
package papers

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/authz"
	"github.com/dalemusser/scholarhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/scholarhub/internal/app/system/objectstore"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, msg string) {
	uierrors.RenderNotFound(w, r, msg, "/papers")
}

type citationRow struct {
	Source  string
	PaperID string
	Date    string
	Notes   string
}

type detailData struct {
	viewdata.BaseVM
	ID          string
	Title       string
	Abstract    template.HTML
	GradeLevel  int
	Strand      string
	Design      string
	SchoolYear  string
	Published   string
	Authors     []string
	Keywords    []template.HTML
	Awards      []string
	Citations   []citationRow
	HasFile     bool
	CanDownload bool
	CanManage   bool
}

// ServeDetail handles GET /papers/{id}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "Paper not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, err := h.Papers.GetByID(ctx, id)
	if errors.Is(err, paperstore.ErrNotFound) {
		h.notFound(w, r, "Paper not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load paper failed", err, "A database error occurred.", "/papers")
		return
	}

	data, err := h.detail(ctx, r, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "build paper detail failed", err, "A database error occurred.", "/papers")
		return
	}
	templates.Render(w, r, "paper_detail", data)
}

func (h *Handler) detail(ctx context.Context, r *http.Request, p models.Paper) (detailData, error) {
	data := detailData{
		BaseVM:     viewdata.NewBaseVM(r, p.Title, "/papers"),
		ID:         p.ID.Hex(),
		Title:      p.Title,
		Abstract:   htmlsanitize.PrepareForDisplay(p.Abstract),
		GradeLevel: p.GradeLevel,
		Strand:     string(p.Strand),
		Design:     p.ResearchDesign.Label(),
		SchoolYear: p.SchoolYear,
		HasFile:    p.FilePath != "",
		CanManage:  authz.Can(r, models.Role.CanManagePapers),
	}
	if !p.PublicationDate.IsZero() {
		data.Published = p.PublicationDate.Format("January 2, 2006")
	}
	if u, ok := auth.CurrentUser(r); ok && u.MayEnter() {
		data.CanDownload = data.HasFile
	}

	authors, err := h.Catalog.OrderedAuthors(ctx, p)
	if err != nil {
		return data, err
	}
	if data.Authors, err = h.Catalog.PublicNames(ctx, authors); err != nil {
		return data, err
	}

	keywords, err := h.Keywords.ListByIDs(ctx, p.KeywordIDs)
	if err != nil {
		return data, err
	}
	for _, k := range keywords {
		data.Keywords = append(data.Keywords, htmlsanitize.KeywordHTML(k.Word))
	}

	awards, err := h.Awards.ListByIDs(ctx, p.AwardIDs)
	if err != nil {
		return data, err
	}
	for _, a := range awards {
		data.Awards = append(data.Awards, a.Name)
	}

	cites, err := h.Citations.ListForPaper(ctx, p.ID)
	if err != nil {
		return data, err
	}
	var citing []primitive.ObjectID
	for _, c := range cites {
		if c.Internal() {
			citing = append(citing, *c.CitedByPaperID)
		}
	}
	titles := map[primitive.ObjectID]string{}
	if len(citing) > 0 {
		found, _, err := h.Papers.Search(ctx, paperstore.SearchFilter{IDs: citing})
		if err != nil {
			return data, err
		}
		for _, cp := range found {
			titles[cp.ID] = cp.Title
		}
	}
	for _, c := range cites {
		row := citationRow{Source: c.CitedByExternal, Date: c.CitationDate.Format("Jan 2, 2006"), Notes: c.Notes}
		if c.Internal() {
			row.PaperID = c.CitedByPaperID.Hex()
			row.Source = titles[*c.CitedByPaperID]
			if row.Source == "" {
				row.Source = "A removed paper"
				row.PaperID = ""
			}
		}
		data.Citations = append(data.Citations, row)
	}
	return data, nil
}

// ServeFile handles GET /papers/{id}/file. Only approved members, teachers
// and admins may download papers.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok || !u.MayEnter() {
		uierrors.RenderNoAccess(w, r)
		return
	}
	id, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "Paper not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, err := h.Papers.GetByID(ctx, id)
	if errors.Is(err, paperstore.ErrNotFound) || (err == nil && p.FilePath == "") {
		h.notFound(w, r, "This paper has no file.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load paper failed", err, "A database error occurred.", "/papers")
		return
	}

	rc, err := h.Files.Get(ctx, p.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		h.Log.Warn("paper file missing from storage", zap.String("paper_id", id.Hex()), zap.String("key", p.FilePath))
		h.notFound(w, r, "This paper's file is unavailable.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "open paper file failed", err, "Could not open the file.", "/papers/"+id.Hex())
		return
	}
	defer rc.Close()

	name := p.FileName
	if name == "" {
		name = p.Title + ".pdf"
	}
	if err := objectstore.WritePDF(w, rc, name); err != nil {
		h.Log.Warn("paper download interrupted", zap.String("paper_id", id.Hex()), zap.Error(err))
	}
}
