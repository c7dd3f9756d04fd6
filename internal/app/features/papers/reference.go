// internal/app/features/papers/reference.go
package papers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	citationstore "github.com/dalemusser/scholarhub/internal/app/store/citations"
	keywordstore "github.com/dalemusser/scholarhub/internal/app/store/keywords"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const referencePath = ManagePath + "/reference"

type keywordRow struct {
	ID   string
	Word template.HTML
}

type referenceData struct {
	viewdata.BaseVM
	Keywords []keywordRow
	Awards   []string
}

// ServeReference handles GET /papers/manage/reference: the keyword and award
// vocabularies.
func (h *Handler) ServeReference(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	keywords, err := h.Keywords.List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list keywords failed", err, "A database error occurred.", ManagePath)
		return
	}
	awards, err := h.Awards.List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list awards failed", err, "A database error occurred.", ManagePath)
		return
	}

	data := referenceData{BaseVM: viewdata.NewBaseVM(r, "Keywords and awards", ManagePath)}
	for _, k := range keywords {
		data.Keywords = append(data.Keywords, keywordRow{ID: k.ID.Hex(), Word: htmlsanitize.KeywordHTML(k.Word)})
	}
	for _, a := range awards {
		data.Awards = append(data.Awards, a.Name)
	}
	templates.Render(w, r, "papers_reference", data)
}

// HandleAddKeyword handles POST /papers/manage/keywords. Adding a word that
// already exists is a no-op.
func (h *Handler) HandleAddKeyword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", referencePath)
		return
	}
	word := strings.TrimSpace(r.FormValue("word"))
	if word == "" {
		h.Sessions.AddFlash(w, r, auth.FlashWarning, "Enter a keyword.")
		http.Redirect(w, r, referencePath, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	k, err := h.Keywords.Ensure(ctx, word)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "add keyword failed", err, "Could not save the keyword.", referencePath)
		return
	}
	h.Catalog.ReferenceChanged(ctx)
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Keyword “"+k.PlainWord()+"” is available.")
	http.Redirect(w, r, referencePath, http.StatusSeeOther)
}

// HandleDeleteKeyword handles POST /papers/manage/keywords/{id}/delete and
// strips the keyword from every paper.
func (h *Handler) HandleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "Keyword not found.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err := h.Keywords.Delete(ctx, id)
	if errors.Is(err, keywordstore.ErrNotFound) {
		h.Sessions.AddFlash(w, r, auth.FlashInfo, "That keyword was already deleted.")
		http.Redirect(w, r, referencePath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete keyword failed", err, "Could not delete the keyword.", referencePath)
		return
	}
	if err := h.Papers.RemoveKeyword(ctx, id); err != nil {
		h.Log.Warn("failed to strip deleted keyword from papers", zap.String("keyword_id", id.Hex()), zap.Error(err))
	}
	h.Catalog.ReferenceChanged(ctx)
	h.Catalog.PapersChanged(ctx)

	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Keyword deleted.")
	http.Redirect(w, r, referencePath, http.StatusSeeOther)
}

// HandleAddAward handles POST /papers/manage/awards.
func (h *Handler) HandleAddAward(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", referencePath)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		h.Sessions.AddFlash(w, r, auth.FlashWarning, "Enter an award name.")
		http.Redirect(w, r, referencePath, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Awards.Ensure(ctx, name)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "add award failed", err, "Could not save the award.", referencePath)
		return
	}
	h.Catalog.ReferenceChanged(ctx)
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Award “"+a.Name+"” is available.")
	http.Redirect(w, r, referencePath, http.StatusSeeOther)
}

// HandleAddCitation handles POST /papers/manage/{id}/citations. The source is
// either another paper (cited_by_paper_id) or free text (cited_by_external).
func (h *Handler) HandleAddCitation(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadForEdit(w, r)
	if !ok {
		return
	}
	back := ManagePath + "/" + p.ID.Hex() + "/edit"
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", back)
		return
	}

	c := models.Citation{
		PaperID:         p.ID,
		CitedByExternal: strings.TrimSpace(r.FormValue("cited_by_external")),
		Notes:           strings.TrimSpace(r.FormValue("notes")),
	}
	if raw := strings.TrimSpace(r.FormValue("cited_by_paper_id")); raw != "" {
		citing, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			h.Sessions.AddFlash(w, r, auth.FlashWarning, "Choose a paper from the list.")
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
		c.CitedByPaperID = &citing
		c.CitedByExternal = ""
	}
	if raw := strings.TrimSpace(r.FormValue("citation_date")); raw != "" {
		if d, err := time.Parse(dateLayout, raw); err == nil {
			c.CitationDate = d.UTC()
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, err := h.Citations.Create(ctx, c)
	switch {
	case errors.Is(err, citationstore.ErrNoSource):
		h.Sessions.AddFlash(w, r, auth.FlashWarning, "Name the citing paper or source.")
	case errors.Is(err, citationstore.ErrSelfCite):
		h.Sessions.AddFlash(w, r, auth.FlashWarning, "A paper cannot cite itself.")
	case err != nil:
		h.ErrLog.LogServerError(w, r, "add citation failed", err, "Could not save the citation.", back)
		return
	default:
		h.Log.Info("citation added", zap.String("paper_id", p.ID.Hex()))
		h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Citation added.")
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
