// internal/app/features/papers/authors.go
package papers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	"github.com/dalemusser/scholarhub/internal/app/system/paging"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type authorRow struct {
	Name      string
	SearchURL string
	Batches   string
}

type authorsData struct {
	viewdata.BaseVM
	Search string
	Rows   []authorRow
	Total  int64
	Pager  paging.Pager
}

// ServeAuthors handles GET /authors. Names follow the public rendering
// rules; only consented authors link to a search of their papers.
func (h *Handler) ServeAuthors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	search := strings.TrimSpace(query.Get(r, "q"))
	pg := paging.New(paging.ParsePage(r), paging.AuthorsPageSize)
	authors, total, err := h.Authors.List(ctx, authorstore.ListFilter{Search: search, Skip: pg.Skip(), Limit: pg.Limit()})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list authors failed", err, "A database error occurred.", "/")
		return
	}
	public, err := h.Catalog.PublicNames(ctx, authors)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "render author names failed", err, "A database error occurred.", "/")
		return
	}
	consented, err := h.Catalog.ConsentedAuthors(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load consented authors failed", err, "A database error occurred.", "/")
		return
	}
	linkable := map[string]bool{}
	for _, a := range consented {
		linkable[a.ID.Hex()] = true
	}

	data := authorsData{
		BaseVM: viewdata.NewBaseVM(r, "Authors", "/"),
		Search: search,
		Total:  total,
		Pager:  pg.WithTotal(total).Pager(r),
	}
	for i, a := range authors {
		row := authorRow{Name: public[i], Batches: batches(a)}
		if linkable[a.ID.Hex()] {
			row.SearchURL = "/papers/search?authors=" + a.ID.Hex()
		}
		data.Rows = append(data.Rows, row)
	}
	templates.Render(w, r, "authors_list", data)
}

func batches(a models.Author) string {
	var parts []string
	if a.G11Batch != "" {
		parts = append(parts, "G11 "+a.G11Batch)
	}
	if a.G12Batch != "" {
		parts = append(parts, "G12 "+a.G12Batch)
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type designOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ServeDesigns handles GET /papers/designs?grade_level=&strand= and lists
// the research designs legal for that combination. Unknown input yields an
// empty list.
func (h *Handler) ServeDesigns(w http.ResponseWriter, r *http.Request) {
	grade, _ := strconv.Atoi(query.Get(r, "grade_level"))
	strand, _ := models.ParseStrand(query.Get(r, "strand"))

	out := []designOption{}
	if strand.Valid() {
		for _, d := range models.AllowedDesigns(grade, strand) {
			out = append(out, designOption{Value: string(d), Label: d.Label()})
		}
	}
	writeJSON(w, out)
}

// ServeAuthorsByBatch handles GET /papers/authors-by-batch?grade_level=&school_year=
// for the paper form's author picker.
func (h *Handler) ServeAuthorsByBatch(w http.ResponseWriter, r *http.Request) {
	grade, _ := strconv.Atoi(query.Get(r, "grade_level"))
	year := strings.TrimSpace(query.Get(r, "school_year"))
	if (grade != models.Grade11 && grade != models.Grade12) || !models.ValidBatch(year) {
		writeJSON(w, []catalog.AuthorOption{})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	out, err := h.Catalog.AuthorsByBatch(ctx, grade, year)
	if err != nil {
		h.Log.Error("authors by batch failed", zap.Int("grade", grade), zap.String("year", year), zap.Error(err))
		writeJSONStatus(w, http.StatusInternalServerError, map[string]string{"error": "could not load authors"})
		return
	}
	if out == nil {
		out = []catalog.AuthorOption{}
	}
	writeJSON(w, out)
}
