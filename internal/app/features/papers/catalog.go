// internal/app/features/papers/catalog.go
package papers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/app/system/cache"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	"github.com/dalemusser/scholarhub/internal/app/system/names"
	"github.com/dalemusser/scholarhub/internal/app/system/paging"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type strandLink struct {
	Strand string
	URL    string
	Count  int64
}

type homeData struct {
	viewdata.BaseVM
	Latest  []catalog.Card
	Strands []strandLink
	Total   int64
}

// ServeHome handles GET /.
func (h *Handler) ServeHome(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	latest, err := h.Papers.Latest(ctx, paging.CatalogPageSize)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load latest papers failed", err, "A database error occurred.", "/about")
		return
	}
	cards, err := h.Catalog.Cards(ctx, latest)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "build paper cards failed", err, "A database error occurred.", "/about")
		return
	}
	counts, err := cache.Remember(ctx, h.Catalog.Cache, cache.KeyStrandCount, h.Papers.CountByStrand)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count papers failed", err, "A database error occurred.", "/about")
		return
	}

	data := homeData{BaseVM: viewdata.NewBaseVM(r, "Research repository", "/"), Latest: cards}
	byStrand := map[models.Strand]int64{}
	for _, c := range counts {
		byStrand[c.Strand] = c.Count
		data.Total += c.Count
	}
	for _, s := range models.AllStrands {
		data.Strands = append(data.Strands, strandLink{Strand: string(s), URL: "/papers/strand/" + string(s), Count: byStrand[s]})
	}
	templates.Render(w, r, "papers_home", data)
}

type filterData struct {
	Term     string
	Sort     string
	Years    []option
	Strands  []option
	Designs  []option
	Grades   []option
	Awards   []option
	Authors  []option
	Keywords []option
	Sorts    []option
}

type listData struct {
	viewdata.BaseVM
	Heading     string
	Cards       []catalog.Card
	Total       int64
	Pager       paging.Pager
	Range       paging.Range
	ShowFilters bool
	Filters     filterData
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, data listData) {
	templates.Render(w, r, "papers_list", data)
}

// page runs q for the current page and fills data's results.
func (h *Handler) page(ctx context.Context, r *http.Request, q catalog.Query, data *listData) error {
	pg := paging.New(paging.ParsePage(r), paging.CatalogPageSize)
	q.Skip, q.Limit = pg.Skip(), pg.Limit()

	found, total, err := h.Catalog.Search(ctx, q)
	if err != nil {
		return err
	}
	cards, err := h.Catalog.Cards(ctx, found)
	if err != nil {
		return err
	}
	pg = pg.WithTotal(total)
	data.Cards = cards
	data.Total = total
	data.Pager = pg.Pager(r)
	data.Range = pg.Range(len(cards))
	return nil
}

// ServeList handles GET /papers: every paper, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	data := listData{BaseVM: viewdata.NewBaseVM(r, "Papers", "/"), Heading: "All papers"}
	if err := h.page(ctx, r, catalog.Query{Sort: paperstore.SortNewest}, &data); err != nil {
		h.ErrLog.LogServerError(w, r, "list papers failed", err, "A database error occurred.", "/")
		return
	}
	h.renderList(w, r, data)
}

// ServeStrand handles GET /papers/strand/{strand} and
// /papers/strand/{strand}/{design}.
func (h *Handler) ServeStrand(w http.ResponseWriter, r *http.Request) {
	strand, ok := models.ParseStrand(chi.URLParam(r, "strand"))
	if !ok {
		h.notFound(w, r, "Unknown strand.")
		return
	}
	q := catalog.Query{Strand: strand, Sort: paperstore.SortNewest}
	heading := string(strand) + " papers"
	if raw := chi.URLParam(r, "design"); raw != "" {
		design, ok := models.ParseDesign(raw)
		if !ok {
			h.notFound(w, r, "Unknown research design.")
			return
		}
		q.Design = design
		heading = string(strand) + " · " + design.Label()
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	data := listData{BaseVM: viewdata.NewBaseVM(r, heading, "/papers"), Heading: heading}
	if err := h.page(ctx, r, q, &data); err != nil {
		h.ErrLog.LogServerError(w, r, "list strand papers failed", err, "A database error occurred.", "/papers")
		return
	}
	h.renderList(w, r, data)
}

func parseIDs(vals []string) []primitive.ObjectID {
	var out []primitive.ObjectID
	for _, v := range vals {
		if id, err := primitive.ObjectIDFromHex(strings.TrimSpace(v)); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func selectedSet(ids []primitive.ObjectID) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id.Hex()] = true
	}
	return out
}

// parseQuery reads the search form. Unknown values are ignored rather than
// rejected so a stale bookmark still shows results.
func parseQuery(r *http.Request) catalog.Query {
	q := catalog.Query{
		Term:       strings.TrimSpace(query.Get(r, "q")),
		SchoolYear: strings.TrimSpace(query.Get(r, "school_year")),
		Sort:       query.Get(r, "sort"),
		AuthorIDs:  parseIDs(r.URL.Query()["authors"]),
		KeywordIDs: parseIDs(r.URL.Query()["keywords"]),
	}
	if s, ok := models.ParseStrand(query.Get(r, "strand")); ok {
		q.Strand = s
	}
	if d, ok := models.ParseDesign(query.Get(r, "research_design")); ok {
		q.Design = d
	}
	if g, err := strconv.Atoi(query.Get(r, "grade_level")); err == nil && (g == models.Grade11 || g == models.Grade12) {
		q.Grade = g
	}
	if id, err := primitive.ObjectIDFromHex(query.Get(r, "award")); err == nil {
		q.AwardID = &id
	}
	return q
}

func (h *Handler) filters(ctx context.Context, q catalog.Query) (filterData, error) {
	f := filterData{Term: q.Term, Sort: q.Sort}

	years, err := h.Catalog.SchoolYears(ctx)
	if err != nil {
		return f, err
	}
	for _, y := range years {
		f.Years = append(f.Years, option{Value: y, Label: y, Selected: y == q.SchoolYear})
	}
	for _, s := range models.AllStrands {
		f.Strands = append(f.Strands, option{Value: string(s), Label: string(s), Selected: s == q.Strand})
	}
	for _, d := range models.AllDesigns {
		f.Designs = append(f.Designs, option{Value: string(d), Label: d.Label(), Selected: d == q.Design})
	}
	for _, g := range []int{models.Grade11, models.Grade12} {
		f.Grades = append(f.Grades, option{Value: strconv.Itoa(g), Label: "Grade " + strconv.Itoa(g), Selected: g == q.Grade})
	}
	f.Sorts = []option{
		{Value: paperstore.SortNewest, Label: "Newest first"},
		{Value: paperstore.SortOldest, Label: "Oldest first"},
		{Value: paperstore.SortTitleAsc, Label: "Title A–Z"},
		{Value: paperstore.SortTitleDesc, Label: "Title Z–A"},
	}
	for i := range f.Sorts {
		f.Sorts[i].Selected = f.Sorts[i].Value == q.Sort
	}

	awards, err := h.Catalog.AllAwards(ctx)
	if err != nil {
		return f, err
	}
	for _, a := range awards {
		f.Awards = append(f.Awards, option{Value: a.ID.Hex(), Label: a.Name, Selected: q.AwardID != nil && *q.AwardID == a.ID})
	}

	chosenKeywords := selectedSet(q.KeywordIDs)
	keywords, err := h.Catalog.AllKeywords(ctx)
	if err != nil {
		return f, err
	}
	for _, k := range keywords {
		f.Keywords = append(f.Keywords, option{Value: k.ID.Hex(), Label: k.PlainWord(), Selected: chosenKeywords[k.ID.Hex()]})
	}

	// Only consented authors can be picked, and they are shown in full.
	chosenAuthors := selectedSet(q.AuthorIDs)
	authors, err := h.Catalog.ConsentedAuthors(ctx)
	if err != nil {
		return f, err
	}
	for _, a := range authors {
		f.Authors = append(f.Authors, option{Value: a.ID.Hex(), Label: names.Full(a), Selected: chosenAuthors[a.ID.Hex()]})
	}
	return f, nil
}

// ServeSearch handles GET /papers/search.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	q := parseQuery(r)
	data := listData{BaseVM: viewdata.NewBaseVM(r, "Search papers", "/papers"), Heading: "Search papers", ShowFilters: true}

	f, err := h.filters(ctx, q)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load search filters failed", err, "A database error occurred.", "/papers")
		return
	}
	data.Filters = f
	if err := h.page(ctx, r, q, &data); err != nil {
		h.ErrLog.LogServerError(w, r, "search papers failed", err, "A database error occurred.", "/papers")
		return
	}
	h.renderList(w, r, data)
}
