// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// Page sizes for the paged lists.
const (
	CatalogPageSize = 6
	ManagePageSize  = 10
	UsersPageSize   = 20
	AuthorsPageSize = 30
	AuditPageSize   = 50
)

// window is how many page links are shown around the current page.
const window = 2

// ParsePage extracts the 1-based "page" query parameter.
// Returns 1 if not present or invalid.
func ParsePage(r *http.Request) int {
	s := query.Get(r, "page")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Page describes one page of a numbered list.
type Page struct {
	Number int
	Size   int
	Total  int64
}

// New builds a Page. Number is clamped to at least 1.
func New(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = CatalogPageSize
	}
	return Page{Number: number, Size: size}
}

// Skip is the number of rows before this page, for Find().SetSkip().
func (p Page) Skip() int64 { return int64((p.Number - 1) * p.Size) }

// Limit is the page size as int64, for Find().SetLimit().
func (p Page) Limit() int64 { return int64(p.Size) }

// WithTotal records the total row count once it is known.
func (p Page) WithTotal(total int64) Page {
	p.Total = total
	return p
}

// Pages is the number of pages (at least 1).
func (p Page) Pages() int {
	if p.Total <= 0 {
		return 1
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

func (p Page) HasPrev() bool { return p.Number > 1 }
func (p Page) HasNext() bool { return p.Number < p.Pages() }
func (p Page) PrevPage() int { return p.Number - 1 }
func (p Page) NextPage() int { return p.Number + 1 }

// Numbers lists the page links to show around the current page.
func (p Page) Numbers() []int {
	last := p.Pages()
	lo, hi := p.Number-window, p.Number+window
	if lo < 1 {
		lo = 1
	}
	if hi > last {
		hi = last
	}
	out := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, n)
	}
	return out
}

// Range returns the 1-based display range for shown rows on this page.
func (p Page) Range(shown int) Range {
	return ComputeRange(int(p.Skip())+1, shown, p.Size)
}

// URL returns the current query string with page set to n, so filters are
// kept across page links.
func URL(r *http.Request, n int) string {
	q := url.Values{}
	for k, v := range r.URL.Query() {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(n))
	return r.URL.Path + "?" + q.Encode()
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start     int // 1-based start index (0 if no results)
	End       int // 1-based end index (0 if no results)
	PrevStart int // start value for previous page link
	NextStart int // start value for next page link
}

// ComputeRange calculates display range values given the current start index,
// the number of items shown and the page size.
func ComputeRange(start, shown, pageSize int) Range {
	if shown == 0 {
		return Range{Start: 0, End: 0, PrevStart: 1, NextStart: 1}
	}

	prevStart := start - pageSize
	if prevStart < 1 {
		prevStart = 1
	}

	return Range{
		Start:     start,
		End:       start + shown - 1,
		PrevStart: prevStart,
		NextStart: start + shown,
	}
}

// Link is one numbered page link.
type Link struct {
	Number  int
	URL     string
	Current bool
}

// Pager is the template view of a Page: numbered links plus prev/next URLs
// that keep the current filters. PrevURL and NextURL are empty at the ends.
type Pager struct {
	Page    Page
	Links   []Link
	PrevURL string
	NextURL string
}

// Pager builds the link set for p from the current request.
func (p Page) Pager(r *http.Request) Pager {
	out := Pager{Page: p}
	for _, n := range p.Numbers() {
		out.Links = append(out.Links, Link{Number: n, URL: URL(r, n), Current: n == p.Number})
	}
	if p.HasPrev() {
		out.PrevURL = URL(r, p.PrevPage())
	}
	if p.HasNext() {
		out.NextURL = URL(r, p.NextPage())
	}
	return out
}
