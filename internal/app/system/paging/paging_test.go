package paging

import (
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 1},
		{"page=3", 3},
		{"page=0", 1},
		{"page=-2", 1},
		{"page=abc", 1},
	}
	for _, tc := range tests {
		r := httptest.NewRequest("GET", "/papers?"+tc.query, nil)
		if got := ParsePage(r); got != tc.want {
			t.Errorf("ParsePage(%q) = %d, want %d", tc.query, got, tc.want)
		}
	}
}

func TestPage_SkipLimitPages(t *testing.T) {
	p := New(3, CatalogPageSize).WithTotal(13)
	if p.Skip() != 12 {
		t.Errorf("Skip = %d, want 12", p.Skip())
	}
	if p.Limit() != 6 {
		t.Errorf("Limit = %d, want 6", p.Limit())
	}
	if p.Pages() != 3 {
		t.Errorf("Pages = %d, want 3", p.Pages())
	}
	if !p.HasPrev() || p.HasNext() {
		t.Errorf("HasPrev/HasNext = %v/%v, want true/false", p.HasPrev(), p.HasNext())
	}

	empty := New(0, UsersPageSize)
	if empty.Number != 1 || empty.Pages() != 1 || empty.HasNext() {
		t.Errorf("unexpected empty page: %+v", empty)
	}
}

func TestPage_Numbers(t *testing.T) {
	p := New(5, 10).WithTotal(100)
	got := p.Numbers()
	want := []int{3, 4, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("Numbers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Numbers = %v, want %v", got, want)
		}
	}

	if got := New(1, 10).WithTotal(15).Numbers(); len(got) != 2 || got[0] != 1 {
		t.Errorf("Numbers near start = %v", got)
	}
}

func TestComputeRange(t *testing.T) {
	r := ComputeRange(7, 6, 6)
	if r.Start != 7 || r.End != 12 || r.PrevStart != 1 || r.NextStart != 13 {
		t.Errorf("unexpected range: %+v", r)
	}
	if r := ComputeRange(1, 0, 6); r.Start != 0 || r.End != 0 {
		t.Errorf("empty range: %+v", r)
	}
	if r := New(2, 6).Range(4); r.Start != 7 || r.End != 10 {
		t.Errorf("page range: %+v", r)
	}
}

func TestURL_KeepsFilters(t *testing.T) {
	r := httptest.NewRequest("GET", "/papers/search?q=algae&strand=STEM&page=1", nil)
	u, err := url.Parse(URL(r, 4))
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/papers/search" {
		t.Errorf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("q") != "algae" || q.Get("strand") != "STEM" || q.Get("page") != "4" {
		t.Errorf("query = %v", q)
	}
}

func TestPager(t *testing.T) {
	r := httptest.NewRequest("GET", "/papers/search?q=algae&page=2", nil)
	p := New(2, 6).WithTotal(13)

	pg := p.Pager(r)
	if len(pg.Links) != 3 {
		t.Fatalf("links: got %d, want 3", len(pg.Links))
	}
	if !pg.Links[1].Current || pg.Links[0].Current {
		t.Errorf("current link not marked: %+v", pg.Links)
	}
	if pg.PrevURL == "" || pg.NextURL == "" {
		t.Errorf("expected both prev and next, got %q %q", pg.PrevURL, pg.NextURL)
	}

	last := New(3, 6).WithTotal(13).Pager(r)
	if last.NextURL != "" {
		t.Errorf("last page should have no next link, got %q", last.NextURL)
	}
}
