// Package catalog assembles the public view of papers: cards with
// consent-aware author names, filtered search, and the cached reference data
// (school years, awards, keywords, authors per batch) the forms and filters
// need.
package catalog

import (
	"context"
	"fmt"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	awardstore "github.com/dalemusser/scholarhub/internal/app/store/awards"
	keywordstore "github.com/dalemusser/scholarhub/internal/app/store/keywords"
	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/app/system/cache"
	"github.com/dalemusser/scholarhub/internal/app/system/names"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Card is the summary of one paper shown in lists.
type Card struct {
	ID         string
	Title      string
	GradeLevel int
	Strand     string
	Design     string
	SchoolYear string
	Authors    []string
	Published  string
}

// AuthorOption is one entry of an author picker.
type AuthorOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Service struct {
	Papers   *paperstore.Store
	Authors  *authorstore.Store
	Accounts *accountstore.Store
	Keywords *keywordstore.Store
	Awards   *awardstore.Store
	Cache    *cache.Cache
}

func New(papers *paperstore.Store, authors *authorstore.Store, accounts *accountstore.Store,
	keywords *keywordstore.Store, awards *awardstore.Store, c *cache.Cache) *Service {
	return &Service{
		Papers:   papers,
		Authors:  authors,
		Accounts: accounts,
		Keywords: keywords,
		Awards:   awards,
		Cache:    c,
	}
}

// consentOf loads the consent status of every account that claimed one of
// authors.
func (s *Service) consentOf(ctx context.Context, authors []models.Author) (names.Resolver, error) {
	var accountIDs []primitive.ObjectID
	for _, a := range authors {
		if a.Claimed() {
			accountIDs = append(accountIDs, *a.UserID)
		}
	}
	statuses, err := s.Accounts.ConsentStatuses(ctx, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("load consent: %w", err)
	}
	return func(a models.Author) models.ConsentStatus {
		if st, ok := statuses[*a.UserID]; ok {
			return st
		}
		return models.ConsentNotConsented
	}, nil
}

// PublicNames renders authors in order with their public names.
func (s *Service) PublicNames(ctx context.Context, authors []models.Author) ([]string, error) {
	resolve, err := s.consentOf(ctx, authors)
	if err != nil {
		return nil, err
	}
	return names.PublicAll(authors, resolve), nil
}

// OrderedAuthors loads the authors of p in credit order. Authors that no
// longer exist are skipped.
func (s *Service) OrderedAuthors(ctx context.Context, p models.Paper) ([]models.Author, error) {
	found, err := s.Authors.ListByIDs(ctx, p.AuthorIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Author, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]models.Author, 0, len(p.AuthorIDs))
	for _, id := range p.AuthorIDs {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Cards builds list cards for papers, loading all their authors and consent
// states in two queries.
func (s *Service) Cards(ctx context.Context, papers []models.Paper) ([]Card, error) {
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, p := range papers {
		for _, id := range p.AuthorIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	authors, err := s.Authors.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	resolve, err := s.consentOf(ctx, authors)
	if err != nil {
		return nil, err
	}
	public := make(map[primitive.ObjectID]string, len(authors))
	for i, n := range names.PublicAll(authors, resolve) {
		public[authors[i].ID] = n
	}

	cards := make([]Card, 0, len(papers))
	for _, p := range papers {
		c := Card{
			ID:         p.ID.Hex(),
			Title:      p.Title,
			GradeLevel: p.GradeLevel,
			Strand:     string(p.Strand),
			Design:     p.ResearchDesign.Label(),
			SchoolYear: p.SchoolYear,
		}
		if !p.PublicationDate.IsZero() {
			c.Published = p.PublicationDate.Format("January 2, 2006")
		}
		for _, id := range p.AuthorIDs {
			if n, ok := public[id]; ok {
				c.Authors = append(c.Authors, n)
			}
		}
		cards = append(cards, c)
	}
	return cards, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Search                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// Query is a catalog search as entered on the search page.
type Query struct {
	Term       string
	SchoolYear string
	Strand     models.Strand
	Design     models.ResearchDesign
	Grade      int
	AwardID    *primitive.ObjectID
	AuthorIDs  []primitive.ObjectID
	KeywordIDs []primitive.ObjectID
	Sort       string
	Skip       int64
	Limit      int64
}

// ConsentedAuthors returns the authors whose account granted consent. Only
// they can be searched for by name.
func (s *Service) ConsentedAuthors(ctx context.Context) ([]models.Author, error) {
	accountIDs, err := s.Accounts.ConsentedIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.Authors.ListClaimedBy(ctx, accountIDs)
}

// Search runs q and returns one page of papers with the total match count.
// Author matches, by filter or by free-text term, are limited to consented
// authors.
func (s *Service) Search(ctx context.Context, q Query) ([]models.Paper, int64, error) {
	f := paperstore.SearchFilter{
		Query:      q.Term,
		SchoolYear: q.SchoolYear,
		Strand:     q.Strand,
		Design:     q.Design,
		Grade:      q.Grade,
		AwardID:    q.AwardID,
		KeywordIDs: q.KeywordIDs,
		Sort:       q.Sort,
		Skip:       q.Skip,
		Limit:      q.Limit,
	}

	var consented map[primitive.ObjectID]bool
	if q.Term != "" || len(q.AuthorIDs) > 0 {
		authors, err := s.ConsentedAuthors(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("load consented authors: %w", err)
		}
		consented = make(map[primitive.ObjectID]bool, len(authors))
		for _, a := range authors {
			consented[a.ID] = true
		}
	}

	if len(q.AuthorIDs) > 0 {
		f.AuthorIDs = keep(q.AuthorIDs, consented)
		if len(f.AuthorIDs) == 0 {
			return nil, 0, nil
		}
	}

	if q.Term != "" {
		kw, err := s.Keywords.SearchIDs(ctx, q.Term)
		if err != nil {
			return nil, 0, fmt.Errorf("search keywords: %w", err)
		}
		au, err := s.Authors.SearchIDs(ctx, q.Term)
		if err != nil {
			return nil, 0, fmt.Errorf("search authors: %w", err)
		}
		f.TermKeywordIDs = kw
		f.TermAuthorIDs = keep(au, consented)
	}

	return s.Papers.Search(ctx, f)
}

func keep(ids []primitive.ObjectID, allowed map[primitive.ObjectID]bool) []primitive.ObjectID {
	var out []primitive.ObjectID
	for _, id := range ids {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| Reference data                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

func (s *Service) SchoolYears(ctx context.Context) ([]string, error) {
	return cache.Remember(ctx, s.Cache, cache.KeySchoolYears, s.Papers.SchoolYears)
}

func (s *Service) AllAwards(ctx context.Context) ([]models.Award, error) {
	return cache.Remember(ctx, s.Cache, cache.KeyAwards, s.Awards.List)
}

func (s *Service) AllKeywords(ctx context.Context) ([]models.Keyword, error) {
	return cache.Remember(ctx, s.Cache, cache.KeyKeywords, s.Keywords.List)
}

// AuthorsByBatch lists the authors of a grade's batch with full names, for
// the paper form's author picker.
func (s *Service) AuthorsByBatch(ctx context.Context, grade int, year string) ([]AuthorOption, error) {
	return cache.Remember(ctx, s.Cache, cache.BatchKey(grade, year), func(ctx context.Context) ([]AuthorOption, error) {
		authors, err := s.Authors.ListByBatch(ctx, grade, year)
		if err != nil {
			return nil, err
		}
		out := make([]AuthorOption, 0, len(authors))
		for _, a := range authors {
			out = append(out, AuthorOption{ID: a.ID.Hex(), Name: names.Full(a)})
		}
		return out, nil
	})
}

// PapersChanged drops cached data derived from papers.
func (s *Service) PapersChanged(ctx context.Context) {
	s.Cache.Invalidate(ctx, cache.KeySchoolYears, cache.KeyStrandCount)
}

// ReferenceChanged drops cached keyword and award lists.
func (s *Service) ReferenceChanged(ctx context.Context) {
	s.Cache.Invalidate(ctx, cache.KeyKeywords, cache.KeyAwards)
}

// AuthorsChanged drops every cached batch author list.
func (s *Service) AuthorsChanged(ctx context.Context) {
	s.Cache.InvalidatePattern(ctx, cache.BatchPattern)
}
