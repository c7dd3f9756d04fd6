// Package paperstore persists research papers and answers catalog queries.
package paperstore

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("paper not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("papers")}
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func prepare(p *models.Paper) error {
	p.Title = strings.TrimSpace(p.Title)
	p.TitleCI = text.Fold(p.Title)
	p.SchoolYear = strings.TrimSpace(p.SchoolYear)
	if p.AuthorIDs == nil {
		p.AuthorIDs = []primitive.ObjectID{}
	}
	return p.Validate()
}

// Create validates and inserts p. An illegal design for the grade and strand
// fails with models.ErrInvalidDesign.
func (s *Store) Create(ctx context.Context, p models.Paper) (models.Paper, error) {
	if err := prepare(&p); err != nil {
		return models.Paper{}, err
	}
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.PublicationDate.IsZero() {
		p.PublicationDate = now
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Paper{}, err
	}
	return p, nil
}

// Update validates and replaces p, keeping its creation time.
func (s *Store) Update(ctx context.Context, p models.Paper) error {
	if err := prepare(&p); err != nil {
		return err
	}
	old, err := s.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Paper, error) {
	var p models.Paper
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Paper{}, mapErr(err)
	}
	return p, nil
}

// Delete removes the paper and returns it so the caller can remove its file.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (models.Paper, error) {
	var p models.Paper
	if err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Paper{}, mapErr(err)
	}
	return p, nil
}

// RemoveAuthor pulls authorID from every paper's author list.
func (s *Store) RemoveAuthor(ctx context.Context, authorID primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx, bson.M{"author_ids": authorID},
		bson.M{"$pull": bson.M{"author_ids": authorID}})
	return err
}

// RemoveKeyword pulls keywordID from every paper's keyword list.
func (s *Store) RemoveKeyword(ctx context.Context, keywordID primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx, bson.M{"keyword_ids": keywordID},
		bson.M{"$pull": bson.M{"keyword_ids": keywordID}})
	return err
}

/*─────────────────────────────────────────────────────────────────────────────*
| Catalog queries                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// Sort orders for Search.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortTitleAsc  = "title_asc"
	SortTitleDesc = "title_desc"
)

// SearchFilter narrows Search. Query matches the title; TermKeywordIDs and
// TermAuthorIDs are alternative matches for the same free-text term,
// resolved by the caller against the keyword and author collections.
type SearchFilter struct {
	IDs []primitive.ObjectID // restrict to these papers when set

	Query          string
	TermKeywordIDs []primitive.ObjectID
	TermAuthorIDs  []primitive.ObjectID

	SchoolYear string
	Strand     models.Strand
	Design     models.ResearchDesign
	Grade      int
	AwardID    *primitive.ObjectID
	AuthorIDs  []primitive.ObjectID // any of
	KeywordIDs []primitive.ObjectID // any of

	Sort  string
	Skip  int64
	Limit int64
}

func (f SearchFilter) query() bson.M {
	q := bson.M{}
	if f.IDs != nil {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		or := []bson.M{{"title_ci": bson.M{"$regex": regexp.QuoteMeta(text.Fold(term))}}}
		if len(f.TermKeywordIDs) > 0 {
			or = append(or, bson.M{"keyword_ids": bson.M{"$in": f.TermKeywordIDs}})
		}
		if len(f.TermAuthorIDs) > 0 {
			or = append(or, bson.M{"author_ids": bson.M{"$in": f.TermAuthorIDs}})
		}
		q["$or"] = or
	}
	if f.SchoolYear != "" {
		q["school_year"] = f.SchoolYear
	}
	if f.Strand != "" {
		q["strand"] = f.Strand
	}
	if f.Design != "" {
		q["research_design"] = f.Design
	}
	if f.Grade != 0 {
		q["grade_level"] = f.Grade
	}
	if f.AwardID != nil {
		q["award_ids"] = *f.AwardID
	}

	var and []bson.M
	if len(f.AuthorIDs) > 0 {
		and = append(and, bson.M{"author_ids": bson.M{"$in": f.AuthorIDs}})
	}
	if len(f.KeywordIDs) > 0 {
		and = append(and, bson.M{"keyword_ids": bson.M{"$in": f.KeywordIDs}})
	}
	if len(and) > 0 {
		q["$and"] = and
	}
	return q
}

func (f SearchFilter) sort() bson.D {
	switch f.Sort {
	case SortOldest:
		return bson.D{{Key: "publication_date", Value: 1}, {Key: "_id", Value: 1}}
	case SortTitleAsc:
		return bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}}
	case SortTitleDesc:
		return bson.D{{Key: "title_ci", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "publication_date", Value: -1}, {Key: "_id", Value: -1}}
	}
}

// Search returns one page of matching papers and the total match count.
func (s *Store) Search(ctx context.Context, f SearchFilter) ([]models.Paper, int64, error) {
	q := f.query()
	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(f.sort()).SetSkip(f.Skip)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	out, err := s.find(ctx, q, opts)
	return out, total, err
}

// Latest returns the n most recently published papers.
func (s *Store) Latest(ctx context.Context, n int64) ([]models.Paper, error) {
	return s.find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "publication_date", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(n))
}

// ListByAuthor returns every paper crediting authorID, newest first.
func (s *Store) ListByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]models.Paper, error) {
	return s.find(ctx, bson.M{"author_ids": authorID}, options.Find().
		SetSort(bson.D{{Key: "publication_date", Value: -1}}))
}

// IDsByAuthors returns the ids of papers crediting any of authorIDs.
func (s *Store) IDsByAuthors(ctx context.Context, authorIDs []primitive.ObjectID) ([]primitive.ObjectID, error) {
	if len(authorIDs) == 0 {
		return []primitive.ObjectID{}, nil
	}
	ps, err := s.find(ctx, bson.M{"author_ids": bson.M{"$in": authorIDs}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// SchoolYears lists the distinct school years that have papers, ascending.
func (s *Store) SchoolYears(ctx context.Context) ([]string, error) {
	vals, err := s.c.Distinct(ctx, "school_year", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if y, ok := v.(string); ok && y != "" {
			out = append(out, y)
		}
	}
	sort.Strings(out)
	return out, nil
}

// StrandCount is one row of CountByStrand.
type StrandCount struct {
	Strand models.Strand `bson:"_id"`
	Count  int64         `bson:"count"`
}

// CountByStrand returns paper counts per strand for dashboards.
func (s *Store) CountByStrand(ctx context.Context) ([]StrandCount, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$strand"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []StrandCount
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Paper, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Paper
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
