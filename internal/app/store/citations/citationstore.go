package citationstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("citation not found")
	// ErrNoSource is returned when a citation names neither a citing paper
	// nor an external source.
	ErrNoSource = errors.New("citation needs a citing paper or an external source")
	ErrSelfCite = errors.New("a paper cannot cite itself")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("citations")}
}

func (s *Store) Create(ctx context.Context, c models.Citation) (models.Citation, error) {
	c.CitedByExternal = strings.TrimSpace(c.CitedByExternal)
	if c.CitedByPaperID == nil && c.CitedByExternal == "" {
		return models.Citation{}, ErrNoSource
	}
	if c.CitedByPaperID != nil && *c.CitedByPaperID == c.PaperID {
		return models.Citation{}, ErrSelfCite
	}
	c.ID = primitive.NewObjectID()
	if c.CitationDate.IsZero() {
		c.CitationDate = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Citation{}, err
	}
	return c, nil
}

// ListForPaper returns citations of paperID, newest first.
func (s *Store) ListForPaper(ctx context.Context, paperID primitive.ObjectID) ([]models.Citation, error) {
	cur, err := s.c.Find(ctx, bson.M{"paper_id": paperID},
		options.Find().SetSort(bson.D{{Key: "citation_date", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Citation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountForPaper(ctx context.Context, paperID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"paper_id": paperID})
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteForPaper removes citations of, and by, paperID.
func (s *Store) DeleteForPaper(ctx context.Context, paperID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"$or": []bson.M{
		{"paper_id": paperID},
		{"cited_by_paper_id": paperID},
	}})
	return err
}
