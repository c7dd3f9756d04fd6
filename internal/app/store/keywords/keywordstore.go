package keywordstore

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("keyword not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("keywords")}
}

// Ensure returns the keyword with word's folded form, creating it if needed.
func (s *Store) Ensure(ctx context.Context, word string) (models.Keyword, error) {
	k := models.Keyword{Word: word}
	k.Normalize()
	if k.Word == "" {
		return models.Keyword{}, errors.New("keyword is empty")
	}

	var out models.Keyword
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"word_ci": k.WordCI},
		bson.M{"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "word": k.Word, "word_ci": k.WordCI}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if wafflemongo.IsDup(err) {
		// Lost an upsert race; the winner's document is there now.
		err = s.c.FindOne(ctx, bson.M{"word_ci": k.WordCI}).Decode(&out)
	}
	return out, err
}

// EnsureAll splits a comma-separated list and ensures each keyword,
// returning their ids in input order without duplicates.
func (s *Store) EnsureAll(ctx context.Context, csv string) ([]primitive.ObjectID, error) {
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, w := range strings.Split(csv, ",") {
		if strings.TrimSpace(w) == "" {
			continue
		}
		k, err := s.Ensure(ctx, w)
		if err != nil {
			return nil, err
		}
		if !seen[k.ID] {
			seen[k.ID] = true
			ids = append(ids, k.ID)
		}
	}
	return ids, nil
}

func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Keyword, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// List returns every keyword alphabetically.
func (s *Store) List(ctx context.Context) ([]models.Keyword, error) {
	return s.find(ctx, bson.M{})
}

// SearchIDs returns ids of keywords whose folded word contains term.
func (s *Store) SearchIDs(ctx context.Context, term string) ([]primitive.ObjectID, error) {
	pat := regexp.QuoteMeta(text.Fold(strings.TrimSpace(term)))
	ks, err := s.find(ctx, bson.M{"word_ci": bson.M{"$regex": pat}})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(ks))
	for _, k := range ks {
		ids = append(ids, k.ID)
	}
	return ids, nil
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

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Keyword, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "word_ci", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Keyword
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
