package awardstore

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("award not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("awards")}
}

// Ensure returns the award named name, creating it if needed. Names are
// title-cased and compared case-insensitively.
func (s *Store) Ensure(ctx context.Context, name string) (models.Award, error) {
	a := models.Award{Name: name}
	a.Normalize()
	if a.Name == "" {
		return models.Award{}, errors.New("award name is empty")
	}

	var out models.Award
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"name_ci": a.NameCI},
		bson.M{"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "name": a.Name, "name_ci": a.NameCI}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if wafflemongo.IsDup(err) {
		err = s.c.FindOne(ctx, bson.M{"name_ci": a.NameCI}).Decode(&out)
	}
	return out, err
}

// EnsureAll ensures every non-empty comma-separated award name.
func (s *Store) EnsureAll(ctx context.Context, csv string) ([]primitive.ObjectID, error) {
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, n := range strings.Split(csv, ",") {
		if strings.TrimSpace(n) == "" {
			continue
		}
		a, err := s.Ensure(ctx, n)
		if err != nil {
			return nil, err
		}
		if !seen[a.ID] {
			seen[a.ID] = true
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Award, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) List(ctx context.Context) ([]models.Award, error) {
	return s.find(ctx, bson.M{})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Award, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Award
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
