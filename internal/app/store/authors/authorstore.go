// Package authorstore persists canonical Author identities.
//
// Two unique indexes back the identity rules: the normalized name tuple,
// and a partial index on user_id so an account claims at most one author.
package authorstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("author not found")
	// ErrIdentityConflict is returned when a write would give two authors the
	// same name, or give one account two authors.
	ErrIdentityConflict = errors.New("author identity conflict")
	// ErrAlreadyClaimed is returned by Claim when another account got there
	// first, and by Delete for an author an account holds.
	ErrAlreadyClaimed = errors.New("author already claimed")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("authors")}
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if wafflemongo.IsDup(err) {
		return ErrIdentityConflict
	}
	return err
}

func nameFilter(a models.Author) bson.M {
	return bson.M{
		"first_name":     a.FirstName,
		"middle_initial": a.MiddleInitial,
		"last_name":      a.LastName,
		"suffix":         a.Suffix,
	}
}

// Create normalizes and inserts a. A name or claim collision returns
// ErrIdentityConflict.
func (s *Store) Create(ctx context.Context, a models.Author) (models.Author, error) {
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.Normalize()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.UserID != nil && a.UserID.IsZero() {
		a.UserID = nil
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Author{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Author, error) {
	var a models.Author
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return models.Author{}, mapErr(err)
	}
	return a, nil
}

// GetByAccount returns the author claimed by accountID.
func (s *Store) GetByAccount(ctx context.Context, accountID primitive.ObjectID) (models.Author, error) {
	var a models.Author
	if err := s.c.FindOne(ctx, bson.M{"user_id": accountID}).Decode(&a); err != nil {
		return models.Author{}, mapErr(err)
	}
	return a, nil
}

// FindByName looks up the author with exactly this normalized name.
func (s *Store) FindByName(ctx context.Context, name models.Author) (models.Author, error) {
	name.Normalize()
	var a models.Author
	if err := s.c.FindOne(ctx, nameFilter(name)).Decode(&a); err != nil {
		return models.Author{}, mapErr(err)
	}
	return a, nil
}

// Claim links an unclaimed author to accountID, refreshing its batch years
// and birthdate. It returns ErrAlreadyClaimed when another account holds it,
// and ErrIdentityConflict when accountID already has a different author.
func (s *Store) Claim(ctx context.Context, authorID, accountID primitive.ObjectID, details models.Author) (models.Author, error) {
	set := bson.M{"user_id": accountID, "updated_at": time.Now().UTC()}
	if details.G11Batch != "" {
		set["g11_batch"] = details.G11Batch
	}
	if details.G12Batch != "" {
		set["g12_batch"] = details.G12Batch
	}
	if details.Birthdate != nil {
		set["birthdate"] = details.Birthdate.UTC()
	}

	filter := bson.M{
		"_id": authorID,
		"$or": []bson.M{
			{"user_id": bson.M{"$exists": false}},
			{"user_id": nil},
			{"user_id": accountID},
		},
	}
	var out models.Author
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := s.GetByID(ctx, authorID); getErr == nil {
			return models.Author{}, ErrAlreadyClaimed
		}
		return models.Author{}, ErrNotFound
	}
	return models.Author{}, mapErr(err)
}

// Release clears the claim on every author held by accountID.
func (s *Store) Release(ctx context.Context, accountID primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx,
		bson.M{"user_id": accountID},
		bson.M{"$unset": bson.M{"user_id": ""}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	return err
}

// ListUnclaimedMatching returns unclaimed authors whose first and last name
// match name case-insensitively and whose middle initial and suffix match
// exactly. These are the candidates offered to an admin during approval.
func (s *Store) ListUnclaimedMatching(ctx context.Context, name models.Author) ([]models.Author, error) {
	name.Normalize()
	filter := bson.M{
		"first_name_ci":  name.FirstNameCI,
		"last_name_ci":   name.LastNameCI,
		"middle_initial": name.MiddleInitial,
		"suffix":         name.Suffix,
		"$or": []bson.M{
			{"user_id": bson.M{"$exists": false}},
			{"user_id": nil},
		},
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

// ListByBatch returns authors whose g11 (grade 11) or g12 (grade 12) batch
// equals year.
func (s *Store) ListByBatch(ctx context.Context, grade int, year string) ([]models.Author, error) {
	field := "g12_batch"
	if grade == models.Grade11 {
		field = "g11_batch"
	}
	return s.find(ctx, bson.M{field: year}, options.Find().SetSort(sortByName()))
}

// ListByIDs returns the authors with the given ids, sorted by name.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Author, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(sortByName()))
}

// ListClaimedBy returns the authors claimed by any of accountIDs.
func (s *Store) ListClaimedBy(ctx context.Context, accountIDs []primitive.ObjectID) ([]models.Author, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"user_id": bson.M{"$in": accountIDs}}, options.Find().SetSort(sortByName()))
}

// ListFilter narrows List.
type ListFilter struct {
	Search    string
	Unclaimed bool
	Skip      int64
	Limit     int64
}

// List returns a page of authors sorted by last then first name, and the
// total match count.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Author, int64, error) {
	q := bson.M{}
	if term := strings.TrimSpace(f.Search); term != "" {
		pat := regexp.QuoteMeta(text.Fold(term))
		q["$or"] = []bson.M{
			{"first_name_ci": bson.M{"$regex": pat}},
			{"last_name_ci": bson.M{"$regex": pat}},
		}
	}
	if f.Unclaimed {
		q["user_id"] = bson.M{"$exists": false}
	}

	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(sortByName()).SetSkip(f.Skip)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	out, err := s.find(ctx, q, opts)
	return out, total, err
}

// SearchIDs returns the ids of authors whose folded first or last name
// contains term.
func (s *Store) SearchIDs(ctx context.Context, term string) ([]primitive.ObjectID, error) {
	pat := regexp.QuoteMeta(text.Fold(strings.TrimSpace(term)))
	cur, err := s.c.Find(ctx, bson.M{"$or": []bson.M{
		{"first_name_ci": bson.M{"$regex": pat}},
		{"last_name_ci": bson.M{"$regex": pat}},
	}}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// Update rewrites the name and batch details of an author. A collision with
// another author's name returns ErrIdentityConflict.
func (s *Store) Update(ctx context.Context, a models.Author) error {
	a.Normalize()
	set := bson.M{
		"first_name":     a.FirstName,
		"middle_initial": a.MiddleInitial,
		"last_name":      a.LastName,
		"suffix":         a.Suffix,
		"first_name_ci":  a.FirstNameCI,
		"last_name_ci":   a.LastNameCI,
		"g11_batch":      a.G11Batch,
		"g12_batch":      a.G12Batch,
		"updated_at":     time.Now().UTC(),
	}
	if a.Birthdate != nil {
		set["birthdate"] = a.Birthdate.UTC()
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": a.ID}, bson.M{"$set": set})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an unclaimed author. A claimed author is kept and
// ErrAlreadyClaimed returned; accounts give up their author through Release.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{
		"_id": id,
		"$or": []bson.M{
			{"user_id": bson.M{"$exists": false}},
			{"user_id": nil},
		},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount > 0 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyClaimed
}

func sortByName() bson.D {
	return bson.D{{Key: "last_name_ci", Value: 1}, {Key: "first_name_ci", Value: 1}, {Key: "_id", Value: 1}}
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Author, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Author
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
