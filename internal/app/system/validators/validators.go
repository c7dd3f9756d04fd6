// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/scholarhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("accounts", accountsSchema())
	ensure("authors", authorsSchema())
	ensure("papers", papersSchema())
	ensure("keywords", keywordsSchema())
	ensure("awards", awardsSchema())
	ensure("citations", citationsSchema())

	// Verification flows expire through a TTL index; no validator.
	ensure("flows", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}


/* ------------------------- JSON-Schema docs ---------------------- */

func enumOf[T ~string](vals []T) bson.A {
	out := make(bson.A, 0, len(vals))
	for _, v := range vals {
		out = append(out, string(v))
	}
	return out
}

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func accountsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "email_ci", "password_hash", "role", "active", "profile"},
			"properties": bson.M{
				"email":         nonBlank,
				"email_ci":      nonBlank,
				"password_hash": nonBlank,
				"role":          bson.M{"enum": enumOf(models.AllRoles)},
				"active":        bson.M{"bsonType": "bool"},
				"profile": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"approved":       bson.M{"bsonType": "bool"},
						"email_verified": bson.M{"bsonType": "bool"},
						"consent_status": bson.M{"enum": bson.A{
							string(models.ConsentNotConsented),
							string(models.ConsentPendingGuardian),
							string(models.ConsentConsented),
						}},
						"verification_attempts": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
					},
				},
			},
		},
	}
}

func authorsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"first_name", "last_name", "first_name_ci", "last_name_ci"},
			"properties": bson.M{
				"first_name":     nonBlank,
				"last_name":      nonBlank,
				"first_name_ci":  nonBlank,
				"last_name_ci":   nonBlank,
				"middle_initial": bson.M{"bsonType": "string", "maxLength": 1},
				"user_id":        bson.M{"bsonType": bson.A{"objectId", "null"}},
				"g11_batch":      bson.M{"bsonType": "string", "pattern": `^\d{4}-\d{4}$`},
				"g12_batch":      bson.M{"bsonType": "string", "pattern": `^\d{4}-\d{4}$`},
			},
		},
	}
}

func papersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "title_ci", "grade_level", "strand", "research_design", "school_year", "author_ids"},
			"properties": bson.M{
				"title":           nonBlank,
				"title_ci":        nonBlank,
				"grade_level":     bson.M{"enum": bson.A{models.Grade11, models.Grade12}},
				"strand":          bson.M{"enum": enumOf(models.AllStrands)},
				"research_design": bson.M{"enum": enumOf(models.AllDesigns)},
				"school_year":     bson.M{"bsonType": "string", "pattern": `^\d{4}-\d{4}$`},
				"author_ids":      bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"keyword_ids":     bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
				"award_ids":       bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}},
			},
		},
	}
}

func keywordsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"word", "word_ci"},
			"properties": bson.M{
				"word":    nonBlank,
				"word_ci": nonBlank,
			},
		},
	}
}

func awardsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci"},
			"properties": bson.M{
				"name":    nonBlank,
				"name_ci": nonBlank,
			},
		},
	}
}

// A citation names its source either as a repository paper or as free text.
func citationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"paper_id", "citation_date"},
			"properties": bson.M{
				"paper_id":          bson.M{"bsonType": "objectId"},
				"cited_by_paper_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
				"cited_by_external": bson.M{"bsonType": "string"},
				"citation_date":     bson.M{"bsonType": "date"},
			},
			"anyOf": bson.A{
				bson.M{"required": bson.A{"cited_by_paper_id"}},
				bson.M{"required": bson.A{"cited_by_external"}},
			},
		},
	}
}
