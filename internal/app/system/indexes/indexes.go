// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		coll string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"accounts", ensureAccounts},
		{"authors", ensureAuthors},
		{"papers", ensurePapers},
		{"keywords", ensureKeywords},
		{"awards", ensureAwards},
		{"citations", ensureCitations},
		{"flows", ensureFlows},
		{"audit_events", ensureAuditEvents},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.coll+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                      */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(b *bool) bool { return b != nil && *b }

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// ensureIndexSet creates each desired index. An index with the same keys but a
// different name or uniqueness is dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, desired []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// Collection may not exist yet; CreateOne below creates it.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range desired {
		name, unique := "", false
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = boolVal(m.Options.Unique)
		}
		sig := keySig(m.Keys.(bson.D))

		if ex, ok := existing[sig]; ok {
			if boolVal(ex.Unique) == unique && (name == "" || ex.Name == name) {
				continue
			}
			zap.L().Info("recreating index",
				zap.String("collection", coll.Name()),
				zap.String("from", ex.Name),
				zap.String("to", name),
				zap.String("keys", sig))
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if unique && isDuplicateKeyErr(err) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
				continue
			}
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", unique))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

/* -------------------------------------------------------------------------- */
/* Collections                                                                */
/* -------------------------------------------------------------------------- */

func ensureAccounts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("accounts"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetName("uniq_accounts_email_ci").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "profile.approved", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_accounts_approved_created"),
		},
		{
			Keys:    bson.D{{Key: "profile.consent_status", Value: 1}},
			Options: options.Index().SetName("idx_accounts_consent_status"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_accounts_role_created"),
		},
	})
}

// ensureAuthors enforces the two identity invariants: the normalized name
// tuple is unique, and an account claims at most one author.
func ensureAuthors(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("authors"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "first_name", Value: 1},
				{Key: "middle_initial", Value: 1},
				{Key: "last_name", Value: 1},
				{Key: "suffix", Value: 1},
			},
			Options: options.Index().SetName("uniq_authors_name_key").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_authors_user_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"user_id": bson.M{"$type": "objectId"}}),
		},
		{
			Keys:    bson.D{{Key: "last_name_ci", Value: 1}, {Key: "first_name_ci", Value: 1}},
			Options: options.Index().SetName("idx_authors_name_ci"),
		},
		{
			Keys:    bson.D{{Key: "g11_batch", Value: 1}},
			Options: options.Index().SetName("idx_authors_g11"),
		},
		{
			Keys:    bson.D{{Key: "g12_batch", Value: 1}},
			Options: options.Index().SetName("idx_authors_g12"),
		},
	})
}

func ensurePapers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("papers"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "publication_date", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_papers_pubdate"),
		},
		{
			Keys:    bson.D{{Key: "strand", Value: 1}, {Key: "research_design", Value: 1}},
			Options: options.Index().SetName("idx_papers_strand_design"),
		},
		{
			Keys:    bson.D{{Key: "grade_level", Value: 1}},
			Options: options.Index().SetName("idx_papers_grade"),
		},
		{
			Keys:    bson.D{{Key: "school_year", Value: 1}},
			Options: options.Index().SetName("idx_papers_school_year"),
		},
		{
			Keys:    bson.D{{Key: "author_ids", Value: 1}},
			Options: options.Index().SetName("idx_papers_authors"),
		},
		{
			Keys:    bson.D{{Key: "keyword_ids", Value: 1}},
			Options: options.Index().SetName("idx_papers_keywords"),
		},
		{
			Keys:    bson.D{{Key: "title_ci", Value: 1}},
			Options: options.Index().SetName("idx_papers_title_ci"),
		},
	})
}

func ensureKeywords(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("keywords"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "word_ci", Value: 1}},
			Options: options.Index().SetName("uniq_keywords_word_ci").SetUnique(true),
		},
	})
}

func ensureAwards(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("awards"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("uniq_awards_name_ci").SetUnique(true),
		},
	})
}

func ensureCitations(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("citations"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "paper_id", Value: 1}, {Key: "citation_date", Value: -1}},
			Options: options.Index().SetName("idx_citations_paper"),
		},
	})
}

// ensureFlows adds the TTL index that expires abandoned verification and
// reset flows.
func ensureFlows(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("flows"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_flows_expires_at").SetExpireAfterSeconds(0),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("audit_events"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_event_timestamp"),
		},
	})
}
