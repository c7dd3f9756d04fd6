// Package flowstore keeps the server-side state of multi-step account flows
// (email verification and password reset). The browser only carries the
// flow id in its session cookie; the state itself, including the pending
// password hash, never leaves the server. A TTL index removes abandoned
// flows.
package flowstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultTTL is how long an idle flow survives.
const DefaultTTL = 2 * time.Hour

// ErrNotFound is returned when the flow is unknown or expired.
var ErrNotFound = errors.New("flow not found or expired")

// Purpose says why a verification code was requested.
type Purpose string

const (
	PurposeRegistration Purpose = "registration"
	PurposeLogin        Purpose = "login"
)

// PendingReset holds a password change waiting for its code.
type PendingReset struct {
	AccountID    primitive.ObjectID `bson:"account_id"`
	PasswordHash string             `bson:"password_hash"`
	RequestedAt  time.Time          `bson:"requested_at"`
}

// Flow is the per-browser verification state.
type Flow struct {
	ID string `bson:"_id"`

	PendingAccountID *primitive.ObjectID `bson:"pending_account_id,omitempty"`
	Purpose          Purpose             `bson:"purpose,omitempty"`
	ReturnURL        string              `bson:"return_url,omitempty"`

	PendingReset *PendingReset `bson:"pending_reset,omitempty"`

	// VerifiedAccounts lists accounts whose email was verified in this
	// browser session.
	VerifiedAccounts []primitive.ObjectID `bson:"verified_accounts"`

	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// IsVerified reports whether id was verified in this flow.
func (f *Flow) IsVerified(id primitive.ObjectID) bool {
	for _, v := range f.VerifiedAccounts {
		if v == id {
			return true
		}
	}
	return false
}

// MarkVerified records id as verified and clears the pending account.
func (f *Flow) MarkVerified(id primitive.ObjectID) {
	if !f.IsVerified(id) {
		f.VerifiedAccounts = append(f.VerifiedAccounts, id)
	}
	f.PendingAccountID = nil
	f.Purpose = ""
}

// StartVerification points the flow at the account awaiting a code.
func (f *Flow) StartVerification(id primitive.ObjectID, purpose Purpose, returnURL string) {
	f.PendingAccountID = &id
	f.Purpose = purpose
	f.ReturnURL = returnURL
}

type Store struct {
	c   *mongo.Collection
	ttl time.Duration
}

// New creates a Store. If ttl is 0 or negative, DefaultTTL is used.
func New(db *mongo.Database, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{c: db.Collection("flows"), ttl: ttl}
}

// NewFlow returns an unsaved flow with a fresh random id.
func (s *Store) NewFlow() *Flow {
	now := time.Now().UTC()
	return &Flow{
		ID:               uuid.NewString(),
		VerifiedAccounts: []primitive.ObjectID{},
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}
}

// Get loads a live flow. Expired documents the TTL monitor has not yet
// removed are treated as missing.
func (s *Store) Get(ctx context.Context, id string) (*Flow, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var f Flow
	err := s.c.FindOne(ctx, bson.M{"_id": id, "expires_at": bson.M{"$gt": time.Now().UTC()}}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetOrNew loads the flow with id, or returns a new unsaved one.
func (s *Store) GetOrNew(ctx context.Context, id string) (*Flow, error) {
	f, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return s.NewFlow(), nil
	}
	return f, err
}

// Save upserts f and slides its expiry forward.
func (s *Store) Save(ctx context.Context, f *Flow) error {
	f.ExpiresAt = time.Now().UTC().Add(s.ttl)
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": f.ID}, f, options.Replace().SetUpsert(true))
	return err
}

// Delete removes the flow. Deleting a missing flow is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
