// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the name of the audit event collection.
const Collection = "audit_events"

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLoginFailedRateLimit     = "login_failed_rate_limit"
	EventLogout                   = "logout"
	EventRegistered               = "registered"
	EventEmailVerified            = "email_verified"
	EventVerificationFailed       = "verification_failed"
	EventPasswordReset            = "password_reset"
)

// Admin event types
const (
	EventAccountApproved = "account_approved"
	EventAccountDenied   = "account_denied"
	EventConsentApproved = "consent_approved"
	EventConsentDenied   = "consent_denied"
	EventUserUpdated     = "user_updated"
	EventUserDisabled    = "user_disabled"
	EventUserEnabled     = "user_enabled"
	EventUserDeleted     = "user_deleted"
	EventPaperCreated    = "paper_created"
	EventPaperUpdated    = "paper_updated"
	EventPaperDeleted    = "paper_deleted"
)

// AuthEvents lists the auth event types in display order.
var AuthEvents = []string{
	EventLoginSuccess,
	EventLoginFailedUserNotFound,
	EventLoginFailedWrongPassword,
	EventLoginFailedUserDisabled,
	EventLoginFailedRateLimit,
	EventLogout,
	EventRegistered,
	EventEmailVerified,
	EventVerificationFailed,
	EventPasswordReset,
}

// AdminEvents lists the admin event types in display order.
var AdminEvents = []string{
	EventAccountApproved,
	EventAccountDenied,
	EventConsentApproved,
	EventConsentDenied,
	EventUserUpdated,
	EventUserDisabled,
	EventUserEnabled,
	EventUserDeleted,
	EventPaperCreated,
	EventPaperUpdated,
	EventPaperDeleted,
}

var failedLogins = []string{
	EventLoginFailedUserNotFound,
	EventLoginFailedWrongPassword,
	EventLoginFailedUserDisabled,
	EventLoginFailedRateLimit,
}

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// UserID is the affected account; ActorID is the admin who acted, if any.
	UserID  *primitive.ObjectID `bson:"user_id,omitempty"`
	ActorID *primitive.ObjectID `bson:"actor_id,omitempty"`

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Details varies by event type (email, paper title, resolution, ...).
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	UserID    *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

func (f QueryFilter) query() bson.M {
	q := bson.M{}
	if f.UserID != nil {
		q["$or"] = []bson.M{{"user_id": *f.UserID}, {"actor_id": *f.UserID}}
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.EventType != "" {
		q["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		tq := bson.M{}
		if f.StartTime != nil {
			tq["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			tq["$lte"] = *f.EndTime
		}
		q["timestamp"] = tq
	}
	return q
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query returns events matching filter, newest first. A zero Limit means 100.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	return s.find(ctx, filter.query(), opts)
}

// Count returns the number of events matching filter.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// GetByUser returns recent events that affected or were performed by userID.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{UserID: &userID, Limit: limit})
}

// GetFailedLogins returns failed sign-in attempts since the given time.
func (s *Store) GetFailedLogins(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	q := bson.M{
		"category":   CategoryAuth,
		"success":    false,
		"event_type": bson.M{"$in": failedLogins},
		"timestamp":  bson.M{"$gte": since},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, q, opts)
}

func (s *Store) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]Event, error) {
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
