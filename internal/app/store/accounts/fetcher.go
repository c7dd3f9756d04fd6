package accountstore

import (
	"context"
	"strings"

	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.UserFetcher to load fresh account data on each
// request.
type Fetcher struct {
	accounts *mongo.Collection
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{accounts: db.Collection("accounts")}
}

// FetchUser retrieves an account by ID and returns nil if it is not found,
// deactivated, or if any error occurs.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var a models.Account
	proj := options.FindOne().SetProjection(bson.M{
		"_id":                        1,
		"email":                      1,
		"role":                       1,
		"active":                     1,
		"profile.pending_first_name": 1,
		"profile.pending_last_name":  1,
		"profile.approved":           1,
		"profile.consent_status":     1,
	})
	if err := f.accounts.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&a); err != nil {
		return nil
	}
	if !a.Active {
		return nil
	}

	return &auth.SessionUser{
		ID:            a.ID.Hex(),
		Name:          DisplayName(a),
		Email:         a.Email,
		Role:          a.Role,
		Approved:      a.Profile.Approved,
		ConsentStatus: a.Profile.ConsentStatus.Normalize(),
	}
}

// DisplayName is the short greeting name for an account.
func DisplayName(a models.Account) string {
	name := strings.TrimSpace(a.Profile.PendingFirstName + " " + a.Profile.PendingLastName)
	if name == "" {
		return a.Email
	}
	return name
}
