// Package accountstore persists Accounts and their embedded Profiles.
package accountstore

import (
	"context"
	"errors"
	"regexp"
	"sort"
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
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("an account with this email already exists")
	// ErrStale is returned when a guarded update finds the account in a
	// different state than the caller observed.
	ErrStale = errors.New("account changed concurrently")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("accounts")}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func pendingNameCI(p models.Profile) string {
	parts := []string{p.PendingFirstName, p.PendingMiddleInitial, p.PendingLastName, p.PendingSuffix}
	return text.Fold(strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
}

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// Create inserts a new account with its profile. The account starts active,
// unapproved, unverified and not consented.
func (s *Store) Create(ctx context.Context, a models.Account) (models.Account, error) {
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.Email = NormalizeEmail(a.Email)
	a.EmailCI = text.Fold(a.Email)
	a.Active = true
	a.CreatedAt = now
	a.UpdatedAt = now

	p := &a.Profile
	p.PendingFirstName = strings.TrimSpace(p.PendingFirstName)
	p.PendingMiddleInitial = strings.TrimSpace(p.PendingMiddleInitial)
	p.PendingLastName = strings.TrimSpace(p.PendingLastName)
	p.PendingSuffix = strings.TrimSpace(p.PendingSuffix)
	p.PendingG11 = strings.TrimSpace(p.PendingG11)
	p.PendingG12 = strings.TrimSpace(p.PendingG12)
	p.PendingNameCI = pendingNameCI(*p)
	p.ConsentStatus = p.ConsentStatus.Normalize()

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Account{}, ErrDuplicateEmail
		}
		return models.Account{}, err
	}
	return a, nil
}

// GetByID loads an account by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return models.Account{}, mapErr(err)
	}
	return a, nil
}

// GetByEmail looks up an account by case/diacritic-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, bson.M{"email_ci": text.Fold(NormalizeEmail(email))}).Decode(&a); err != nil {
		return models.Account{}, mapErr(err)
	}
	return a, nil
}

// EmailExists reports whether an account already uses email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"email_ci": text.Fold(NormalizeEmail(email))}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) updateOne(ctx context.Context, filter bson.M, set bson.M, unset bson.M) error {
	set["updated_at"] = time.Now().UTC()
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Verification & password                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// SaveVerification persists the verification fields of p: code and issue
// time, verified flag, attempt counter and lockout.
func (s *Store) SaveVerification(ctx context.Context, id primitive.ObjectID, p models.Profile) error {
	set := bson.M{
		"profile.email_verified":        p.EmailVerified,
		"profile.verification_attempts": p.VerificationAttempts,
	}
	unset := bson.M{}

	if p.VerificationCode != "" {
		set["profile.verification_code"] = p.VerificationCode
	} else {
		unset["profile.verification_code"] = ""
	}
	if p.VerificationCodeCreated != nil {
		set["profile.verification_code_created"] = *p.VerificationCodeCreated
	} else {
		unset["profile.verification_code_created"] = ""
	}
	if p.VerificationLockedUntil != nil {
		set["profile.verification_locked_until"] = *p.VerificationLockedUntil
	} else {
		unset["profile.verification_locked_until"] = ""
	}
	return s.updateOne(ctx, bson.M{"_id": id}, set, unset)
}

// SetPasswordHash replaces the stored bcrypt hash.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{"password_hash": hash}, nil)
}

// SetResetRequested records when a password reset was last requested.
func (s *Store) SetResetRequested(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{"profile.last_password_reset_request": at.UTC()}, nil)
}

// TouchLogin records a successful sign-in.
func (s *Store) TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{"last_login_at": at.UTC()}, nil)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Approval                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// ListPending returns unapproved, non-admin accounts, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]models.Account, error) {
	filter := bson.M{
		"profile.approved": false,
		"role":             bson.M{"$ne": models.RoleAdmin},
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PendingEdit holds the registration data an admin may correct before
// approving.
type PendingEdit struct {
	FirstName     string
	MiddleInitial string
	LastName      string
	Suffix        string
	TookSHS       bool
	G11           string
	G12           string
	Role          models.Role
}

// UpdatePending overwrites the pending identity fields and role.
func (s *Store) UpdatePending(ctx context.Context, id primitive.ObjectID, e PendingEdit) error {
	p := models.Profile{
		PendingFirstName:     strings.TrimSpace(e.FirstName),
		PendingMiddleInitial: strings.TrimSpace(e.MiddleInitial),
		PendingLastName:      strings.TrimSpace(e.LastName),
		PendingSuffix:        strings.TrimSpace(e.Suffix),
	}
	set := bson.M{
		"profile.pending_first_name":     p.PendingFirstName,
		"profile.pending_middle_initial": p.PendingMiddleInitial,
		"profile.pending_last_name":      p.PendingLastName,
		"profile.pending_suffix":         p.PendingSuffix,
		"profile.pending_name_ci":        pendingNameCI(p),
		"profile.took_shs":               e.TookSHS,
		"profile.pending_g11":            strings.TrimSpace(e.G11),
		"profile.pending_g12":            strings.TrimSpace(e.G12),
	}
	if e.Role.Valid() {
		set["role"] = e.Role
	}
	return s.updateOne(ctx, bson.M{"_id": id}, set, nil)
}

// MarkApproved flips an unapproved profile to approved and records its
// identity links. It returns ErrStale when the profile is already approved.
func (s *Store) MarkApproved(ctx context.Context, id primitive.ObjectID, authorIDs, paperIDs []primitive.ObjectID, at time.Time) error {
	set := bson.M{
		"profile.approved":    true,
		"profile.approved_at": at.UTC(),
		"profile.author_ids":  nonNil(authorIDs),
		"profile.paper_ids":   nonNil(paperIDs),
	}
	err := s.updateOne(ctx, bson.M{"_id": id, "profile.approved": false}, set, nil)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetByID(ctx, id); getErr == nil {
			return ErrStale
		}
	}
	return err
}

// SetLinks replaces the profile's identity and paper links.
func (s *Store) SetLinks(ctx context.Context, id primitive.ObjectID, authorIDs, paperIDs []primitive.ObjectID) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"profile.author_ids": nonNil(authorIDs),
		"profile.paper_ids":  nonNil(paperIDs),
	}, nil)
}

// LinkPaper adds paperID to every profile linked to one of authorIDs.
func (s *Store) LinkPaper(ctx context.Context, paperID primitive.ObjectID, authorIDs []primitive.ObjectID) error {
	if len(authorIDs) == 0 {
		return nil
	}
	_, err := s.c.UpdateMany(ctx,
		bson.M{"profile.author_ids": bson.M{"$in": authorIDs}},
		bson.M{"$addToSet": bson.M{"profile.paper_ids": paperID}},
	)
	return err
}

// UnlinkPaper removes paperID from every profile.
func (s *Store) UnlinkPaper(ctx context.Context, paperID primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx,
		bson.M{"profile.paper_ids": paperID},
		bson.M{"$pull": bson.M{"profile.paper_ids": paperID}},
	)
	return err
}

// Delete removes the account (and its embedded profile) and returns the
// removed document so callers can clean up stored files.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (models.Account, error) {
	var a models.Account
	if err := s.c.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return models.Account{}, mapErr(err)
	}
	return a, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Consent                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// ConsentUpdate is the new consent state written by SetConsent.
type ConsentUpdate struct {
	Status models.ConsentStatus
	Date   *time.Time
	File   string
}

// SetConsent writes the consent fields, but only while the profile is still
// in the expected status. It returns ErrStale otherwise.
func (s *Store) SetConsent(ctx context.Context, id primitive.ObjectID, expect models.ConsentStatus, u ConsentUpdate) error {
	set := bson.M{"profile.consent_status": u.Status}
	unset := bson.M{}
	if u.Date != nil {
		set["profile.consent_date"] = u.Date.UTC()
	} else {
		unset["profile.consent_date"] = ""
	}
	if u.File != "" {
		set["profile.consent_file"] = u.File
	} else {
		unset["profile.consent_file"] = ""
	}

	filter := bson.M{"_id": id, "profile.consent_status": expect}
	if expect == models.ConsentNotConsented {
		// Accounts created before consent tracking have no status field.
		filter = bson.M{"_id": id, "profile.consent_status": bson.M{"$in": []any{expect, nil, ""}}}
	}
	err := s.updateOne(ctx, filter, set, unset)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetByID(ctx, id); getErr == nil {
			return ErrStale
		}
	}
	return err
}

// ListConsentPending returns profiles awaiting guardian-consent review.
func (s *Store) ListConsentPending(ctx context.Context) ([]models.Account, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"profile.consent_status": models.ConsentPendingGuardian},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConsentStatuses returns the consent status of each listed account. Unknown
// ids are absent from the map.
func (s *Store) ConsentStatuses(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.ConsentStatus, error) {
	out := make(map[primitive.ObjectID]models.ConsentStatus, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1, "profile.consent_status": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID      primitive.ObjectID `bson:"_id"`
			Profile struct {
				ConsentStatus models.ConsentStatus `bson:"consent_status"`
			} `bson:"profile"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.Profile.ConsentStatus.Normalize()
	}
	return out, cur.Err()
}

// ConsentedIDs returns the ids of every account whose consent is granted.
func (s *Store) ConsentedIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	vals, err := s.c.Distinct(ctx, "_id", bson.M{"profile.consent_status": models.ConsentConsented})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| User management                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// SetActive enables or disables sign-in.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{"active": active}, nil)
}

// AdminEdit holds every field the user-management screen may change.
type AdminEdit struct {
	PendingEdit
	Birthdate     *time.Time
	Active        bool
	ConsentStatus models.ConsentStatus
}

// UpdateAdmin applies an admin edit. Approval is not changed here; it goes
// through the approval workflow so identities stay consistent.
func (s *Store) UpdateAdmin(ctx context.Context, id primitive.ObjectID, e AdminEdit) error {
	if err := s.UpdatePending(ctx, id, e.PendingEdit); err != nil {
		return err
	}
	set := bson.M{
		"active":                 e.Active,
		"profile.consent_status": e.ConsentStatus.Normalize(),
	}
	unset := bson.M{}
	if e.Birthdate != nil {
		set["birthdate"] = e.Birthdate.UTC()
	}
	if e.ConsentStatus.Normalize() == models.ConsentNotConsented {
		unset["profile.consent_date"] = ""
	}
	return s.updateOne(ctx, bson.M{"_id": id}, set, unset)
}

// Sort orders for List.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortName   = "name"
	SortEmail  = "email"
)

// ListFilter narrows the user-management list.
type ListFilter struct {
	Search   string // matches email or pending name
	Role     models.Role
	Approved *bool
	Consent  models.ConsentStatus
	Batch    string // matches either batch year
	Sort     string
	Skip     int64
	Limit    int64
}

func (f ListFilter) query() bson.M {
	q := bson.M{}
	var and []bson.M

	if s := strings.TrimSpace(f.Search); s != "" {
		pat := regexp.QuoteMeta(text.Fold(s))
		and = append(and, bson.M{"$or": []bson.M{
			{"email_ci": bson.M{"$regex": pat}},
			{"profile.pending_name_ci": bson.M{"$regex": pat}},
		}})
	}
	if f.Role.Valid() {
		q["role"] = f.Role
	}
	if f.Approved != nil {
		q["profile.approved"] = *f.Approved
	}
	if f.Consent != "" {
		q["profile.consent_status"] = f.Consent
	}
	if b := strings.TrimSpace(f.Batch); b != "" {
		and = append(and, bson.M{"$or": []bson.M{
			{"profile.pending_g11": b},
			{"profile.pending_g12": b},
		}})
	}
	if len(and) > 0 {
		q["$and"] = and
	}
	return q
}

func (f ListFilter) sort() bson.D {
	switch f.Sort {
	case SortOldest:
		return bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	case SortName:
		return bson.D{{Key: "profile.pending_last_name", Value: 1}, {Key: "profile.pending_first_name", Value: 1}, {Key: "_id", Value: 1}}
	case SortEmail:
		return bson.D{{Key: "email_ci", Value: 1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
}

// List returns one page of accounts matching f and the total match count.
func (s *Store) List(ctx context.Context, f ListFilter) ([]models.Account, int64, error) {
	q := f.query()
	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(f.sort()).SetSkip(f.Skip)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Emails maps each existing id in ids to its email address.
func (s *Store) Emails(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"email": 1})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var a struct {
			ID    primitive.ObjectID `bson:"_id"`
			Email string             `bson:"email"`
		}
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out[a.ID] = a.Email
	}
	return out, cur.Err()
}

// CountByApproval returns (approved, pending) counts for the admin dashboard.
func (s *Store) CountByApproval(ctx context.Context) (approved, pending int64, err error) {
	approved, err = s.c.CountDocuments(ctx, bson.M{"profile.approved": true})
	if err != nil {
		return 0, 0, err
	}
	pending, err = s.c.CountDocuments(ctx, bson.M{"profile.approved": false, "role": bson.M{"$ne": models.RoleAdmin}})
	return approved, pending, err
}

// DistinctBatches lists every batch year used by any profile, for filters.
func (s *Store) DistinctBatches(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	for _, field := range []string{"profile.pending_g11", "profile.pending_g12"} {
		vals, err := s.c.Distinct(ctx, field, bson.M{})
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if b, ok := v.(string); ok && b != "" {
				seen[b] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out, nil
}

// EnsureAdmin creates or promotes the bootstrap admin account.
func (s *Store) EnsureAdmin(ctx context.Context, email, passwordHash string) (created bool, err error) {
	existing, err := s.GetByEmail(ctx, email)
	switch {
	case err == nil:
		set := bson.M{"role": models.RoleAdmin, "active": true, "profile.approved": true, "profile.email_verified": true}
		return false, s.updateOne(ctx, bson.M{"_id": existing.ID}, set, nil)
	case errors.Is(err, ErrNotFound):
		now := time.Now().UTC()
		_, err = s.Create(ctx, models.Account{
			Email:        email,
			PasswordHash: passwordHash,
			Role:         models.RoleAdmin,
			Profile: models.Profile{
				PendingFirstName: "Site",
				PendingLastName:  "Administrator",
				Approved:         true,
				ApprovedAt:       &now,
				EmailVerified:    true,
			},
		})
		return err == nil, err
	default:
		return false, err
	}
}

func nonNil(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}
