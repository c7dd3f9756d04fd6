package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// FixturePassword is the plain-text password every fixture account uses.
const FixturePassword = "correct-horse"

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// AccountOption tweaks an account before it is inserted.
type AccountOption func(*models.Account)

// Approved marks the fixture account as approved.
func Approved() AccountOption {
	return func(a *models.Account) {
		now := time.Now().UTC()
		a.Profile.Approved = true
		a.Profile.ApprovedAt = &now
	}
}

// BornYearsAgo sets the birthdate so the account is the given age today.
func BornYearsAgo(years int) AccountOption {
	return func(a *models.Account) {
		b := time.Now().UTC().AddDate(-years, 0, -1)
		a.Birthdate = &b
	}
}

// WithName sets the pending name fields.
func WithName(first, middle, last, suffix string) AccountOption {
	return func(a *models.Account) {
		a.Profile.PendingFirstName = first
		a.Profile.PendingMiddleInitial = middle
		a.Profile.PendingLastName = last
		a.Profile.PendingSuffix = suffix
	}
}

// WithBatches sets took_shs and the pending batch years.
func WithBatches(g11, g12 string) AccountOption {
	return func(a *models.Account) {
		a.Profile.TookSHS = true
		a.Profile.PendingG11 = g11
		a.Profile.PendingG12 = g12
	}
}

// WithConsent sets the consent status.
func WithConsent(status models.ConsentStatus) AccountOption {
	return func(a *models.Account) {
		a.Profile.ConsentStatus = status
	}
}

// CreateAccount inserts an active, verified account with FixturePassword.
func (f *Fixtures) CreateAccount(ctx context.Context, email string, role models.Role, opts ...AccountOption) models.Account {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	birth := now.AddDate(-20, 0, 0)
	a := models.Account{
		ID:           primitive.NewObjectID(),
		Email:        email,
		EmailCI:      text.Fold(email),
		PasswordHash: string(hash),
		Role:         role,
		Birthdate:    &birth,
		Active:       true,
		Profile: models.Profile{
			PendingFirstName: "Test",
			PendingLastName:  "User",
			ConsentStatus:    models.ConsentNotConsented,
			EmailVerified:    true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(&a)
	}
	p := a.Profile
	a.Profile.PendingNameCI = text.Fold(strings.Join(strings.Fields(
		p.PendingFirstName+" "+p.PendingMiddleInitial+" "+p.PendingLastName+" "+p.PendingSuffix), " "))

	if _, err := f.db.Collection("accounts").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test account: %v", err)
	}
	return a
}

// CreateAdmin inserts an approved admin account.
func (f *Fixtures) CreateAdmin(ctx context.Context, email string) models.Account {
	f.t.Helper()
	return f.CreateAccount(ctx, email, models.RoleAdmin, Approved())
}

// CreateAuthor inserts a normalized author. userID may be nil.
func (f *Fixtures) CreateAuthor(ctx context.Context, first, middle, last, suffix string, userID *primitive.ObjectID) models.Author {
	f.t.Helper()

	now := time.Now().UTC()
	a := models.Author{
		ID:            primitive.NewObjectID(),
		FirstName:     first,
		MiddleInitial: middle,
		LastName:      last,
		Suffix:        suffix,
		UserID:        userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	a.Normalize()

	if _, err := f.db.Collection("authors").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test author: %v", err)
	}
	return a
}

// CreatePaper inserts a grade 12 STEM survey paper for the given authors.
func (f *Fixtures) CreatePaper(ctx context.Context, title string, authorIDs ...primitive.ObjectID) models.Paper {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Paper{
		ID:              primitive.NewObjectID(),
		Title:           title,
		TitleCI:         text.Fold(title),
		Abstract:        "Abstract for " + title,
		PublicationDate: now,
		AuthorIDs:       authorIDs,
		GradeLevel:      models.Grade12,
		Strand:          models.StrandSTEM,
		ResearchDesign:  models.DesignSurvey,
		SchoolYear:      "2023-2024",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.AuthorIDs == nil {
		p.AuthorIDs = []primitive.ObjectID{}
	}

	if _, err := f.db.Collection("papers").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test paper: %v", err)
	}
	return p
}

// CreateKeyword inserts a keyword.
func (f *Fixtures) CreateKeyword(ctx context.Context, word string) models.Keyword {
	f.t.Helper()

	k := models.Keyword{ID: primitive.NewObjectID(), Word: word}
	k.Normalize()
	if _, err := f.db.Collection("keywords").InsertOne(ctx, k); err != nil {
		f.t.Fatalf("failed to create test keyword: %v", err)
	}
	return k
}

// CreateAward inserts an award.
func (f *Fixtures) CreateAward(ctx context.Context, name string) models.Award {
	f.t.Helper()

	a := models.Award{ID: primitive.NewObjectID(), Name: name}
	a.Normalize()
	if _, err := f.db.Collection("awards").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test award: %v", err)
	}
	return a
}
