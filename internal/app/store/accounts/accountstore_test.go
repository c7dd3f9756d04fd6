package accountstore_test

import (
	"errors"
	"testing"
	"time"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create_Defaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Account{
		Email: "  Ana@Example.COM ",
		Role:  models.RoleSHSStudent,
		Profile: models.Profile{
			PendingFirstName: " Ana ",
			PendingLastName:  "Cruz",
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Email != "ana@example.com" {
		t.Errorf("email not normalized: %q", created.Email)
	}
	if !created.Active {
		t.Error("new account should be active")
	}
	if created.Profile.Approved {
		t.Error("new account should not be approved")
	}
	if created.Profile.ConsentStatus != models.ConsentNotConsented {
		t.Errorf("consent: got %q", created.Profile.ConsentStatus)
	}
	if created.Profile.PendingFirstName != "Ana" {
		t.Errorf("first name not trimmed: %q", created.Profile.PendingFirstName)
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Account{Email: "dup@example.com", Role: models.RoleAlumni}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.Account{Email: "DUP@example.com", Role: models.RoleAlumni})
	if !errors.Is(err, accountstore.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}

	exists, err := store.EmailExists(ctx, "Dup@Example.com")
	if err != nil || !exists {
		t.Errorf("EmailExists = %v, %v", exists, err)
	}
}

func TestStore_GetByEmail_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, accountstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SaveVerification_RoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	acct := fx.CreateAccount(ctx, "v@example.com", models.RoleSHSStudent)

	now := time.Now().UTC().Truncate(time.Millisecond)
	lock := now.Add(24 * time.Hour)
	p := acct.Profile
	p.VerificationCode = "123456"
	p.VerificationCodeCreated = &now
	p.VerificationAttempts = 10
	p.VerificationLockedUntil = &lock
	p.EmailVerified = false
	if err := store.SaveVerification(ctx, acct.ID, p); err != nil {
		t.Fatalf("SaveVerification failed: %v", err)
	}

	got, err := store.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Profile.VerificationCode != "123456" || got.Profile.VerificationAttempts != 10 {
		t.Errorf("verification fields not saved: %+v", got.Profile)
	}
	if got.Profile.VerificationLockedUntil == nil || !got.Profile.VerificationLockedUntil.Equal(lock) {
		t.Errorf("lock not saved: %v", got.Profile.VerificationLockedUntil)
	}

	// Clearing the code and lock removes them.
	p.VerificationCode = ""
	p.VerificationCodeCreated = nil
	p.VerificationLockedUntil = nil
	p.VerificationAttempts = 0
	p.EmailVerified = true
	if err := store.SaveVerification(ctx, acct.ID, p); err != nil {
		t.Fatalf("SaveVerification failed: %v", err)
	}
	got, _ = store.GetByID(ctx, acct.ID)
	if got.Profile.VerificationCode != "" || got.Profile.VerificationLockedUntil != nil || !got.Profile.EmailVerified {
		t.Errorf("verification fields not cleared: %+v", got.Profile)
	}
}

func TestStore_MarkApproved_OnlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	acct := fx.CreateAccount(ctx, "p@example.com", models.RoleSHSStudent)
	authorID := primitive.NewObjectID()

	if err := store.MarkApproved(ctx, acct.ID, []primitive.ObjectID{authorID}, nil, time.Now()); err != nil {
		t.Fatalf("MarkApproved failed: %v", err)
	}
	got, _ := store.GetByID(ctx, acct.ID)
	if !got.Profile.Approved || got.Profile.ApprovedAt == nil {
		t.Error("expected account approved with timestamp")
	}
	if len(got.Profile.AuthorIDs) != 1 || got.Profile.AuthorIDs[0] != authorID {
		t.Errorf("author links: %v", got.Profile.AuthorIDs)
	}

	err := store.MarkApproved(ctx, acct.ID, nil, nil, time.Now())
	if !errors.Is(err, accountstore.ErrStale) {
		t.Errorf("second approval: expected ErrStale, got %v", err)
	}

	if err := store.MarkApproved(ctx, primitive.NewObjectID(), nil, nil, time.Now()); !errors.Is(err, accountstore.ErrNotFound) {
		t.Errorf("unknown account: expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListPending_ExcludesApprovedAndAdmins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateAccount(ctx, "pending@example.com", models.RoleSHSStudent)
	fx.CreateAccount(ctx, "done@example.com", models.RoleAlumni, testutil.Approved())
	fx.CreateAdmin(ctx, "root@example.com")

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Email != "pending@example.com" {
		t.Errorf("unexpected pending list: %+v", pending)
	}
}

func TestStore_SetConsent_GuardsExpectedStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	acct := fx.CreateAccount(ctx, "c@example.com", models.RoleSHSStudent, testutil.Approved(), testutil.BornYearsAgo(16))

	err := store.SetConsent(ctx, acct.ID, models.ConsentNotConsented, accountstore.ConsentUpdate{
		Status: models.ConsentPendingGuardian,
		File:   "consent_forms/2026/10/abc.pdf",
	})
	if err != nil {
		t.Fatalf("SetConsent failed: %v", err)
	}

	// A stale expectation is rejected.
	err = store.SetConsent(ctx, acct.ID, models.ConsentNotConsented, accountstore.ConsentUpdate{Status: models.ConsentConsented})
	if !errors.Is(err, accountstore.ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}

	pending, err := store.ListConsentPending(ctx)
	if err != nil {
		t.Fatalf("ListConsentPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Profile.ConsentFile == "" {
		t.Errorf("unexpected consent queue: %+v", pending)
	}
}

func TestStore_List_FiltersAndCounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateAccount(ctx, "a1@example.com", models.RoleSHSStudent, testutil.WithName("Ana", "", "Reyes", ""), testutil.WithBatches("2022-2023", "2023-2024"))
	fx.CreateAccount(ctx, "a2@example.com", models.RoleSHSStudent, testutil.WithName("Ben", "", "Santos", ""), testutil.Approved())
	fx.CreateAccount(ctx, "t1@example.com", models.RoleResearchTeacher, testutil.Approved())

	approved := true
	got, total, err := store.List(ctx, accountstore.ListFilter{Approved: &approved, Role: models.RoleSHSStudent})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(got) != 1 || got[0].Email != "a2@example.com" {
		t.Errorf("approved students: total=%d got=%+v", total, got)
	}

	got, total, _ = store.List(ctx, accountstore.ListFilter{Search: "reyes"})
	if total != 1 || got[0].Email != "a1@example.com" {
		t.Errorf("search by name: total=%d", total)
	}

	got, total, _ = store.List(ctx, accountstore.ListFilter{Batch: "2023-2024"})
	if total != 1 || got[0].Email != "a1@example.com" {
		t.Errorf("batch filter: total=%d", total)
	}

	_, total, _ = store.List(ctx, accountstore.ListFilter{Limit: 2})
	if total != 3 {
		t.Errorf("total should ignore limit, got %d", total)
	}
}

func TestStore_Delete_ReturnsDocument(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	acct := fx.CreateAccount(ctx, "gone@example.com", models.RoleAlumni)
	deleted, err := store.Delete(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted.Email != "gone@example.com" {
		t.Errorf("returned wrong document: %q", deleted.Email)
	}
	if _, err := store.GetByID(ctx, acct.ID); !errors.Is(err, accountstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFetcher_InactiveAccountIsNil(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	acct := fx.CreateAccount(ctx, "f@example.com", models.RoleSHSStudent, testutil.WithName("Faye", "", "Lim", ""))
	fetcher := accountstore.NewFetcher(db)

	su := fetcher.FetchUser(ctx, acct.ID.Hex())
	if su == nil {
		t.Fatal("expected session user")
	}
	if su.Name != "Faye Lim" || su.Approved {
		t.Errorf("unexpected session user: %+v", su)
	}

	if err := store.SetActive(ctx, acct.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if fetcher.FetchUser(ctx, acct.ID.Hex()) != nil {
		t.Error("deactivated account should not load")
	}
	if fetcher.FetchUser(ctx, "not-an-id") != nil {
		t.Error("bad id should not load")
	}
}
