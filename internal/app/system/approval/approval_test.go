package approval_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	"github.com/dalemusser/scholarhub/internal/app/system/approval"
	"github.com/dalemusser/scholarhub/internal/app/system/registration"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

/*──────────────────────────── in-memory fakes ────────────────────────────*/

type fakeAccounts struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Account
}

func newFakeAccounts(accts ...models.Account) *fakeAccounts {
	f := &fakeAccounts{byID: map[primitive.ObjectID]models.Account{}}
	for _, a := range accts {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) GetByID(_ context.Context, id primitive.ObjectID) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return models.Account{}, accountstore.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) UpdatePending(_ context.Context, id primitive.ObjectID, e accountstore.PendingEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return accountstore.ErrNotFound
	}
	a.Profile.PendingFirstName = e.FirstName
	a.Profile.PendingMiddleInitial = e.MiddleInitial
	a.Profile.PendingLastName = e.LastName
	a.Profile.PendingSuffix = e.Suffix
	a.Profile.TookSHS = e.TookSHS
	a.Profile.PendingG11 = e.G11
	a.Profile.PendingG12 = e.G12
	a.Role = e.Role
	f.byID[id] = a
	return nil
}

func (f *fakeAccounts) MarkApproved(_ context.Context, id primitive.ObjectID, authorIDs, paperIDs []primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return accountstore.ErrNotFound
	}
	if a.Profile.Approved {
		return accountstore.ErrStale
	}
	a.Profile.Approved = true
	a.Profile.ApprovedAt = &at
	a.Profile.AuthorIDs = authorIDs
	a.Profile.PaperIDs = paperIDs
	f.byID[id] = a
	return nil
}

type fakeAuthors struct {
	mu      sync.Mutex
	all     []models.Author
	creates int
	updates int
}

func (f *fakeAuthors) GetByAccount(_ context.Context, id primitive.ObjectID) (models.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.all {
		if a.ClaimedBy(id) {
			return a, nil
		}
	}
	return models.Author{}, authorstore.ErrNotFound
}

func (f *fakeAuthors) FindByName(_ context.Context, name models.Author) (models.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name.Normalize()
	for _, a := range f.all {
		if a.SameName(name) {
			return a, nil
		}
	}
	return models.Author{}, authorstore.ErrNotFound
}

func (f *fakeAuthors) Claim(_ context.Context, authorID, accountID primitive.ObjectID, d models.Author) (models.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.all {
		if a.ID != authorID {
			continue
		}
		if a.Claimed() && !a.ClaimedBy(accountID) {
			return models.Author{}, authorstore.ErrAlreadyClaimed
		}
		uid := accountID
		a.UserID = &uid
		a.G11Batch, a.G12Batch, a.Birthdate = d.G11Batch, d.G12Batch, d.Birthdate
		f.all[i] = a
		return a, nil
	}
	return models.Author{}, authorstore.ErrNotFound
}

func (f *fakeAuthors) Create(_ context.Context, a models.Author) (models.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.Normalize()
	for _, x := range f.all {
		if x.SameName(a) || (a.Claimed() && x.ClaimedBy(*a.UserID)) {
			return models.Author{}, authorstore.ErrIdentityConflict
		}
	}
	a.ID = primitive.NewObjectID()
	f.all = append(f.all, a)
	f.creates++
	return a, nil
}

func (f *fakeAuthors) Update(_ context.Context, a models.Author) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.Normalize()
	idx := -1
	for i, x := range f.all {
		if x.ID == a.ID {
			idx = i
		} else if x.SameName(a) {
			return authorstore.ErrIdentityConflict
		}
	}
	if idx < 0 {
		return authorstore.ErrNotFound
	}
	f.all[idx] = a
	f.updates++
	return nil
}

func (f *fakeAuthors) Release(_ context.Context, accountID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.all {
		if a.ClaimedBy(accountID) {
			f.all[i].UserID = nil
		}
	}
	return nil
}

func (f *fakeAuthors) byID(id primitive.ObjectID) models.Author {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.all {
		if a.ID == id {
			return a
		}
	}
	return models.Author{}
}

func (f *fakeAuthors) ListUnclaimedMatching(_ context.Context, name models.Author) ([]models.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name.Normalize()
	var out []models.Author
	for _, a := range f.all {
		if !a.Claimed() && a.SameName(name) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakePapers struct {
	byAuthor map[primitive.ObjectID][]primitive.ObjectID
}

func (f fakePapers) IDsByAuthors(_ context.Context, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	out := []primitive.ObjectID{}
	for _, id := range ids {
		out = append(out, f.byAuthor[id]...)
	}
	return out, nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []models.Account
}

func (n *recordingNotifier) Approved(a models.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, a)
}

func student(first, last string) models.Account {
	birth := time.Date(2008, 1, 2, 0, 0, 0, 0, time.UTC)
	return models.Account{
		ID:        primitive.NewObjectID(),
		Email:     first + "@example.com",
		Role:      models.RoleSHSStudent,
		Birthdate: &birth,
		Profile: models.Profile{
			PendingFirstName: first,
			PendingLastName:  last,
			PendingG11:       "2023-2024",
		},
	}
}

type harness struct {
	accounts *fakeAccounts
	authors  *fakeAuthors
	papers   fakePapers
	notify   *recordingNotifier
	svc      *approval.Service
}

func newHarness(accts ...models.Account) *harness {
	h := &harness{
		accounts: newFakeAccounts(accts...),
		authors:  &fakeAuthors{},
		papers:   fakePapers{byAuthor: map[primitive.ObjectID][]primitive.ObjectID{}},
		notify:   &recordingNotifier{},
	}
	h.svc = approval.New(h.accounts, h.authors, h.papers, h.notify, nil)
	return h
}

/*──────────────────────────────── tests ──────────────────────────────────*/

func TestApprove_CreatesIdentity(t *testing.T) {
	a := student("ana", "reyes")
	h := newHarness(a)

	res, err := h.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Author)
	assert.Equal(t, approval.Created, res.Resolution)
	assert.Equal(t, "Ana", res.Author.FirstName)
	assert.True(t, res.Author.ClaimedBy(a.ID))
	assert.Equal(t, "2023-2024", res.Author.G11Batch)

	stored, _ := h.accounts.GetByID(context.Background(), a.ID)
	assert.True(t, stored.Profile.Approved)
	assert.Equal(t, []primitive.ObjectID{res.Author.ID}, stored.Profile.AuthorIDs)
	assert.Len(t, h.notify.got, 1)
}

func TestApprove_ClaimsUnclaimedAndLinksPapers(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)
	existing, err := h.authors.Create(context.Background(), models.Author{FirstName: "ANA", LastName: "reyes"})
	require.NoError(t, err)
	paperID := primitive.NewObjectID()
	h.papers.byAuthor[existing.ID] = []primitive.ObjectID{paperID}

	res, err := h.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.Claimed, res.Resolution)
	assert.Equal(t, existing.ID, res.Author.ID)
	assert.Equal(t, 1, h.authors.creates)
	assert.Equal(t, []primitive.ObjectID{paperID}, res.Account.Profile.PaperIDs)
	require.NotNil(t, res.Author.Birthdate)
}

func TestApprove_MiddleInitialMustMatch(t *testing.T) {
	a := student("Ana", "Reyes")
	a.Profile.PendingMiddleInitial = "B"
	h := newHarness(a)
	_, err := h.authors.Create(context.Background(), models.Author{FirstName: "Ana", LastName: "Reyes"})
	require.NoError(t, err)

	res, err := h.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.Created, res.Resolution)
	assert.Equal(t, 2, h.authors.creates)
}

func TestApprove_ReusesLinkedIdentity(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)
	uid := a.ID
	mine, err := h.authors.Create(context.Background(), models.Author{FirstName: "Ana", LastName: "Reyes", UserID: &uid})
	require.NoError(t, err)

	res, err := h.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.Reused, res.Resolution)
	assert.Equal(t, mine.ID, res.Author.ID)
}

func TestApprove_ConflictLeavesStateUntouched(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)
	other := primitive.NewObjectID()
	_, err := h.authors.Create(context.Background(), models.Author{FirstName: "Ana", LastName: "Reyes", UserID: &other})
	require.NoError(t, err)

	_, err = h.svc.Approve(context.Background(), a.ID)
	assert.ErrorIs(t, err, approval.ErrIdentityConflict)
	assert.ErrorIs(t, err, authorstore.ErrIdentityConflict)

	stored, _ := h.accounts.GetByID(context.Background(), a.ID)
	assert.False(t, stored.Profile.Approved)
	assert.Len(t, h.authors.all, 1)
	assert.Empty(t, h.notify.got)
}

func TestApprove_Idempotent(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)

	_, err := h.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	_, err = h.svc.Approve(context.Background(), a.ID)
	assert.ErrorIs(t, err, approval.ErrAlreadyApproved)
	assert.Equal(t, 1, h.authors.creates)
	assert.Len(t, h.notify.got, 1)
}

func TestApprove_NotFound(t *testing.T) {
	h := newHarness()
	_, err := h.svc.Approve(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, approval.ErrNotFound)
}

func TestApprove_TeacherGetsNoIdentity(t *testing.T) {
	a := student("Tess", "Santos")
	a.Role = models.RoleResearchTeacher
	h := newHarness(a)

	res, err := h.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Author)
	assert.Zero(t, h.authors.creates)
}

func TestApprove_AlumniOnlyWhenTookSHS(t *testing.T) {
	a := student("Al", "Umni")
	a.Role = models.RoleAlumni
	b := student("Bea", "Umni")
	b.Role = models.RoleAlumni
	b.Profile.TookSHS = true
	h := newHarness(a, b)

	resA, err := h.svc.Approve(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Nil(t, resA.Author)

	resB, err := h.svc.Approve(context.Background(), b.ID)
	require.NoError(t, err)
	assert.NotNil(t, resB.Author)
}

func TestApprove_ConcurrentSameAccount_OneIdentity(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Approve(context.Background(), a.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, approval.ErrAlreadyApproved), "unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, h.authors.all, 1)
}

func TestApproveWithEdit_RenamesLinkedAuthor(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)
	uid := a.ID
	mine, err := h.authors.Create(context.Background(), models.Author{FirstName: "Ana", LastName: "Reyes", UserID: &uid})
	require.NoError(t, err)

	res, err := h.svc.ApproveWithEdit(context.Background(), a.ID, approval.Edit{
		FirstName: " Anna ", LastName: "Reyes", Role: models.RoleSHSStudent, G11: "2023-2024",
	})
	require.NoError(t, err)
	assert.Equal(t, mine.ID, res.Author.ID)
	assert.Equal(t, "Anna", res.Author.FirstName)
	assert.Equal(t, 1, h.authors.updates)
}

func TestApproveWithEdit_ValidationErrors(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)

	_, err := h.svc.ApproveWithEdit(context.Background(), a.ID, approval.Edit{
		FirstName: "Ana", Role: models.RoleSHSStudent,
	})
	var verrs registration.Errors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has(registration.FieldLast))
	assert.True(t, verrs.Has(registration.FieldG11))

	stored, _ := h.accounts.GetByID(context.Background(), a.ID)
	assert.False(t, stored.Profile.Approved)
}

func TestApproveWithEdit_RoleChangeDropsIdentity(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)

	res, err := h.svc.ApproveWithEdit(context.Background(), a.ID, approval.Edit{
		FirstName: "Ana", LastName: "Reyes", Role: models.RoleNonResearchTeacher,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Author)
	assert.Equal(t, models.RoleNonResearchTeacher, res.Account.Role)
}

func TestApproveWithEdit_ConflictKeepsPendingProfile(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)
	other := primitive.NewObjectID()
	_, err := h.authors.Create(context.Background(), models.Author{FirstName: "Maria", LastName: "Cruz", UserID: &other})
	require.NoError(t, err)

	_, err = h.svc.ApproveWithEdit(context.Background(), a.ID, approval.Edit{
		FirstName: "Maria", LastName: "Cruz", Role: models.RoleSHSStudent, G11: "2023-2024",
	})
	assert.ErrorIs(t, err, approval.ErrIdentityConflict)

	stored, _ := h.accounts.GetByID(context.Background(), a.ID)
	assert.False(t, stored.Profile.Approved)
	assert.Equal(t, "Ana", stored.Profile.PendingFirstName)
	assert.Equal(t, "Reyes", stored.Profile.PendingLastName)
	assert.Len(t, h.authors.all, 1)
	assert.Empty(t, h.notify.got)
}

func TestApproveWithEdit_RenameOntoOtherAuthorKeepsPendingProfile(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)
	uid := a.ID
	mine, err := h.authors.Create(context.Background(), models.Author{FirstName: "Ana", LastName: "Reyes", UserID: &uid})
	require.NoError(t, err)
	_, err = h.authors.Create(context.Background(), models.Author{FirstName: "Maria", LastName: "Cruz"})
	require.NoError(t, err)

	_, err = h.svc.ApproveWithEdit(context.Background(), a.ID, approval.Edit{
		FirstName: "Maria", LastName: "Cruz", Role: models.RoleSHSStudent, G11: "2023-2024",
	})
	assert.ErrorIs(t, err, approval.ErrIdentityConflict)

	stored, _ := h.accounts.GetByID(context.Background(), a.ID)
	assert.Equal(t, "Ana", stored.Profile.PendingFirstName)
	assert.Equal(t, "Ana", h.authors.byID(mine.ID).FirstName)
	assert.Zero(t, h.authors.updates)
}

func TestApproveWithEdit_ClaimsUnclaimedUnderNewName(t *testing.T) {
	a := student("Ana", "Reyes")
	h := newHarness(a)
	target, err := h.authors.Create(context.Background(), models.Author{FirstName: "Maria", LastName: "Cruz"})
	require.NoError(t, err)

	res, err := h.svc.ApproveWithEdit(context.Background(), a.ID, approval.Edit{
		FirstName: "maria", LastName: "cruz", Role: models.RoleSHSStudent, G11: "2023-2024",
	})
	require.NoError(t, err)
	assert.Equal(t, approval.Claimed, res.Resolution)
	assert.Equal(t, target.ID, res.Author.ID)
}

func TestApproveWithEdit_TeacherRoleReleasesAuthor(t *testing.T) {
	a := student("Ana", "Reyes")
	uid := a.ID
	h := newHarness()
	mine, err := h.authors.Create(context.Background(), models.Author{FirstName: "Ana", LastName: "Reyes", UserID: &uid})
	require.NoError(t, err)
	a.Profile.AuthorIDs = []primitive.ObjectID{mine.ID}
	h.accounts = newFakeAccounts(a)
	h.svc = approval.New(h.accounts, h.authors, h.papers, h.notify, nil)

	res, err := h.svc.ApproveWithEdit(context.Background(), a.ID, approval.Edit{
		FirstName: "Ana", LastName: "Reyes", Role: models.RoleResearchTeacher,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Author)
	assert.False(t, h.authors.byID(mine.ID).Claimed())
	assert.NotContains(t, res.Account.Profile.AuthorIDs, mine.ID)

	stored, _ := h.accounts.GetByID(context.Background(), a.ID)
	assert.Empty(t, stored.Profile.AuthorIDs)
	assert.True(t, stored.Profile.Approved)
}

func TestMatchHints(t *testing.T) {
	a := student("Ana", "Reyes")
	teacher := student("Ana", "Reyes")
	teacher.Role = models.RoleResearchTeacher
	h := newHarness(a, teacher)
	_, err := h.authors.Create(context.Background(), models.Author{FirstName: "Ana", LastName: "Reyes"})
	require.NoError(t, err)

	hints, err := h.svc.MatchHints(context.Background(), []models.Account{a, teacher})
	require.NoError(t, err)
	require.Len(t, hints, 2)
	assert.Len(t, hints[0].Candidates, 1)
	assert.Empty(t, hints[1].Candidates)
}
