package paperstore_test

import (
	"testing"
	"time"

	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validPaper(title string) models.Paper {
	return models.Paper{
		Title:          title,
		GradeLevel:     models.Grade12,
		Strand:         models.StrandHUMSS,
		ResearchDesign: models.DesignSurvey,
		SchoolYear:     "2024-2025",
	}
}

func TestStore_Create_RejectsIllegalDesign(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paperstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := validPaper("Bad Design")
	p.ResearchDesign = models.DesignExperimental // HUMSS grade 12 only allows SURVEY

	_, err := store.Create(ctx, p)
	assert.ErrorIs(t, err, models.ErrInvalidDesign)

	p.GradeLevel = models.Grade11
	p.ResearchDesign = models.DesignQualitative
	created, err := store.Create(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "bad design", created.TitleCI)
}

func TestStore_Update_RevalidatesAndKeepsCreatedAt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paperstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, validPaper("Original"))
	require.NoError(t, err)

	created.Strand = models.StrandSTEM
	created.ResearchDesign = models.DesignQualitative // grade 12 STEM does not allow QUALITATIVE
	assert.ErrorIs(t, store.Update(ctx, created), models.ErrInvalidDesign)

	created.ResearchDesign = models.DesignCapstone
	created.Title = "Renamed"
	require.NoError(t, store.Update(ctx, created))

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestStore_Search_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := paperstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateAuthor(ctx, "Ana", "", "Reyes", "", nil)
	kw := fx.CreateKeyword(ctx, "algae")

	p1 := validPaper("Water Quality")
	p1.AuthorIDs = []primitive.ObjectID{author.ID}
	p1.PublicationDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Create(ctx, p1)
	require.NoError(t, err)

	p2 := validPaper("Study Habits")
	p2.KeywordIDs = []primitive.ObjectID{kw.ID}
	p2.SchoolYear = "2023-2024"
	p2.PublicationDate = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.Create(ctx, p2)
	require.NoError(t, err)

	got, total, err := store.Search(ctx, paperstore.SearchFilter{Query: "water"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, "Water Quality", got[0].Title)

	// A term can also match through keyword ids.
	_, total, _ = store.Search(ctx, paperstore.SearchFilter{Query: "algae", TermKeywordIDs: []primitive.ObjectID{kw.ID}})
	assert.Equal(t, int64(1), total)

	_, total, _ = store.Search(ctx, paperstore.SearchFilter{SchoolYear: "2023-2024"})
	assert.Equal(t, int64(1), total)

	_, total, _ = store.Search(ctx, paperstore.SearchFilter{AuthorIDs: []primitive.ObjectID{author.ID}})
	assert.Equal(t, int64(1), total)

	got, _, _ = store.Search(ctx, paperstore.SearchFilter{Sort: paperstore.SortOldest})
	require.Len(t, got, 2)
	assert.Equal(t, "Study Habits", got[0].Title)

	got, total, _ = store.Search(ctx, paperstore.SearchFilter{Limit: 1})
	assert.Len(t, got, 1)
	assert.Equal(t, int64(2), total)
}

func TestStore_SchoolYearsAndCounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paperstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := validPaper("A")
	a.SchoolYear = "2024-2025"
	b := validPaper("B")
	b.SchoolYear = "2022-2023"
	b.Strand = models.StrandABM
	for _, p := range []models.Paper{a, b} {
		_, err := store.Create(ctx, p)
		require.NoError(t, err)
	}

	years, err := store.SchoolYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2022-2023", "2024-2025"}, years)

	counts, err := store.CountByStrand(ctx)
	require.NoError(t, err)
	assert.Len(t, counts, 2)
}

func TestStore_RemoveAuthorAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := paperstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	author := fx.CreateAuthor(ctx, "Ana", "", "Reyes", "", nil)
	p := fx.CreatePaper(ctx, "Shared", author.ID)

	require.NoError(t, store.RemoveAuthor(ctx, author.ID))
	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AuthorIDs)

	deleted, err := store.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shared", deleted.Title)

	_, err = store.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, paperstore.ErrNotFound)
}
