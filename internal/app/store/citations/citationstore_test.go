package citationstore_test

import (
	"testing"

	citationstore "github.com/dalemusser/scholarhub/internal/app/store/citations"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := citationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cited := fx.CreatePaper(ctx, "Cited Paper")
	citing := fx.CreatePaper(ctx, "Citing Paper")

	_, err := store.Create(ctx, models.Citation{PaperID: cited.ID, CitedByPaperID: &citing.ID})
	require.NoError(t, err)
	_, err = store.Create(ctx, models.Citation{PaperID: cited.ID, CitedByExternal: "Journal of Things, 2025"})
	require.NoError(t, err)

	n, err := store.CountForPaper(ctx, cited.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, store.DeleteForPaper(ctx, citing.ID))
	n, _ = store.CountForPaper(ctx, cited.ID)
	assert.Equal(t, int64(1), n)
}

func TestStore_Create_RejectsMissingOrSelfSource(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := citationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := fx.CreatePaper(ctx, "Lonely Paper")

	_, err := store.Create(ctx, models.Citation{PaperID: p.ID})
	assert.ErrorIs(t, err, citationstore.ErrNoSource)

	_, err = store.Create(ctx, models.Citation{PaperID: p.ID, CitedByPaperID: &p.ID})
	assert.ErrorIs(t, err, citationstore.ErrSelfCite)
}
