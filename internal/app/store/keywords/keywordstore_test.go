package keywordstore_test

import (
	"testing"

	keywordstore "github.com/dalemusser/scholarhub/internal/app/store/keywords"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Ensure_IsCaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := keywordstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, err := store.Ensure(ctx, "Photosynthesis")
	require.NoError(t, err)
	b, err := store.Ensure(ctx, "  photosynthesis ")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Photosynthesis", b.Word)
}

func TestStore_EnsureAll_DedupesAndSkipsBlanks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := keywordstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ids, err := store.EnsureAll(ctx, "algae, , *Chlorella vulgaris*, ALGAE")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	found, err := store.SearchIDs(ctx, "chlorella")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
