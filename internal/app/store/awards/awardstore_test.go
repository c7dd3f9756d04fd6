package awardstore_test

import (
	"testing"

	awardstore "github.com/dalemusser/scholarhub/internal/app/store/awards"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Ensure_TitleCasesAndDedupes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := awardstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ids, err := store.EnsureAll(ctx, "best paper, BEST PAPER, best poster")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Best Paper", all[0].Name)
	assert.Equal(t, "Best Poster", all[1].Name)
}
