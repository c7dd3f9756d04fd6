package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/store/audit"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	require.NoError(t, store.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        "192.168.1.1",
		UserAgent: "TestBrowser/1.0",
		Success:   true,
		Details:   map[string]string{"email": "ana@example.com"},
	}))

	events, err := store.GetByUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.False(t, e.ID.IsZero(), "ID is generated")
	assert.False(t, e.Timestamp.IsZero(), "timestamp is set")
	assert.Equal(t, "192.168.1.1", e.IP)
	assert.Equal(t, "ana@example.com", e.Details["email"])
}

func TestStore_GetByUser_MatchesActor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	target := primitive.NewObjectID()
	require.NoError(t, store.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAccountApproved,
		UserID:    &target,
		ActorID:   &admin,
		Success:   true,
	}))

	byActor, err := store.GetByUser(ctx, admin, 10)
	require.NoError(t, err)
	assert.Len(t, byActor, 1)

	byTarget, err := store.GetByUser(ctx, target, 10)
	require.NoError(t, err)
	assert.Len(t, byTarget, 1)
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	seed := []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Success: true, Timestamp: now.Add(-3 * time.Hour)},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword, Timestamp: now.Add(-2 * time.Hour)},
		{Category: audit.CategoryAdmin, EventType: audit.EventPaperDeleted, Success: true, Timestamp: now.Add(-time.Hour)},
	}
	for _, e := range seed {
		require.NoError(t, store.Log(ctx, e))
	}

	all, err := store.Query(ctx, audit.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, audit.EventPaperDeleted, all[0].EventType, "newest first")

	auth, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	require.NoError(t, err)
	assert.Len(t, auth, 2)

	n, err := store.Count(ctx, audit.QueryFilter{EventType: audit.EventPaperDeleted})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	since := now.Add(-150 * time.Minute)
	recent, err := store.Query(ctx, audit.QueryFilter{StartTime: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	page, err := store.Query(ctx, audit.QueryFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, audit.EventLoginFailedWrongPassword, page[0].EventType)
}

func TestStore_GetFailedLogins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, et := range []string{audit.EventLoginSuccess, audit.EventLoginFailedUserNotFound, audit.EventLoginFailedRateLimit} {
		require.NoError(t, store.Log(ctx, audit.Event{
			Category:  audit.CategoryAuth,
			EventType: et,
			Success:   et == audit.EventLoginSuccess,
		}))
	}

	failed, err := store.GetFailedLogins(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, failed, 2)
	for _, e := range failed {
		assert.False(t, e.Success)
	}
}
