package logout_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/scholarhub/internal/app/features/logout"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	flowstore "github.com/dalemusser/scholarhub/internal/app/store/flows"
	"github.com/dalemusser/scholarhub/internal/app/system/accountflow"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*logout.Handler, *accountflow.Manager, *flowstore.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	flows := flowstore.New(db, 0)
	flow := accountflow.New(testutil.NewSessionManager(t), flows, accountstore.New(db), testutil.NewCodeRecorder(), nil, logger)
	return logout.NewHandler(flow, logger), flow, flows
}

func TestServeLogout_RedirectsToHome(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeLogout(rec, httptest.NewRequest("POST", "/logout", nil))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location: got %q, want %q", loc, "/")
	}
}

func TestServeLogout_HTMX(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/logout", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.ServeLogout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
}

func TestServeLogout_ForgetsVerifiedAccounts(t *testing.T) {
	h, flow, flows := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Seed a flow with a verified account and a session pointing at it.
	seed := httptest.NewRecorder()
	st, err := flow.Load(ctx, httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	st.Flow.MarkVerified(primitive.NewObjectID())
	require.NoError(t, flow.Save(ctx, seed, httptest.NewRequest("GET", "/", nil), st))

	req := testutil.CarryCookies(seed, httptest.NewRequest("POST", "/logout", nil))
	rec := httptest.NewRecorder()
	h.ServeLogout(rec, req)

	_, err = flows.Get(ctx, st.Flow.ID)
	assert.ErrorIs(t, err, flowstore.ErrNotFound)

	var expired bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == testutil.TestSessionName && c.MaxAge < 0 {
			expired = true
		}
	}
	assert.True(t, expired, "session cookie should be expired")
}
