package auditlog

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/store/audit"
	"github.com/dalemusser/scholarhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := NewHandler(audit.New(db), accountstore.New(db), uierrors.NewErrorLogger(logger), logger)
	assert.NotNil(t, h.Events)
	assert.NotNil(t, h.Accounts)
}

func TestParseFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/audit?category=admin&event_type=paper_deleted&start_date=2026-03-01&end_date=2026-03-02", nil)
	f, start, end := parseFilter(req)

	assert.Equal(t, audit.CategoryAdmin, f.Category)
	assert.Equal(t, audit.EventPaperDeleted, f.EventType)
	assert.Equal(t, "2026-03-01", start)
	assert.Equal(t, "2026-03-02", end)
	require.NotNil(t, f.StartTime)
	require.NotNil(t, f.EndTime)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *f.StartTime)
	assert.Equal(t, 2, f.EndTime.Day(), "end date covers the whole day")
	assert.Equal(t, 23, f.EndTime.Hour())
}

func TestParseFilter_IgnoresUnknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/audit?category=security&event_type=nope&start_date=yesterday", nil)
	f, start, end := parseFilter(req)

	assert.Empty(t, f.Category)
	assert.Empty(t, f.EventType)
	assert.Nil(t, f.StartTime)
	assert.Empty(t, start)
	assert.Empty(t, end)
}

func TestParseFilter_EventMustMatchCategory(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/audit?category=auth&event_type=paper_deleted", nil)
	f, _, _ := parseFilter(req)
	assert.Equal(t, audit.CategoryAuth, f.Category)
	assert.Empty(t, f.EventType)
}

func TestEventTypesFor(t *testing.T) {
	assert.Equal(t, audit.AuthEvents, eventTypesFor(audit.CategoryAuth))
	assert.Equal(t, audit.AdminEvents, eventTypesFor(audit.CategoryAdmin))
	assert.Len(t, eventTypesFor(""), len(audit.AuthEvents)+len(audit.AdminEvents))
	assert.Nil(t, eventTypesFor("other"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "login failed wrong password", label(audit.EventLoginFailedWrongPassword))
}
