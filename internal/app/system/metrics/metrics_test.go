package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Registered()
	m.Registered()
	m.Verification("registration", "invalid")
	m.Approved("claimed")
	m.Email("verification", nil)
	m.Email("verification", errors.New("smtp down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("registration", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.approvals.WithLabelValues("claimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emails.WithLabelValues("verification", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emails.WithLabelValues("verification", "sent")))
}

func TestNilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Registered()
		m.LoginFailed()
		m.ConsentChanged("revoke")
		m.CacheLookup("hit")
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestHandler(t *testing.T) {
	m := New()
	m.LoginFailed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "scholarhub_login_failures_total 1"))
}
