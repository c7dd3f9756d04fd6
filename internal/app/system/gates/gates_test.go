package gates_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/gates"
	"github.com/dalemusser/scholarhub/internal/domain/models"
)

// Helper to create a request with user context
func withTestUser(r *http.Request, role models.Role, approved bool) *http.Request {
	user := &auth.SessionUser{
		ID:       "507f1f77bcf86cd799439011", // Valid ObjectID hex
		Name:     "Test User",
		Email:    "test@example.com",
		Role:     role,
		Approved: approved,
	}
	return auth.WithTestUser(r, user)
}

// serve runs the gate in front of a handler that records whether it ran.
// Error pages may panic without a booted template engine; the status code
// is written before rendering so it is still observable.
func serve(req *http.Request) (*httptest.ResponseRecorder, bool) {
	reached := false
	h := gates.Approval(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	func() {
		defer func() { _ = recover() }()
		h.ServeHTTP(rec, req)
	}()
	return rec, reached
}

func TestIsPublic(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/about", true},
		{"/papers", true},
		{"/papers/search", true},
		{"/authors", true},
		{"/accounts/register", true},
		{"/accounts/forgot-password", true},
		{"/accounts/resend-password-reset", true},
		{"/dashboard", false},
		{"/users", false},
		{"/accounts/pending-accounts", false},
		{"/papersx", false},
		{"/accounts/registered", false},
	}
	for _, tc := range tests {
		if got := gates.IsPublic(tc.path); got != tc.want {
			t.Errorf("IsPublic(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestApproval_AnonymousPublicAllowed(t *testing.T) {
	_, reached := serve(httptest.NewRequest("GET", "/papers/search?q=algae", nil))
	if !reached {
		t.Error("anonymous visitor should reach public search")
	}
}

func TestApproval_AnonymousRestrictedIs403(t *testing.T) {
	rec, reached := serve(httptest.NewRequest("GET", "/dashboard", nil))
	if reached {
		t.Error("anonymous visitor should not reach the dashboard")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestApproval_AnonymousPDFBlocked(t *testing.T) {
	rec, reached := serve(httptest.NewRequest("GET", "/papers/507f1f77bcf86cd799439011/file", nil))
	if reached {
		t.Error("anonymous visitor should not download PDFs")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestApproval_UnapprovedRedirectsToPending(t *testing.T) {
	req := withTestUser(httptest.NewRequest("GET", "/dashboard", nil), models.RoleSHSStudent, false)
	rec, reached := serve(req)
	if reached {
		t.Error("unapproved user should not reach the dashboard")
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != gates.PendingPath {
		t.Errorf("expected redirect to pending, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestApproval_UnapprovedAllowedPaths(t *testing.T) {
	for _, path := range []string{gates.PendingPath, "/logout", "/papers", "/about"} {
		req := withTestUser(httptest.NewRequest("GET", path, nil), models.RoleResearchTeacher, false)
		if _, reached := serve(req); !reached {
			t.Errorf("unapproved user should reach %s", path)
		}
	}
}

func TestApproval_UnapprovedPDFBlocked(t *testing.T) {
	req := withTestUser(httptest.NewRequest("GET", "/accounts/consent-file/abc", nil), models.RoleSHSStudent, false)
	rec, reached := serve(req)
	if reached || rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unapproved PDF access, got %d reached=%v", rec.Code, reached)
	}
}

func TestApproval_ApprovedAndAdminPass(t *testing.T) {
	req := withTestUser(httptest.NewRequest("GET", "/papers/x/file", nil), models.RoleSHSStudent, true)
	if _, reached := serve(req); !reached {
		t.Error("approved user should reach PDF")
	}

	req = withTestUser(httptest.NewRequest("GET", "/users", nil), models.RoleAdmin, false)
	if _, reached := serve(req); !reached {
		t.Error("admin bypasses approval")
	}
}

func TestApproval_SignedInLoginRedirects(t *testing.T) {
	req := withTestUser(httptest.NewRequest("GET", "/login", nil), models.RoleAlumni, true)
	rec, reached := serve(req)
	if reached {
		t.Error("signed-in user should not see the login page")
	}
	if rec.Header().Get("Location") != gates.DashboardPath {
		t.Errorf("expected redirect to dashboard, got %q", rec.Header().Get("Location"))
	}
}
