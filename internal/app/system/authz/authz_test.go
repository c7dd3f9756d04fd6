package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/authz"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserCtx_Visitor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	role, name, id, ok := authz.UserCtx(req)
	if ok || role != authz.Visitor || name != "" || id != primitive.NilObjectID {
		t.Errorf("unexpected visitor context: %q %q %v %v", role, name, id, ok)
	}
}

func TestUserCtx_MalformedIDFailsClosed(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "not-hex", Role: models.RoleAdmin})
	if _, _, _, ok := authz.UserCtx(req); ok {
		t.Error("expected malformed id to be treated as signed out")
	}
	if authz.IsAdmin(req) {
		t.Error("malformed id must not grant admin")
	}
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		role          models.Role
		admin, papers bool
		consent       bool
	}{
		{models.RoleAdmin, true, true, true},
		{models.RoleResearchTeacher, false, true, true},
		{models.RoleNonResearchTeacher, false, false, true},
		{models.RoleSHSStudent, false, false, false},
		{models.RoleAlumni, false, false, false},
	}
	for _, tc := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req = auth.WithTestUser(req, &auth.SessionUser{ID: primitive.NewObjectID().Hex(), Role: tc.role})
		if got := authz.IsAdmin(req); got != tc.admin {
			t.Errorf("%s IsAdmin = %v", tc.role, got)
		}
		if got := authz.CanManagePapers(req); got != tc.papers {
			t.Errorf("%s CanManagePapers = %v", tc.role, got)
		}
		if got := authz.CanReviewConsent(req); got != tc.consent {
			t.Errorf("%s CanReviewConsent = %v", tc.role, got)
		}
	}
}

func TestMayReadPDFs(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	cases := []struct {
		user *auth.SessionUser
		want bool
	}{
		{nil, false},
		{&auth.SessionUser{ID: id, Role: models.RoleSHSStudent}, false},
		{&auth.SessionUser{ID: id, Role: models.RoleSHSStudent, Approved: true}, true},
		{&auth.SessionUser{ID: id, Role: models.RoleNonResearchTeacher}, false},
		{&auth.SessionUser{ID: id, Role: models.RoleNonResearchTeacher, Approved: true}, true},
		{&auth.SessionUser{ID: id, Role: models.RoleAdmin}, true},
	}
	for i, tc := range cases {
		req := httptest.NewRequest("GET", "/papers/x/file", nil)
		if tc.user != nil {
			req = auth.WithTestUser(req, tc.user)
		}
		if got := authz.MayReadPDFs(req); got != tc.want {
			t.Errorf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}
