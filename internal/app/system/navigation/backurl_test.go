package navigation

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeBackURL(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"no return", "/users/1/delete", "/users"},
		{"list with filters", "/users/1/delete?return=" + url.QueryEscape("/users?role=alumni&page=2"), "/users?role=alumni&page=2"},
		{"other prefix", "/users/1/delete?return=/papers", "/users"},
		{"action page", "/users/1/delete?return=/users/2/edit", "/users"},
		{"open redirect", "/users/1/delete?return=" + url.QueryEscape("https://evil.example/users"), "/users"},
		{"protocol relative", "/users/1/delete?return=" + url.QueryEscape("//evil.example/users"), "/users"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tc.target, nil)
			assert.Equal(t, tc.want, SafeBackURL(r, UsersBackURL))
		})
	}
}

func TestSafeBackURL_FormValue(t *testing.T) {
	body := url.Values{"return": {"/papers/manage?q=soil"}}.Encode()
	r := httptest.NewRequest(http.MethodPost, "/papers/manage/1/delete", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	assert.Equal(t, "/papers/manage?q=soil", SafeBackURL(r, ManagePapersBackURL))
}
