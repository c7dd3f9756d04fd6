// internal/app/features/errors/render.go
package errors

import (
	"embed"
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	nav "github.com/dalemusser/waffle/pantry/httpnav"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "errors",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}

func render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "error_page", data)
}

// RenderUnauthorized shows a friendly "sign in required" page.
// If backURL is empty, it will default to /login.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, backURL string) {
	if backURL == "" {
		backURL = "/login"
	}
	render(w, r, http.StatusUnauthorized, newPageData(r, "Sign in required", "Please sign in to continue.", backURL))
}

// RenderForbidden shows a friendly access error page with a message.
// If backURL is empty, it resolves a safe back URL with a default fallback.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if backURL == "" {
		backURL = nav.ResolveBackURL(r, "/")
	}
	render(w, r, http.StatusForbidden, newPageData(r, "Access denied", msg, backURL))
}

// RenderNoAccess is shown to anonymous visitors on members-only pages.
func RenderNoAccess(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusForbidden, newPageData(r, "Members only",
		"This page is available to registered, approved members. Please sign in or create an account.", "/login"))
}

// RenderConflict reports a state conflict the user must resolve, such as an
// author identity already claimed by another account.
func RenderConflict(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if backURL == "" {
		backURL = nav.ResolveBackURL(r, "/")
	}
	render(w, r, http.StatusConflict, newPageData(r, "Conflict", msg, backURL))
}

// RenderNotFound shows a 404 page.
func RenderNotFound(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if backURL == "" {
		backURL = nav.ResolveBackURL(r, "/")
	}
	render(w, r, http.StatusNotFound, newPageData(r, "Not found", msg, backURL))
}
