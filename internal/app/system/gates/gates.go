// Package gates provides access gates for HTTP handlers.
//
// # Two tiers
//
//  1. Site-wide middleware (Approval) decides, from the path alone, whether
//     the current visitor may reach a page at all: anonymous visitors see
//     only public pages, unapproved accounts are parked on the pending
//     dashboard, and stored PDFs are shielded from both.
//
//  2. Route-level middleware (auth.RequireSignedIn, auth.RequireCapability)
//     enforces role capabilities. Handlers behind it read the user with
//     authz.UserCtx(r).
package gates

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
)

// Paths used by the gate.
const (
	PendingPath   = "/accounts/pending"
	DashboardPath = "/dashboard"
)

// PublicPrefixes are reachable without an account. "/" matches only the
// home page; every other entry matches itself and anything below it.
var PublicPrefixes = []string{
	"/",
	"/about",
	"/terms",
	"/papers",
	"/authors",
	"/login",
	"/accounts/register",
	"/accounts/forgot-password",
	"/accounts/verify-password-reset",
	"/accounts/resend-password-reset",
	"/accounts/verify-email",
	"/accounts/resend-verification",
	"/static",
	"/health",
	"/metrics",
	"/forbidden",
	"/unauthorized",
}

// unapprovedExtra are reachable by signed-in but unapproved accounts in
// addition to the public pages.
var unapprovedExtra = []string{
	PendingPath,
	"/logout",
}

// guestOnly pages redirect signed-in users to the dashboard.
var guestOnly = []string{"/login", "/accounts/register"}

func underPrefix(path, prefix string) bool {
	if prefix == "/" {
		return path == "/"
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func matchAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if underPrefix(path, p) {
			return true
		}
	}
	return false
}

// IsPublic reports whether path is reachable anonymously.
func IsPublic(path string) bool { return matchAny(path, PublicPrefixes) }

// IsShieldedFile reports whether path serves a stored PDF.
func IsShieldedFile(path string) bool {
	if strings.HasPrefix(path, "/accounts/consent-file/") {
		return true
	}
	if strings.HasPrefix(path, "/papers/") && strings.HasSuffix(path, "/file") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

// Approval is the site-wide access gate. It must run after
// auth.SessionManager.LoadSessionUser.
func Approval(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		u, signedIn := auth.CurrentUser(r)

		if !signedIn {
			if IsShieldedFile(path) || !IsPublic(path) {
				uierrors.RenderNoAccess(w, r)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodGet && matchAny(path, guestOnly) {
			http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
			return
		}

		if u.MayEnter() {
			next.ServeHTTP(w, r)
			return
		}

		if IsShieldedFile(path) {
			uierrors.RenderForbidden(w, r, "Your account must be approved to access this file.", PendingPath)
			return
		}
		if IsPublic(path) || matchAny(path, unapprovedExtra) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", PendingPath)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.Redirect(w, r, PendingPath, http.StatusSeeOther)
	})
}
