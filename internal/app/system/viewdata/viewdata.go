// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"html/template"
	"net/http"

	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	nav "github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// DefaultSiteName is used until SetSiteName is called.
const DefaultSiteName = "ScholarHub"

var siteName = DefaultSiteName

// SetSiteName sets the name shown in page headers and titles.
// Call this once at startup from bootstrap.
func SetSiteName(name string) {
	if name != "" {
		siteName = name
	}
}

// SiteName returns the configured site name.
func SiteName() string { return siteName }

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", "/default-back"),
//	}
type BaseVM struct {
	SiteName string

	// User context (from auth middleware)
	IsLoggedIn bool
	Role       string
	RoleLabel  string
	UserName   string
	Approved   bool

	// Capabilities, for showing and hiding navigation.
	IsAdmin          bool
	IsTeacher        bool
	IsStudent        bool
	CanManagePapers  bool
	CanReviewConsent bool

	// Page context
	Title       string
	BackURL     string
	CurrentPath string

	// CSRF protection
	CSRFToken string
	CSRFField template.HTML

	Flashes []auth.Flash
}

// NewBaseVM creates a fully populated BaseVM for a page.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := BaseVM{
		SiteName:    siteName,
		Title:       title,
		BackURL:     nav.ResolveBackURL(r, backDefault),
		CurrentPath: r.URL.Path,
		CSRFToken:   csrf.Token(r),
		CSRFField:   csrf.TemplateField(r),
		Flashes:     auth.Flashes(r),
	}
	if u, ok := auth.CurrentUser(r); ok {
		vm.IsLoggedIn = true
		vm.Role = string(u.Role)
		vm.RoleLabel = u.Role.Label()
		vm.UserName = u.Name
		vm.Approved = u.MayEnter()
		vm.IsAdmin = u.Role.CanManageUsers()
		vm.IsTeacher = u.Role.IsTeacher()
		vm.IsStudent = u.Role.IsStudent()
		vm.CanManagePapers = u.Role.CanManagePapers()
		vm.CanReviewConsent = u.Role.CanReviewConsent()
	}
	return vm
}

// HasRole is a template helper.
func (vm BaseVM) HasRole(role models.Role) bool { return vm.Role == string(role) }
