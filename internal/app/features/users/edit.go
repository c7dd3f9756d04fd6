// internal/app/features/users/edit.go
package users

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/scholarhub/internal/app/features/errors"
	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	"github.com/dalemusser/scholarhub/internal/app/system/approval"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/navigation"
	"github.com/dalemusser/scholarhub/internal/app/system/registration"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// editForm mirrors the edit screen. Birth date parts stay strings so a bad
// value can be shown back.
type editForm struct {
	accountstore.PendingEdit
	BirthMonth string
	BirthDay   string
	BirthYear  string
	Active     bool
	Consent    models.ConsentStatus
}

type editData struct {
	viewdata.BaseVM
	ID       string
	Email    string
	Approved bool
	Self     bool
	Form     editForm
	Roles    []option
	Consents []option
	Errors   registration.Errors
}

func formFromAccount(a models.Account) editForm {
	f := editForm{
		PendingEdit: accountstore.PendingEdit{
			FirstName:     a.Profile.PendingFirstName,
			MiddleInitial: a.Profile.PendingMiddleInitial,
			LastName:      a.Profile.PendingLastName,
			Suffix:        a.Profile.PendingSuffix,
			TookSHS:       a.Profile.TookSHS,
			G11:           a.Profile.PendingG11,
			G12:           a.Profile.PendingG12,
			Role:          a.Role,
		},
		Active:  a.Active,
		Consent: a.Profile.ConsentStatus.Normalize(),
	}
	if a.Birthdate != nil {
		f.BirthMonth = strconv.Itoa(int(a.Birthdate.Month()))
		f.BirthDay = strconv.Itoa(a.Birthdate.Day())
		f.BirthYear = strconv.Itoa(a.Birthdate.Year())
	}
	return f
}

func formFromRequest(r *http.Request) editForm {
	role, _ := models.ParseRole(r.FormValue("role"))
	return editForm{
		PendingEdit: accountstore.PendingEdit{
			FirstName:     strings.TrimSpace(r.FormValue(registration.FieldFirst)),
			MiddleInitial: strings.TrimSpace(r.FormValue(registration.FieldMiddle)),
			LastName:      strings.TrimSpace(r.FormValue(registration.FieldLast)),
			Suffix:        strings.TrimSpace(r.FormValue(registration.FieldSuffix)),
			TookSHS:       r.FormValue("took_shs") != "",
			G11:           strings.TrimSpace(r.FormValue(registration.FieldG11)),
			G12:           strings.TrimSpace(r.FormValue(registration.FieldG12)),
			Role:          role,
		},
		BirthMonth: strings.TrimSpace(r.FormValue("birth_month")),
		BirthDay:   strings.TrimSpace(r.FormValue("birth_day")),
		BirthYear:  strings.TrimSpace(r.FormValue("birth_year")),
		Active:     r.FormValue("active") != "",
		Consent:    models.ConsentStatus(r.FormValue("consent_status")),
	}
}

// validate checks f and returns the edit to store.
func validate(f editForm, now time.Time) (accountstore.AdminEdit, registration.Errors) {
	check := f.PendingEdit
	if check.Role == models.RoleAdmin {
		// Admins are not registrable and carry no batch years.
		check.Role = models.RoleResearchTeacher
	}
	errs := approval.ValidateEdit(check)
	if !f.Role.Valid() {
		errs[registration.FieldRole] = "Choose a valid role."
	}

	e := accountstore.AdminEdit{PendingEdit: f.PendingEdit, Active: f.Active, ConsentStatus: f.Consent.Normalize()}
	if f.BirthMonth != "" || f.BirthDay != "" || f.BirthYear != "" {
		birth, msg := registration.ParseBirthdate(f.BirthMonth, f.BirthDay, f.BirthYear, now)
		if msg != "" {
			errs[registration.FieldBirth] = msg
		} else {
			e.Birthdate = &birth
		}
	}
	if e.Role != models.RoleSHSStudent && !(e.Role == models.RoleAlumni && e.TookSHS) {
		e.G11, e.G12 = "", ""
	}
	return e, errs
}

func (h *Handler) renderEdit(w http.ResponseWriter, r *http.Request, status int, a models.Account, f editForm, errs registration.Errors) {
	data := editData{
		BaseVM:   viewdata.NewBaseVM(r, "Edit user", ListPath),
		ID:       a.ID.Hex(),
		Email:    a.Email,
		Approved: a.Profile.Approved,
		Self:     isSelf(r, a.ID),
		Form:     f,
		Errors:   errs,
	}
	for _, role := range models.AllRoles {
		data.Roles = append(data.Roles, option{Value: string(role), Label: role.Label(), Selected: role == f.Role})
	}
	for _, c := range []models.ConsentStatus{models.ConsentNotConsented, models.ConsentPendingGuardian, models.ConsentConsented} {
		data.Consents = append(data.Consents, option{Value: string(c), Label: c.Label(), Selected: c == f.Consent.Normalize()})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "users_edit", data)
}

func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	id, ok := accountID(r)
	if !ok {
		uierrors.RenderNotFound(w, r, "User not found.", ListPath)
		return models.Account{}, false
	}
	a, err := h.Accounts.GetByID(ctx, id)
	if errors.Is(err, accountstore.ErrNotFound) {
		uierrors.RenderNotFound(w, r, "That user no longer exists.", ListPath)
		return a, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load user failed", err, "A database error occurred.", ListPath)
		return a, false
	}
	return a, true
}

// ServeEdit handles GET /users/{id}/edit.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	h.renderEdit(w, r, http.StatusOK, a, formFromAccount(a), nil)
}

// HandleEdit handles POST /users/{id}/edit. An admin cannot deactivate or
// demote their own account here.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", ListPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	f := formFromRequest(r)
	e, errs := validate(f, time.Now())
	if isSelf(r, a.ID) {
		if !e.Active {
			errs["active"] = "You cannot deactivate your own account."
		}
		if e.Role != models.RoleAdmin {
			errs[registration.FieldRole] = "You cannot remove your own admin role."
		}
	}
	if len(errs) > 0 {
		h.renderEdit(w, r, http.StatusUnprocessableEntity, a, f, errs)
		return
	}

	if err := h.Accounts.UpdateAdmin(ctx, a.ID, e); err != nil {
		if errors.Is(err, accountstore.ErrNotFound) {
			uierrors.RenderNotFound(w, r, "That user no longer exists.", ListPath)
			return
		}
		h.ErrLog.LogServerError(w, r, "update user failed", err, "Could not save the user.", ListPath)
		return
	}

	edited := a
	edited.Role = e.Role
	edited.Profile.TookSHS = e.TookSHS
	if !edited.NeedsAuthoringIdentity() {
		h.releaseIdentity(ctx, a)
	}

	h.Log.Info("user updated",
		zap.String("account_id", a.ID.Hex()),
		zap.String("role", string(e.Role)),
		zap.Bool("active", e.Active))
	h.AuditLog.UserUpdated(ctx, r, a.ID, string(e.Role))
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Saved "+a.Email+".")
	http.Redirect(w, r, navigation.SafeBackURL(r, navigation.UsersBackURL), http.StatusSeeOther)
}

// releaseIdentity unclaims the author held by an account whose new role
// does not author papers and drops it from the account's links.
func (h *Handler) releaseIdentity(ctx context.Context, a models.Account) {
	held, err := h.Authors.GetByAccount(ctx, a.ID)
	if errors.Is(err, authorstore.ErrNotFound) {
		return
	}
	if err != nil {
		h.Log.Warn("lookup author by account failed", zap.String("account_id", a.ID.Hex()), zap.Error(err))
		return
	}
	if err := h.Authors.Release(ctx, a.ID); err != nil {
		h.Log.Warn("release author failed", zap.String("account_id", a.ID.Hex()), zap.Error(err))
		return
	}

	authorIDs := make([]primitive.ObjectID, 0, len(a.Profile.AuthorIDs))
	for _, id := range a.Profile.AuthorIDs {
		if id != held.ID {
			authorIDs = append(authorIDs, id)
		}
	}
	paperIDs := a.Profile.PaperIDs
	if len(authorIDs) == 0 {
		paperIDs = nil
	}
	if err := h.Accounts.SetLinks(ctx, a.ID, authorIDs, paperIDs); err != nil {
		h.Log.Warn("update account links failed", zap.String("account_id", a.ID.Hex()), zap.Error(err))
	}
	if h.Catalog != nil {
		h.Catalog.AuthorsChanged(ctx)
	}
	h.Log.Info("authoring identity released",
		zap.String("account_id", a.ID.Hex()),
		zap.String("author_id", held.ID.Hex()))
}
