// internal/app/features/papers/manage_authors.go
package papers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	authorstore "github.com/dalemusser/scholarhub/internal/app/store/authors"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/catalog"
	"github.com/dalemusser/scholarhub/internal/app/system/names"
	"github.com/dalemusser/scholarhub/internal/app/system/paging"
	"github.com/dalemusser/scholarhub/internal/app/system/registration"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// AuthorsPath is the author management list. Only unclaimed authors are
// edited here; a claimed author follows its account.
const AuthorsPath = ManagePath + "/authors"

const (
	msgNameTaken = "An author with this name already exists."
	msgClaimed   = "This author is linked to an account. Edit the account instead."
)

type authorForm struct {
	FirstName     string
	MiddleInitial string
	LastName      string
	Suffix        string
	G11           string
	G12           string
}

func authorFormFromRequest(r *http.Request) authorForm {
	return authorForm{
		FirstName:     strings.TrimSpace(r.FormValue(registration.FieldFirst)),
		MiddleInitial: strings.TrimSpace(r.FormValue(registration.FieldMiddle)),
		LastName:      strings.TrimSpace(r.FormValue(registration.FieldLast)),
		Suffix:        strings.TrimSpace(r.FormValue(registration.FieldSuffix)),
		G11:           strings.TrimSpace(r.FormValue(registration.FieldG11)),
		G12:           strings.TrimSpace(r.FormValue(registration.FieldG12)),
	}
}

func authorFormFrom(a models.Author) authorForm {
	return authorForm{
		FirstName:     a.FirstName,
		MiddleInitial: a.MiddleInitial,
		LastName:      a.LastName,
		Suffix:        a.Suffix,
		G11:           a.G11Batch,
		G12:           a.G12Batch,
	}
}

// validate applies the student batch rules: at least one batch year, each
// YYYY-YYYY, and G12 one year after G11 when both are given.
func (f authorForm) validate() registration.Errors {
	errs := registration.CheckBatches(models.RoleSHSStudent, true, f.G11, f.G12)
	if f.FirstName == "" {
		errs[registration.FieldFirst] = "First name is required."
	}
	if f.LastName == "" {
		errs[registration.FieldLast] = "Last name is required."
	}
	if len([]rune(f.MiddleInitial)) > 1 {
		errs[registration.FieldMiddle] = "Middle initial must be a single letter."
	}
	return errs
}

func (f authorForm) apply(a *models.Author) {
	a.FirstName = f.FirstName
	a.MiddleInitial = f.MiddleInitial
	a.LastName = f.LastName
	a.Suffix = f.Suffix
	a.G11Batch = f.G11
	a.G12Batch = f.G12
}

type manageAuthorRow struct {
	ID      string
	Name    string
	Batches string
	Claimed bool
}

type manageAuthorsData struct {
	viewdata.BaseVM
	Search string
	Rows   []manageAuthorRow
	Total  int64
	Pager  paging.Pager

	Form   authorForm
	Error  string
	Errors registration.Errors
}

type authorEditData struct {
	viewdata.BaseVM
	ID     string
	Form   authorForm
	Error  string
	Errors registration.Errors
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (h *Handler) renderManageAuthors(w http.ResponseWriter, r *http.Request, status int, f authorForm, msg string, errs registration.Errors) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	search := strings.TrimSpace(query.Get(r, "q"))
	pg := paging.New(paging.ParsePage(r), paging.AuthorsPageSize)
	found, total, err := h.Authors.List(ctx, authorstore.ListFilter{Search: search, Skip: pg.Skip(), Limit: pg.Limit()})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list authors failed", err, "A database error occurred.", ManagePath)
		return
	}

	data := manageAuthorsData{
		BaseVM: viewdata.NewBaseVM(r, "Manage authors", ManagePath),
		Search: search,
		Total:  total,
		Pager:  pg.WithTotal(total).Pager(r),
		Form:   f,
		Error:  msg,
		Errors: errs,
	}
	for _, a := range found {
		data.Rows = append(data.Rows, manageAuthorRow{
			ID:      a.ID.Hex(),
			Name:    names.Full(a),
			Batches: batches(a),
			Claimed: a.Claimed(),
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "papers_authors_manage", data)
}

func (h *Handler) renderAuthorEdit(w http.ResponseWriter, r *http.Request, status int, id string, f authorForm, msg string, errs registration.Errors) {
	data := authorEditData{
		BaseVM: viewdata.NewBaseVM(r, "Edit author", AuthorsPath),
		ID:     id,
		Form:   f,
		Error:  msg,
		Errors: errs,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "papers_author_edit", data)
}

// ServeManageAuthors handles GET /papers/manage/authors.
func (h *Handler) ServeManageAuthors(w http.ResponseWriter, r *http.Request) {
	h.renderManageAuthors(w, r, http.StatusOK, authorForm{}, "", nil)
}

// HandleCreateAuthor handles POST /papers/manage/authors. The new author is
// unclaimed. A JSON caller gets {id, name} back for the paper form's picker.
func (h *Handler) HandleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", AuthorsPath)
		return
	}
	f := authorFormFromRequest(r)
	if errs := f.validate(); len(errs) > 0 {
		if wantsJSON(r) {
			writeJSONStatus(w, http.StatusUnprocessableEntity, map[string]any{"error": "Please correct the highlighted fields.", "fields": errs})
			return
		}
		h.renderManageAuthors(w, r, http.StatusUnprocessableEntity, f, "", errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var a models.Author
	f.apply(&a)
	created, err := h.Authors.Create(ctx, a)
	if errors.Is(err, authorstore.ErrIdentityConflict) {
		if wantsJSON(r) {
			writeJSONStatus(w, http.StatusConflict, map[string]string{"error": msgNameTaken})
			return
		}
		h.renderManageAuthors(w, r, http.StatusConflict, f, msgNameTaken, nil)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create author failed", err, "Could not save the author.", AuthorsPath)
		return
	}
	h.Catalog.AuthorsChanged(ctx)
	h.Log.Info("author added", zap.String("author_id", created.ID.Hex()))

	if wantsJSON(r) {
		writeJSONStatus(w, http.StatusCreated, catalog.AuthorOption{ID: created.ID.Hex(), Name: names.Full(created)})
		return
	}
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Added "+names.Full(created)+".")
	http.Redirect(w, r, AuthorsPath, http.StatusSeeOther)
}

// loadUnclaimed reads the {id} author and refuses claimed ones.
func (h *Handler) loadUnclaimed(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Author, bool) {
	id, ok := urlID(r, "id")
	if !ok {
		h.authorGone(w, r)
		return models.Author{}, false
	}
	a, err := h.Authors.GetByID(ctx, id)
	if errors.Is(err, authorstore.ErrNotFound) {
		h.authorGone(w, r)
		return a, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load author failed", err, "A database error occurred.", AuthorsPath)
		return a, false
	}
	if a.Claimed() {
		h.Sessions.AddFlash(w, r, auth.FlashWarning, msgClaimed)
		http.Redirect(w, r, AuthorsPath, http.StatusSeeOther)
		return a, false
	}
	return a, true
}

func (h *Handler) authorGone(w http.ResponseWriter, r *http.Request) {
	h.Sessions.AddFlash(w, r, auth.FlashInfo, "That author no longer exists.")
	http.Redirect(w, r, AuthorsPath, http.StatusSeeOther)
}

// ServeEditAuthor handles GET /papers/manage/authors/{id}/edit.
func (h *Handler) ServeEditAuthor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.loadUnclaimed(ctx, w, r)
	if !ok {
		return
	}
	h.renderAuthorEdit(w, r, http.StatusOK, a.ID.Hex(), authorFormFrom(a), "", nil)
}

// HandleEditAuthor handles POST /papers/manage/authors/{id}/edit. Renaming
// onto another author's name is refused with 409.
func (h *Handler) HandleEditAuthor(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", AuthorsPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.loadUnclaimed(ctx, w, r)
	if !ok {
		return
	}
	f := authorFormFromRequest(r)
	if errs := f.validate(); len(errs) > 0 {
		h.renderAuthorEdit(w, r, http.StatusUnprocessableEntity, a.ID.Hex(), f, "", errs)
		return
	}

	f.apply(&a)
	err := h.Authors.Update(ctx, a)
	if errors.Is(err, authorstore.ErrIdentityConflict) {
		h.renderAuthorEdit(w, r, http.StatusConflict, a.ID.Hex(), f, msgNameTaken, nil)
		return
	}
	if errors.Is(err, authorstore.ErrNotFound) {
		h.authorGone(w, r)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update author failed", err, "Could not save the author.", AuthorsPath)
		return
	}
	h.Catalog.AuthorsChanged(ctx)
	h.Log.Info("author updated", zap.String("author_id", a.ID.Hex()))
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Saved "+f.FirstName+" "+f.LastName+".")
	http.Redirect(w, r, AuthorsPath, http.StatusSeeOther)
}

// HandleDeleteAuthor handles POST /papers/manage/authors/{id}/delete. The
// author is taken off every paper that credited it.
func (h *Handler) HandleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.authorGone(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err := h.Authors.Delete(ctx, id)
	switch {
	case errors.Is(err, authorstore.ErrNotFound):
		h.authorGone(w, r)
		return
	case errors.Is(err, authorstore.ErrAlreadyClaimed):
		h.Sessions.AddFlash(w, r, auth.FlashWarning, msgClaimed)
		http.Redirect(w, r, AuthorsPath, http.StatusSeeOther)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "delete author failed", err, "Could not delete the author.", AuthorsPath)
		return
	}

	if err := h.Papers.RemoveAuthor(ctx, id); err != nil {
		h.Log.Warn("failed to strip deleted author from papers", zap.String("author_id", id.Hex()), zap.Error(err))
	}
	h.Catalog.AuthorsChanged(ctx)
	h.Log.Info("author deleted", zap.String("author_id", id.Hex()))
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Author deleted.")
	http.Redirect(w, r, AuthorsPath, http.StatusSeeOther)
}
