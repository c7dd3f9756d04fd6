// internal/app/features/users/list.go
package users

import (
	"context"
	"net/http"
	"strings"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/paging"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
)

type userRow struct {
	ID        string
	Email     string
	Name      string
	Role      string
	Approved  bool
	Active    bool
	Consent   string
	Batches   string
	LastLogin string
	Created   string
	Self      bool
}

type listData struct {
	viewdata.BaseVM
	Search   string
	Roles    []option
	Approval []option
	Consents []option
	Batches  []option
	Sorts    []option
	Rows     []userRow
	Total    int64
	Pager    paging.Pager
	Range    paging.Range

	// ReturnURL brings row actions back to this filtered page.
	ReturnURL string
}

// parseFilter reads the list filters. Unknown values mean "any".
func parseFilter(r *http.Request) accountstore.ListFilter {
	f := accountstore.ListFilter{
		Search: strings.TrimSpace(query.Get(r, "q")),
		Batch:  strings.TrimSpace(query.Get(r, "batch")),
		Sort:   query.Get(r, "sort"),
	}
	if role, ok := models.ParseRole(query.Get(r, "role")); ok {
		f.Role = role
	}
	switch query.Get(r, "approval") {
	case "approved":
		yes := true
		f.Approved = &yes
	case "pending":
		no := false
		f.Approved = &no
	}
	switch c := models.ConsentStatus(query.Get(r, "consent")); c {
	case models.ConsentNotConsented, models.ConsentPendingGuardian, models.ConsentConsented:
		f.Consent = c
	}
	return f
}

func fullPendingName(p models.Profile) string {
	parts := []string{p.PendingFirstName}
	if p.PendingMiddleInitial != "" {
		parts = append(parts, p.PendingMiddleInitial+".")
	}
	parts = append(parts, p.PendingLastName)
	if p.PendingSuffix != "" {
		parts = append(parts, p.PendingSuffix)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ServeList handles GET /users.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	f := parseFilter(r)
	pg := paging.New(paging.ParsePage(r), paging.UsersPageSize)
	f.Skip, f.Limit = pg.Skip(), pg.Limit()

	accounts, total, err := h.Accounts.List(ctx, f)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list users failed", err, "A database error occurred.", "/dashboard")
		return
	}
	batches, err := h.Accounts.DistinctBatches(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list batches failed", err, "A database error occurred.", "/dashboard")
		return
	}

	pg = pg.WithTotal(total)
	data := listData{
		BaseVM: viewdata.NewBaseVM(r, "Users", "/dashboard"),
		Search: f.Search,
		Total:  total,
		Pager:  pg.Pager(r),
		Range:  pg.Range(len(accounts)),

		ReturnURL: r.URL.RequestURI(),
	}
	for _, role := range models.AllRoles {
		data.Roles = append(data.Roles, option{Value: string(role), Label: role.Label(), Selected: role == f.Role})
	}
	data.Approval = []option{
		{Value: "approved", Label: "Approved", Selected: f.Approved != nil && *f.Approved},
		{Value: "pending", Label: "Pending", Selected: f.Approved != nil && !*f.Approved},
	}
	for _, c := range []models.ConsentStatus{models.ConsentNotConsented, models.ConsentPendingGuardian, models.ConsentConsented} {
		data.Consents = append(data.Consents, option{Value: string(c), Label: c.Label(), Selected: c == f.Consent})
	}
	for _, b := range batches {
		data.Batches = append(data.Batches, option{Value: b, Label: b, Selected: b == f.Batch})
	}
	data.Sorts = []option{
		{Value: accountstore.SortNewest, Label: "Newest"},
		{Value: accountstore.SortOldest, Label: "Oldest"},
		{Value: accountstore.SortName, Label: "Name"},
		{Value: accountstore.SortEmail, Label: "Email"},
	}
	for i := range data.Sorts {
		data.Sorts[i].Selected = data.Sorts[i].Value == f.Sort
	}

	for _, a := range accounts {
		row := userRow{
			ID:       a.ID.Hex(),
			Email:    a.Email,
			Name:     fullPendingName(a.Profile),
			Role:     a.Role.Label(),
			Approved: a.Profile.Approved,
			Active:   a.Active,
			Consent:  a.Profile.ConsentStatus.Normalize().Label(),
			Created:  a.CreatedAt.Format("Jan 2, 2006"),
			Self:     isSelf(r, a.ID),
		}
		var b []string
		if a.Profile.PendingG11 != "" {
			b = append(b, "G11 "+a.Profile.PendingG11)
		}
		if a.Profile.PendingG12 != "" {
			b = append(b, "G12 "+a.Profile.PendingG12)
		}
		row.Batches = strings.Join(b, ", ")
		if a.LastLoginAt != nil {
			row.LastLogin = a.LastLoginAt.Format("Jan 2, 2006 3:04 PM")
		}
		data.Rows = append(data.Rows, row)
	}
	templates.Render(w, r, "users_list", data)
}
