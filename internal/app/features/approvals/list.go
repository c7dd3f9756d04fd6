// internal/app/features/approvals/list.go
package approvals

import (
	"context"
	"net/http"
	"strings"
	"time"

	accountstore "github.com/dalemusser/scholarhub/internal/app/store/accounts"
	"github.com/dalemusser/scholarhub/internal/app/system/approval"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
)

type candidateVM struct {
	Name    string
	Batches string
}

type pendingRow struct {
	ID            string
	Name          string
	Email         string
	RoleLabel     string
	Age           int
	EmailVerified bool
	Batches       string
	Registered    string
	NeedsIdentity bool
	Candidates    []candidateVM
}

type listData struct {
	viewdata.BaseVM
	Rows []pendingRow
}

func fullName(a models.Author) string {
	return strings.Join(strings.Fields(a.FirstName+" "+a.MiddleInitial+" "+a.LastName+" "+a.Suffix), " ")
}

func batches(g11, g12 string) string {
	var parts []string
	if g11 != "" {
		parts = append(parts, "G11 "+g11)
	}
	if g12 != "" {
		parts = append(parts, "G12 "+g12)
	}
	return strings.Join(parts, ", ")
}

func rowFor(h approval.Hint, now time.Time) pendingRow {
	a := h.Account
	row := pendingRow{
		ID:            a.ID.Hex(),
		Name:          accountstore.DisplayName(a),
		Email:         a.Email,
		RoleLabel:     a.Role.Label(),
		Age:           a.Age(now),
		EmailVerified: a.Profile.EmailVerified,
		Batches:       batches(a.Profile.PendingG11, a.Profile.PendingG12),
		Registered:    a.CreatedAt.Format("Jan 2, 2006"),
		NeedsIdentity: a.NeedsAuthoringIdentity(),
	}
	for _, c := range h.Candidates {
		row.Candidates = append(row.Candidates, candidateVM{Name: fullName(c), Batches: batches(c.G11Batch, c.G12Batch)})
	}
	return row
}

// ServeList handles GET /accounts/pending-accounts.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	pending, err := h.Accounts.ListPending(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list pending accounts failed", err, "A database error occurred.", "/dashboard")
		return
	}
	hints, err := h.Approval.MatchHints(ctx, pending)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "match author hints failed", err, "A database error occurred.", "/dashboard")
		return
	}

	now := time.Now()
	data := listData{BaseVM: viewdata.NewBaseVM(r, "Pending accounts", "/dashboard")}
	for _, hint := range hints {
		data.Rows = append(data.Rows, rowFor(hint, now))
	}
	templates.Render(w, r, "pending_accounts", data)
}
