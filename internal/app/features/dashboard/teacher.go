// internal/app/features/dashboard/teacher.go
package dashboard

import (
	"context"
	"net/http"

	"github.com/dalemusser/scholarhub/internal/app/system/authz"
	"github.com/dalemusser/scholarhub/internal/app/system/cache"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
)

type strandCount struct {
	Strand string
	Count  int64
}

type teacherData struct {
	viewdata.BaseVM
	CanManage      bool
	Strands        []strandCount
	Total          int64
	ConsentPending int
}

// ServeTeacher shows paper counts for research teachers and the consent
// queue for every teacher.
func (h *Handler) ServeTeacher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	data := teacherData{
		BaseVM:    viewdata.NewBaseVM(r, "Teacher dashboard", "/"),
		CanManage: authz.CanManagePapers(r),
	}
	counts, err := cache.Remember(ctx, h.Catalog.Cache, cache.KeyStrandCount, h.Papers.CountByStrand)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count papers failed", err, "A database error occurred.", "/")
		return
	}
	byStrand := map[models.Strand]int64{}
	for _, c := range counts {
		byStrand[c.Strand] = c.Count
		data.Total += c.Count
	}
	for _, s := range models.AllStrands {
		data.Strands = append(data.Strands, strandCount{Strand: string(s), Count: byStrand[s]})
	}

	pending, err := h.Accounts.ListConsentPending(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count consent reviews failed", err, "A database error occurred.", "/")
		return
	}
	data.ConsentPending = len(pending)
	templates.Render(w, r, "teacher_dashboard", data)
}
