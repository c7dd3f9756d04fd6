// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/store/audit"
	"github.com/dalemusser/scholarhub/internal/app/system/paging"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type option struct {
	Value    string
	Label    string
	Selected bool
}

type listItem struct {
	Timestamp string
	Category  string
	EventType string
	Actor     string
	Target    string
	IP        string
	Success   bool
	Reason    string
	Details   map[string]string
}

type listData struct {
	viewdata.BaseVM

	Items []listItem

	Categories []option
	EventTypes []option
	StartDate  string
	EndDate    string

	Total int64
	Pager paging.Pager
	Range paging.Range
}

// eventTypesFor returns the event types of category, or every type when
// category is empty.
func eventTypesFor(category string) []string {
	switch category {
	case audit.CategoryAuth:
		return audit.AuthEvents
	case audit.CategoryAdmin:
		return audit.AdminEvents
	case "":
		all := make([]string, 0, len(audit.AuthEvents)+len(audit.AdminEvents))
		all = append(all, audit.AuthEvents...)
		return append(all, audit.AdminEvents...)
	default:
		return nil
	}
}

// parseFilter reads the list filters. Unknown values are ignored; the end
// date covers its whole day.
func parseFilter(r *http.Request) (audit.QueryFilter, string, string) {
	var f audit.QueryFilter
	switch c := query.Get(r, "category"); c {
	case audit.CategoryAuth, audit.CategoryAdmin:
		f.Category = c
	}
	if et := query.Get(r, "event_type"); et != "" {
		for _, known := range eventTypesFor(f.Category) {
			if et == known {
				f.EventType = et
				break
			}
		}
	}

	start := strings.TrimSpace(query.Get(r, "start_date"))
	end := strings.TrimSpace(query.Get(r, "end_date"))
	if t, err := time.Parse(dateLayout, start); err == nil {
		f.StartTime = &t
	} else {
		start = ""
	}
	if t, err := time.Parse(dateLayout, end); err == nil {
		eod := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &eod
	} else {
		end = ""
	}
	return f, start, end
}

func label(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// ServeList handles GET /audit.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	f, start, end := parseFilter(r)
	pg := paging.New(paging.ParsePage(r), paging.AuditPageSize)
	f.Offset, f.Limit = pg.Skip(), pg.Limit()

	events, err := h.Events.Query(ctx, f)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events failed", err, "A database error occurred.", "/dashboard")
		return
	}
	total, err := h.Events.Count(ctx, f)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count audit events failed", err, "A database error occurred.", "/dashboard")
		return
	}

	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, e := range events {
		for _, id := range []*primitive.ObjectID{e.ActorID, e.UserID} {
			if id != nil && !seen[*id] {
				seen[*id] = true
				ids = append(ids, *id)
			}
		}
	}
	emails, err := h.Accounts.Emails(ctx, ids)
	if err != nil {
		// Deleted accounts and lookup failures both fall back to the raw id.
		h.Log.Warn("resolve audit account emails failed", zap.Error(err))
		emails = nil
	}
	name := func(id *primitive.ObjectID) string {
		if id == nil {
			return ""
		}
		if e, ok := emails[*id]; ok {
			return e
		}
		return id.Hex()
	}

	pg = pg.WithTotal(total)
	data := listData{
		BaseVM:    viewdata.NewBaseVM(r, "Audit Log", "/dashboard"),
		StartDate: start,
		EndDate:   end,
		Total:     total,
		Pager:     pg.Pager(r),
		Range:     pg.Range(len(events)),
	}
	data.Categories = []option{
		{Value: audit.CategoryAuth, Label: "Authentication", Selected: f.Category == audit.CategoryAuth},
		{Value: audit.CategoryAdmin, Label: "Administration", Selected: f.Category == audit.CategoryAdmin},
	}
	for _, et := range eventTypesFor(f.Category) {
		data.EventTypes = append(data.EventTypes, option{Value: et, Label: label(et), Selected: et == f.EventType})
	}
	for _, e := range events {
		data.Items = append(data.Items, listItem{
			Timestamp: e.Timestamp.UTC().Format("Jan 2, 2006 15:04:05 UTC"),
			Category:  e.Category,
			EventType: label(e.EventType),
			Actor:     name(e.ActorID),
			Target:    name(e.UserID),
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		})
	}
	templates.Render(w, r, "audit_list", data)
}
