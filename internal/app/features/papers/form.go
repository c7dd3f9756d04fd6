// internal/app/features/papers/form.go
package papers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	paperstore "github.com/dalemusser/scholarhub/internal/app/store/papers"
	"github.com/dalemusser/scholarhub/internal/app/system/auth"
	"github.com/dalemusser/scholarhub/internal/app/system/navigation"
	"github.com/dalemusser/scholarhub/internal/app/system/names"
	"github.com/dalemusser/scholarhub/internal/app/system/objectstore"
	"github.com/dalemusser/scholarhub/internal/app/system/timeouts"
	"github.com/dalemusser/scholarhub/internal/app/system/viewdata"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// paperForm is the paper editor as submitted.
type paperForm struct {
	Title      string
	Abstract   string
	Published  string
	Grade      string
	Strand     string
	Design     string
	SchoolYear string
	Keywords   string
	Awards     string
	AuthorIDs  []string
}

type formData struct {
	viewdata.BaseVM
	ID          string
	Action      string
	Form        paperForm
	Errors      map[string]string
	FormError   string
	Grades      []option
	Strands     []option
	Designs     []option
	Authors     []option
	CurrentFile string
	Citations   []citationRow
}

func readForm(r *http.Request) paperForm {
	return paperForm{
		Title:      strings.TrimSpace(r.FormValue("title")),
		Abstract:   strings.TrimSpace(r.FormValue("abstract")),
		Published:  strings.TrimSpace(r.FormValue("publication_date")),
		Grade:      strings.TrimSpace(r.FormValue("grade_level")),
		Strand:     strings.TrimSpace(r.FormValue("strand")),
		Design:     strings.TrimSpace(r.FormValue("research_design")),
		SchoolYear: strings.TrimSpace(r.FormValue("school_year")),
		Keywords:   strings.TrimSpace(r.FormValue("keywords")),
		Awards:     strings.TrimSpace(r.FormValue("awards")),
		AuthorIDs:  r.Form["author_ids"],
	}
}

// validate checks f and builds the paper fields it describes. Keywords,
// awards and the file are handled by the caller.
func (h *Handler) validate(ctx context.Context, f paperForm) (models.Paper, map[string]string, error) {
	errs := map[string]string{}
	p := models.Paper{Title: f.Title, Abstract: f.Abstract, SchoolYear: f.SchoolYear}

	if p.Title == "" {
		errs["title"] = "Title is required."
	} else if len(p.Title) > 300 {
		errs["title"] = "Title must be 300 characters or fewer."
	}

	grade, err := strconv.Atoi(f.Grade)
	if err != nil || (grade != models.Grade11 && grade != models.Grade12) {
		errs["grade_level"] = "Choose grade 11 or 12."
	}
	p.GradeLevel = grade

	strand, ok := models.ParseStrand(f.Strand)
	if !ok {
		errs["strand"] = "Choose a strand."
	}
	p.Strand = strand

	design, ok := models.ParseDesign(f.Design)
	switch {
	case !ok:
		errs["research_design"] = "Choose a research design."
	case errs["grade_level"] == "" && errs["strand"] == "" && !models.DesignAllowed(grade, strand, design):
		errs["research_design"] = fmt.Sprintf("%s is not allowed for grade %d %s papers. Allowed: %s.",
			design.Label(), grade, strand, designList(models.AllowedDesigns(grade, strand)))
	}
	p.ResearchDesign = design

	if !models.ValidBatch(p.SchoolYear) {
		errs["school_year"] = "School year must look like 2023-2024."
	}

	if f.Published != "" {
		d, err := time.Parse(dateLayout, f.Published)
		if err != nil {
			errs["publication_date"] = "Use the date picker (YYYY-MM-DD)."
		}
		p.PublicationDate = d.UTC()
	}

	ids := parseIDs(f.AuthorIDs)
	if len(ids) == 0 {
		errs["author_ids"] = "Choose at least one author."
	} else {
		found, err := h.Authors.ListByIDs(ctx, ids)
		if err != nil {
			return p, errs, err
		}
		if len(found) != len(dedupe(ids)) {
			errs["author_ids"] = "One of the chosen authors no longer exists."
		}
	}
	p.AuthorIDs = dedupe(ids)
	return p, errs, nil
}

func designList(ds []models.ResearchDesign) string {
	labels := make([]string, len(ds))
	for i, d := range ds {
		labels[i] = d.Label()
	}
	return strings.Join(labels, ", ")
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := map[primitive.ObjectID]bool{}
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// upload is a validated PDF from the form.
type upload struct {
	name string
	size int64
	body io.Reader
	file multipart.File
}

// readUpload returns nil when no file was chosen.
func readUpload(r *http.Request) (*upload, string, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	if header.Size == 0 {
		file.Close()
		return nil, "", nil
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		file.Close()
		return nil, "Only PDF files are allowed.", nil
	}
	if header.Size > MaxFileSize {
		file.Close()
		return nil, "File size exceeds 25MB limit.", nil
	}
	body, err := objectstore.SniffPDF(file)
	if errors.Is(err, objectstore.ErrNotPDF) {
		file.Close()
		return nil, "The uploaded file is not a valid PDF.", nil
	}
	if err != nil {
		file.Close()
		return nil, "", err
	}
	return &upload{name: header.Filename, size: header.Size, body: body, file: file}, "", nil
}

func (h *Handler) store(ctx context.Context, up *upload) (string, error) {
	key := objectstore.NewKey(objectstore.PrefixPapers, up.name, time.Now())
	err := objectstore.PutPDF(ctx, h.Files, key, up.body)
	return key, err
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data formData) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	for _, g := range []int{models.Grade11, models.Grade12} {
		v := strconv.Itoa(g)
		data.Grades = append(data.Grades, option{Value: v, Label: "Grade " + v, Selected: v == data.Form.Grade})
	}
	strand, _ := models.ParseStrand(data.Form.Strand)
	for _, s := range models.AllStrands {
		data.Strands = append(data.Strands, option{Value: string(s), Label: string(s), Selected: s == strand})
	}
	design, _ := models.ParseDesign(data.Form.Design)
	for _, d := range models.AllDesigns {
		data.Designs = append(data.Designs, option{Value: string(d), Label: d.Label(), Selected: d == design})
	}

	// The picker offers the paper's batch plus whoever is already chosen.
	chosen := parseIDs(data.Form.AuthorIDs)
	picked := selectedSet(chosen)
	seen := map[string]bool{}
	if current, err := h.Authors.ListByIDs(ctx, chosen); err == nil {
		for _, a := range current {
			seen[a.ID.Hex()] = true
			data.Authors = append(data.Authors, option{Value: a.ID.Hex(), Label: names.Full(a), Selected: true})
		}
	} else {
		h.Log.Warn("load chosen authors failed", zap.Error(err))
	}
	if grade, err := strconv.Atoi(data.Form.Grade); err == nil && models.ValidBatch(data.Form.SchoolYear) {
		batch, err := h.Catalog.AuthorsByBatch(ctx, grade, data.Form.SchoolYear)
		if err != nil {
			h.Log.Warn("load batch authors failed", zap.Error(err))
		}
		for _, a := range batch {
			if !seen[a.ID] {
				data.Authors = append(data.Authors, option{Value: a.ID, Label: a.Name, Selected: picked[a.ID]})
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "paper_form", data)
}

func parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+(1<<20))
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(8 << 20)
	}
	return r.ParseForm()
}

/*─────────────────────────────────────────────────────────────────────────────*
| Create                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeNew handles GET /papers/manage/new.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, formData{
		BaseVM: viewdata.NewBaseVM(r, "New paper", ManagePath),
		Action: ManagePath + "/new",
		Form:   paperForm{Published: time.Now().Format(dateLayout)},
	})
}

// HandleCreate handles POST /papers/manage/new. A PDF is required.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	data := formData{BaseVM: viewdata.NewBaseVM(r, "New paper", ManagePath), Action: ManagePath + "/new"}
	if !h.parse(w, r, &data) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, errs, err := h.validate(ctx, data.Form)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "validate paper failed", err, "A database error occurred.", ManagePath)
		return
	}
	up, fileMsg, err := readUpload(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "read upload failed", err, "Could not read the uploaded file.", ManagePath)
		return
	}
	if up != nil {
		defer up.file.Close()
	}
	switch {
	case fileMsg != "":
		errs["file"] = fileMsg
	case up == nil:
		errs["file"] = "Choose the paper's PDF."
	}
	if len(errs) > 0 {
		data.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	if err := h.resolveReference(ctx, &p, data.Form); err != nil {
		h.ErrLog.LogServerError(w, r, "save keywords failed", err, "Could not save keywords or awards.", ManagePath)
		return
	}
	key, err := h.store(ctx, up)
	if err != nil {
		h.Log.Error("paper upload failed", zap.Error(err))
		data.FormError = "Failed to upload the file. Please try again."
		h.render(w, r, http.StatusBadGateway, data)
		return
	}
	p.FilePath, p.FileName = key, up.name

	created, err := h.Papers.Create(ctx, p)
	if err != nil {
		h.removeFile(ctx, "", key)
		h.saveFailed(w, r, data, err)
		return
	}
	if err := h.Accounts.LinkPaper(ctx, created.ID, created.AuthorIDs); err != nil {
		h.Log.Error("link new paper to profiles failed", zap.String("paper_id", created.ID.Hex()), zap.Error(err))
	}
	h.Catalog.PapersChanged(ctx)
	h.Catalog.ReferenceChanged(ctx)

	h.Log.Info("paper created", zap.String("paper_id", created.ID.Hex()), zap.String("title", created.Title))
	h.AuditLog.PaperCreated(ctx, r, created.ID, created.Title)
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Added “"+created.Title+"”.")
	http.Redirect(w, r, ManagePath, http.StatusSeeOther)
}

// parse reads the request body into data.Form. It renders the response
// and returns false on failure.
func (h *Handler) parse(w http.ResponseWriter, r *http.Request, data *formData) bool {
	if err := parseUpload(w, r); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			data.FormError = "File size exceeds 25MB limit."
			h.render(w, r, http.StatusRequestEntityTooLarge, *data)
			return false
		}
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", ManagePath)
		return false
	}
	data.Form = readForm(r)
	return true
}

func (h *Handler) resolveReference(ctx context.Context, p *models.Paper, f paperForm) error {
	kw, err := h.Keywords.EnsureAll(ctx, f.Keywords)
	if err != nil {
		return err
	}
	aw, err := h.Awards.EnsureAll(ctx, f.Awards)
	if err != nil {
		return err
	}
	p.KeywordIDs, p.AwardIDs = kw, aw
	return nil
}

func (h *Handler) saveFailed(w http.ResponseWriter, r *http.Request, data formData, err error) {
	if errors.Is(err, models.ErrInvalidDesign) {
		data.Errors = map[string]string{"research_design": "That research design is not allowed for this grade and strand."}
		h.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}
	h.ErrLog.LogServerError(w, r, "save paper failed", err, "Could not save the paper.", ManagePath)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Edit                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) loadForEdit(w http.ResponseWriter, r *http.Request) (models.Paper, bool) {
	id, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "Paper not found.")
		return models.Paper{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Papers.GetByID(ctx, id)
	if errors.Is(err, paperstore.ErrNotFound) {
		h.notFound(w, r, "Paper not found.")
		return p, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load paper failed", err, "A database error occurred.", ManagePath)
		return p, false
	}
	return p, true
}

func (h *Handler) formFromPaper(ctx context.Context, p models.Paper) (paperForm, error) {
	f := paperForm{
		Title:      p.Title,
		Abstract:   p.Abstract,
		Grade:      strconv.Itoa(p.GradeLevel),
		Strand:     string(p.Strand),
		Design:     string(p.ResearchDesign),
		SchoolYear: p.SchoolYear,
	}
	if !p.PublicationDate.IsZero() {
		f.Published = p.PublicationDate.Format(dateLayout)
	}
	for _, id := range p.AuthorIDs {
		f.AuthorIDs = append(f.AuthorIDs, id.Hex())
	}
	keywords, err := h.Keywords.ListByIDs(ctx, p.KeywordIDs)
	if err != nil {
		return f, err
	}
	words := make([]string, len(keywords))
	for i, k := range keywords {
		words[i] = k.Word
	}
	f.Keywords = strings.Join(words, ", ")

	awards, err := h.Awards.ListByIDs(ctx, p.AwardIDs)
	if err != nil {
		return f, err
	}
	titles := make([]string, len(awards))
	for i, a := range awards {
		titles[i] = a.Name
	}
	f.Awards = strings.Join(titles, ", ")
	return f, nil
}

func (h *Handler) editData(r *http.Request, p models.Paper) formData {
	return formData{
		BaseVM:      viewdata.NewBaseVM(r, "Edit paper", ManagePath),
		ID:          p.ID.Hex(),
		Action:      ManagePath + "/" + p.ID.Hex() + "/edit",
		CurrentFile: p.FileName,
	}
}

// ServeEdit handles GET /papers/manage/{id}/edit.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadForEdit(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	data := h.editData(r, p)
	f, err := h.formFromPaper(ctx, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load paper form failed", err, "A database error occurred.", ManagePath)
		return
	}
	data.Form = f
	if d, err := h.detail(ctx, r, p); err == nil {
		data.Citations = d.Citations
	}
	h.render(w, r, http.StatusOK, data)
}

// HandleEdit handles POST /papers/manage/{id}/edit. Without a new upload the
// stored PDF is kept. A replaced PDF is deleted after the paper is saved.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	old, ok := h.loadForEdit(w, r)
	if !ok {
		return
	}
	data := h.editData(r, old)
	if !h.parse(w, r, &data) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, errs, err := h.validate(ctx, data.Form)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "validate paper failed", err, "A database error occurred.", ManagePath)
		return
	}
	up, fileMsg, err := readUpload(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "read upload failed", err, "Could not read the uploaded file.", ManagePath)
		return
	}
	if up != nil {
		defer up.file.Close()
	}
	if fileMsg != "" {
		errs["file"] = fileMsg
	}
	if len(errs) > 0 {
		data.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	if err := h.resolveReference(ctx, &p, data.Form); err != nil {
		h.ErrLog.LogServerError(w, r, "save keywords failed", err, "Could not save keywords or awards.", ManagePath)
		return
	}
	p.ID = old.ID
	p.FilePath, p.FileName = old.FilePath, old.FileName
	if p.PublicationDate.IsZero() {
		p.PublicationDate = old.PublicationDate
	}
	newKey := ""
	if up != nil {
		if newKey, err = h.store(ctx, up); err != nil {
			h.Log.Error("paper upload failed", zap.Error(err))
			data.FormError = "Failed to upload the file. Please try again."
			h.render(w, r, http.StatusBadGateway, data)
			return
		}
		p.FilePath, p.FileName = newKey, up.name
	}

	if err := h.Papers.Update(ctx, p); err != nil {
		h.removeFile(ctx, p.ID.Hex(), newKey)
		h.saveFailed(w, r, data, err)
		return
	}
	if newKey != "" {
		h.removeFile(ctx, p.ID.Hex(), old.FilePath)
	}
	if err := h.Accounts.UnlinkPaper(ctx, p.ID); err != nil {
		h.Log.Error("unlink paper from profiles failed", zap.String("paper_id", p.ID.Hex()), zap.Error(err))
	} else if err := h.Accounts.LinkPaper(ctx, p.ID, p.AuthorIDs); err != nil {
		h.Log.Error("link paper to profiles failed", zap.String("paper_id", p.ID.Hex()), zap.Error(err))
	}
	h.Catalog.PapersChanged(ctx)
	h.Catalog.ReferenceChanged(ctx)

	h.Log.Info("paper updated", zap.String("paper_id", p.ID.Hex()))
	h.AuditLog.PaperUpdated(ctx, r, p.ID, p.Title)
	h.Sessions.AddFlash(w, r, auth.FlashSuccess, "Saved “"+p.Title+"”.")
	http.Redirect(w, r, navigation.SafeBackURL(r, navigation.ManagePapersBackURL), http.StatusSeeOther)
}
