// internal/domain/models/paper.go
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Strand is the senior-high-school academic track a paper belongs to.
type Strand string

const (
	StrandSTEM  Strand = "STEM"
	StrandHUMSS Strand = "HUMSS"
	StrandABM   Strand = "ABM"
)

// AllStrands lists strands in display order.
var AllStrands = []Strand{StrandSTEM, StrandHUMSS, StrandABM}

func (s Strand) Valid() bool {
	switch s {
	case StrandSTEM, StrandHUMSS, StrandABM:
		return true
	}
	return false
}

// ParseStrand accepts any casing.
func ParseStrand(s string) (Strand, bool) {
	st := Strand(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// ResearchDesign is the methodological classification of a paper.
type ResearchDesign string

const (
	DesignQualitative  ResearchDesign = "QUALITATIVE"
	DesignSurvey       ResearchDesign = "SURVEY"
	DesignExperimental ResearchDesign = "EXPERIMENTAL"
	DesignCapstone     ResearchDesign = "CAPSTONE"
)

// AllDesigns lists every research design in display order.
var AllDesigns = []ResearchDesign{DesignQualitative, DesignSurvey, DesignExperimental, DesignCapstone}

func (d ResearchDesign) Label() string {
	switch d {
	case DesignQualitative:
		return "Qualitative"
	case DesignSurvey:
		return "Survey"
	case DesignExperimental:
		return "Experimental"
	case DesignCapstone:
		return "Capstone"
	}
	return string(d)
}

// ParseDesign accepts any casing.
func ParseDesign(s string) (ResearchDesign, bool) {
	d := ResearchDesign(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllDesigns {
		if d == known {
			return d, true
		}
	}
	return d, false
}

// Grade levels a paper may be filed under.
const (
	Grade11 = 11
	Grade12 = 12
)

// AllowedDesigns returns the legal research designs for a grade and strand:
//
//	grade 11, any strand      -> QUALITATIVE
//	grade 12, STEM            -> SURVEY, EXPERIMENTAL, CAPSTONE
//	grade 12, any other strand -> SURVEY
//
// Unknown grades have no legal design.
func AllowedDesigns(grade int, strand Strand) []ResearchDesign {
	switch grade {
	case Grade11:
		return []ResearchDesign{DesignQualitative}
	case Grade12:
		if strand == StrandSTEM {
			return []ResearchDesign{DesignSurvey, DesignExperimental, DesignCapstone}
		}
		return []ResearchDesign{DesignSurvey}
	}
	return nil
}

// DesignAllowed reports whether design is legal for grade and strand.
func DesignAllowed(grade int, strand Strand, design ResearchDesign) bool {
	for _, d := range AllowedDesigns(grade, strand) {
		if d == design {
			return true
		}
	}
	return false
}

// ErrInvalidDesign is returned when a paper's research design is not legal for
// its grade level and strand.
var ErrInvalidDesign = errors.New("research design not allowed for grade level and strand")

var batchPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// ValidBatch reports whether s looks like a school-year range (YYYY-YYYY).
func ValidBatch(s string) bool { return batchPattern.MatchString(s) }

// Paper is a published research paper.
type Paper struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title"`
	TitleCI         string             `bson:"title_ci" json:"-"`
	Abstract        string             `bson:"abstract" json:"abstract"`
	PublicationDate time.Time          `bson:"publication_date" json:"publication_date"`

	AuthorIDs  []primitive.ObjectID `bson:"author_ids" json:"author_ids"`
	KeywordIDs []primitive.ObjectID `bson:"keyword_ids,omitempty" json:"keyword_ids,omitempty"`
	AwardIDs   []primitive.ObjectID `bson:"award_ids,omitempty" json:"award_ids,omitempty"`

	GradeLevel     int            `bson:"grade_level" json:"grade_level"`
	Strand         Strand         `bson:"strand" json:"strand"`
	ResearchDesign ResearchDesign `bson:"research_design" json:"research_design"`
	SchoolYear     string         `bson:"school_year" json:"school_year"`

	FilePath string `bson:"file_path,omitempty" json:"file_path,omitempty"`
	FileName string `bson:"file_name,omitempty" json:"file_name,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Validate enforces the paper invariants independently of any form: the
// research design must be legal for the grade and strand, and the school year
// must be a YYYY-YYYY range.
func (p Paper) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("title is required")
	}
	if p.GradeLevel != Grade11 && p.GradeLevel != Grade12 {
		return fmt.Errorf("grade level must be 11 or 12, got %d", p.GradeLevel)
	}
	if !p.Strand.Valid() {
		return fmt.Errorf("unknown strand %q", p.Strand)
	}
	if !ValidBatch(p.SchoolYear) {
		return fmt.Errorf("school year %q must be in YYYY-YYYY format", p.SchoolYear)
	}
	if !DesignAllowed(p.GradeLevel, p.Strand, p.ResearchDesign) {
		return fmt.Errorf("grade %d %s, design %s: %w", p.GradeLevel, p.Strand, p.ResearchDesign, ErrInvalidDesign)
	}
	return nil
}
