package models_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedDesigns_Grade11AnyStrand(t *testing.T) {
	for _, s := range models.AllStrands {
		assert.Equal(t, []models.ResearchDesign{models.DesignQualitative}, models.AllowedDesigns(11, s), "strand %s", s)
	}
}

func TestAllowedDesigns_Grade12STEM(t *testing.T) {
	got := models.AllowedDesigns(12, models.StrandSTEM)
	assert.ElementsMatch(t, []models.ResearchDesign{
		models.DesignSurvey, models.DesignExperimental, models.DesignCapstone,
	}, got)
}

func TestAllowedDesigns_Grade12NonSTEM(t *testing.T) {
	assert.Equal(t, []models.ResearchDesign{models.DesignSurvey}, models.AllowedDesigns(12, models.StrandHUMSS))
	assert.Equal(t, []models.ResearchDesign{models.DesignSurvey}, models.AllowedDesigns(12, models.StrandABM))
}

func TestAllowedDesigns_UnknownGrade(t *testing.T) {
	assert.Empty(t, models.AllowedDesigns(10, models.StrandSTEM))
}

func TestDesignAllowed_FullMatrix(t *testing.T) {
	for _, grade := range []int{11, 12} {
		for _, strand := range models.AllStrands {
			for _, design := range models.AllDesigns {
				var want bool
				switch {
				case grade == 11:
					want = design == models.DesignQualitative
				case strand == models.StrandSTEM:
					want = design != models.DesignQualitative
				default:
					want = design == models.DesignSurvey
				}
				assert.Equal(t, want, models.DesignAllowed(grade, strand, design),
					"grade=%d strand=%s design=%s", grade, strand, design)
			}
		}
	}
}

func validPaper() models.Paper {
	return models.Paper{
		Title:          "Soil Microbes",
		GradeLevel:     12,
		Strand:         models.StrandSTEM,
		ResearchDesign: models.DesignExperimental,
		SchoolYear:     "2023-2024",
	}
}

func TestPaperValidate_OK(t *testing.T) {
	require.NoError(t, validPaper().Validate())
}

func TestPaperValidate_RejectsIllegalDesign(t *testing.T) {
	p := validPaper()
	p.GradeLevel = 11
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidDesign))
}

func TestPaperValidate_RejectsBadSchoolYear(t *testing.T) {
	p := validPaper()
	p.SchoolYear = "2023"
	require.Error(t, p.Validate())
}

func TestPaperValidate_RejectsUnknownStrand(t *testing.T) {
	p := validPaper()
	p.Strand = "TVL"
	require.Error(t, p.Validate())
}

func TestParseDesign(t *testing.T) {
	d, ok := models.ParseDesign(" survey ")
	assert.True(t, ok)
	assert.Equal(t, models.DesignSurvey, d)

	_, ok = models.ParseDesign("mixed")
	assert.False(t, ok)
}

func TestValidBatch(t *testing.T) {
	assert.True(t, models.ValidBatch("2019-2020"))
	assert.False(t, models.ValidBatch("2019-20"))
	assert.False(t, models.ValidBatch(" 2019-2020"))
}
