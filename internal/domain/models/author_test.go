package models_test

import (
	"testing"
	"time"

	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"  juan ":      "Juan",
		"ANNA marie":   "Anna Marie",
		"o'neil":       "O'Neil",
		"mary-jane":    "Mary-Jane",
		"dela cruz":    "Dela Cruz",
		"":             "",
		"éLODIE":       "Élodie",
	}
	for in, want := range cases {
		assert.Equal(t, want, models.TitleCase(in), "input %q", in)
	}
}

func TestAuthorNormalize(t *testing.T) {
	a := models.Author{FirstName: " juan carlos", MiddleInitial: " s ", LastName: "DELA CRUZ", Suffix: " Jr. "}
	a.Normalize()

	assert.Equal(t, "Juan Carlos", a.FirstName)
	assert.Equal(t, "S", a.MiddleInitial)
	assert.Equal(t, "Dela Cruz", a.LastName)
	assert.Equal(t, "Jr.", a.Suffix)
	assert.Equal(t, "juan carlos", a.FirstNameCI)
	assert.Equal(t, "dela cruz", a.LastNameCI)
}

func TestAuthorClaimed(t *testing.T) {
	var a models.Author
	assert.False(t, a.Claimed())

	id := primitive.NewObjectID()
	a.UserID = &id
	assert.True(t, a.Claimed())
	assert.True(t, a.ClaimedBy(id))
	assert.False(t, a.ClaimedBy(primitive.NewObjectID()))
}

func TestProfilePendingName_Normalized(t *testing.T) {
	p := models.Profile{PendingFirstName: "ana", PendingMiddleInitial: "b", PendingLastName: "reyes"}
	n := p.PendingName()
	assert.True(t, n.SameName(models.Author{FirstName: "Ana", MiddleInitial: "B", LastName: "Reyes"}))
}

func TestAgeAt(t *testing.T) {
	birth := time.Date(2008, time.June, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 15, models.AgeAt(birth, time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 16, models.AgeAt(birth, time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 16, models.AgeAt(birth, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAccountAge_NoBirthdate(t *testing.T) {
	assert.Equal(t, -1, models.Account{}.Age(time.Now()))
}

func TestNeedsAuthoringIdentity(t *testing.T) {
	assert.True(t, models.Account{Role: models.RoleSHSStudent}.NeedsAuthoringIdentity())
	assert.False(t, models.Account{Role: models.RoleAlumni}.NeedsAuthoringIdentity())
	assert.True(t, models.Account{Role: models.RoleAlumni, Profile: models.Profile{TookSHS: true}}.NeedsAuthoringIdentity())
	assert.False(t, models.Account{Role: models.RoleResearchTeacher}.NeedsAuthoringIdentity())
}
