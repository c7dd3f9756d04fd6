package names_test

import (
	"testing"

	"github.com/dalemusser/scholarhub/internal/app/system/names"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFull(t *testing.T) {
	a := models.Author{FirstName: "Juan Carlos", MiddleInitial: "S", LastName: "Dela Cruz", Suffix: "Jr."}
	assert.Equal(t, "Juan Carlos S. Dela Cruz, Jr.", names.Full(a))
	assert.Equal(t, "Ana Reyes", names.Full(models.Author{FirstName: "Ana", LastName: "Reyes"}))
	assert.Equal(t, names.Anonymous, names.Full(models.Author{}))
}

func TestPublic(t *testing.T) {
	tests := []struct {
		name    string
		author  models.Author
		consent models.ConsentStatus
		want    string
	}{
		{"initials", models.Author{FirstName: "Juan Carlos", MiddleInitial: "S", LastName: "Dela Cruz", Suffix: "Jr."}, models.ConsentNotConsented, "Dela Cruz, J. C. S. Jr."},
		{"no middle", models.Author{FirstName: "Ana", LastName: "Reyes"}, models.ConsentPendingGuardian, "Reyes, A."},
		{"consented full", models.Author{FirstName: "Ana", LastName: "Reyes"}, models.ConsentConsented, "Ana Reyes"},
		{"missing last", models.Author{FirstName: "Ana"}, "", "A."},
		{"missing first", models.Author{LastName: "Reyes"}, "", "Reyes"},
		{"empty", models.Author{}, "", names.Anonymous},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, names.Public(tc.author, tc.consent))
		})
	}
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "J. C.", names.Initials(" juan  carlos "))
	assert.Equal(t, "É.", names.Initials("élodie"))
	assert.Equal(t, "", names.Initials(""))
}

func TestPublicAll_UnclaimedNeverFull(t *testing.T) {
	uid := primitive.NewObjectID()
	claimed := models.Author{FirstName: "Ana", LastName: "Reyes", UserID: &uid}
	unclaimed := models.Author{FirstName: "Ben", LastName: "Cruz"}

	always := func(models.Author) models.ConsentStatus { return models.ConsentConsented }
	got := names.PublicAll([]models.Author{claimed, unclaimed}, always)
	assert.Equal(t, []string{"Ana Reyes", "Cruz, B."}, got)

	got = names.PublicAll([]models.Author{claimed}, nil)
	assert.Equal(t, []string{"Reyes, A."}, got)
}
