package registration_test

import (
	"testing"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/system/registration"
	"github.com/dalemusser/scholarhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func validInput() registration.Input {
	return registration.Input{
		Email:           "ana.reyes@example.com",
		Password:        "secure123",
		ConfirmPassword: "secure123",
		Role:            "shs_student",
		FirstName:       "Ana",
		MiddleInitial:   "b",
		LastName:        "Reyes",
		BirthMonth:      "3",
		BirthDay:        "14",
		BirthYear:       "2008",
		AgreeTerms:      true,
		G11:             "2023-2024",
		G12:             "2024-2025",
	}
}

func TestValidate_OK(t *testing.T) {
	reg, errs := registration.Validate(validInput(), today)
	require.Empty(t, errs)
	assert.Equal(t, models.RoleSHSStudent, reg.Role)
	assert.Equal(t, time.Date(2008, 3, 14, 0, 0, 0, 0, time.UTC), reg.Birthdate)

	a := reg.Account("$hash")
	assert.Equal(t, "B", a.Profile.PendingMiddleInitial)
	assert.Equal(t, "2023-2024", a.Profile.PendingG11)
	assert.Equal(t, models.ConsentNotConsented, a.Profile.ConsentStatus)
	assert.False(t, a.Profile.Approved)
}

func TestValidate_AgeBounds(t *testing.T) {
	in := validInput()
	in.BirthYear, in.BirthMonth, in.BirthDay = "2012", "6", "16" // turns 13 tomorrow
	_, errs := registration.Validate(in, today)
	assert.Contains(t, errs[registration.FieldBirth], "at least 13")

	in.BirthDay = "15" // 13 today
	_, errs = registration.Validate(in, today)
	assert.False(t, errs.Has(registration.FieldBirth))

	in.BirthYear = "1904" // 121
	_, errs = registration.Validate(in, today)
	assert.Equal(t, "Please enter a valid birthdate.", errs[registration.FieldBirth])

	in.BirthYear = "1905" // 120
	_, errs = registration.Validate(in, today)
	assert.False(t, errs.Has(registration.FieldBirth))
}

func TestValidate_ImpossibleDate(t *testing.T) {
	in := validInput()
	in.BirthMonth, in.BirthDay, in.BirthYear = "2", "30", "2008"
	_, errs := registration.Validate(in, today)
	assert.Contains(t, errs[registration.FieldBirth], "Invalid date")

	in.BirthMonth = "feb"
	_, errs = registration.Validate(in, today)
	assert.Contains(t, errs[registration.FieldBirth], "complete date of birth")
}

func TestValidate_Passwords(t *testing.T) {
	in := validInput()
	in.ConfirmPassword = "secure124"
	_, errs := registration.Validate(in, today)
	assert.True(t, errs.Has(registration.FieldConfirm))

	in.Password, in.ConfirmPassword = "short", "short"
	_, errs = registration.Validate(in, today)
	assert.Contains(t, errs[registration.FieldPassword], "between 8 and 20")
}

func TestValidate_AdminNotRegistrable(t *testing.T) {
	in := validInput()
	in.Role = "admin"
	_, errs := registration.Validate(in, today)
	assert.True(t, errs.Has(registration.FieldRole))
}

func TestValidate_NamesAndTerms(t *testing.T) {
	in := validInput()
	in.FirstName = "   "
	in.MiddleInitial = "AB"
	in.AgreeTerms = false
	_, errs := registration.Validate(in, today)
	assert.True(t, errs.Has(registration.FieldFirst))
	assert.True(t, errs.Has(registration.FieldMiddle))
	assert.True(t, errs.Has(registration.FieldTerms))
}

func TestCheckBatches(t *testing.T) {
	tests := []struct {
		name    string
		role    models.Role
		tookSHS bool
		g11     string
		g12     string
		fields  []string
	}{
		{"student needs one", models.RoleSHSStudent, false, "", "", []string{"g11", "g12"}},
		{"student g11 only", models.RoleSHSStudent, false, "2023-2024", "", nil},
		{"student g12 only", models.RoleSHSStudent, false, "", "2024-2025", nil},
		{"bad format", models.RoleSHSStudent, false, "2023/2024", "", []string{"g11"}},
		{"not consecutive", models.RoleSHSStudent, false, "2023-2024", "2025-2026", []string{"g12"}},
		{"alumni without shs ignored", models.RoleAlumni, false, "", "", nil},
		{"alumni with shs needs one", models.RoleAlumni, true, "", "", []string{"g11", "g12"}},
		{"teacher ignored", models.RoleResearchTeacher, false, "garbage", "", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := registration.CheckBatches(tc.role, tc.tookSHS, tc.g11, tc.g12)
			assert.Len(t, errs, len(tc.fields))
			for _, f := range tc.fields {
				assert.True(t, errs.Has(f), "expected error on %s", f)
			}
		})
	}
}

func TestAccount_DropsBatchesForTeachers(t *testing.T) {
	in := validInput()
	in.Role = "research_teacher"
	reg, errs := registration.Validate(in, today)
	require.Empty(t, errs)
	a := reg.Account("$hash")
	assert.Empty(t, a.Profile.PendingG11)
	assert.Empty(t, a.Profile.PendingG12)
}
