// Package registration validates the sign-up form and turns it into a new
// Account. Validation is pure; the email-uniqueness check needs the store
// and is done by the caller.
package registration

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/scholarhub/internal/app/system/authutil"
	"github.com/dalemusser/scholarhub/internal/domain/models"
)

const (
	MinAge = 13
	MaxAge = 120

	MaxNameLen   = 100
	MaxSuffixLen = 10
)

// Form field names, shared with templates.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldConfirm  = "confirm_password"
	FieldRole     = "role"
	FieldFirst    = "first_name"
	FieldMiddle   = "middle_initial"
	FieldLast     = "last_name"
	FieldSuffix   = "suffix"
	FieldBirth    = "birthdate"
	FieldTerms    = "agree_terms"
	FieldG11      = "g11"
	FieldG12      = "g12"
)

// Input is the raw sign-up form. Birth date parts stay strings so a
// non-numeric value is reported instead of silently becoming zero.
type Input struct {
	Email           string
	Password        string
	ConfirmPassword string
	Role            string

	FirstName     string
	MiddleInitial string
	LastName      string
	Suffix        string

	BirthMonth string
	BirthDay   string
	BirthYear  string

	AgreeTerms bool
	TookSHS    bool
	G11        string
	G12        string
}

// Errors maps form field names to a message. Empty means valid.
type Errors map[string]string

func (e Errors) add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Has reports whether field has an error.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for f, m := range e {
		parts = append(parts, f+": "+m)
	}
	return strings.Join(parts, "; ")
}

// Registration is a validated sign-up.
type Registration struct {
	Email     string
	Password  string
	Role      models.Role
	Birthdate time.Time

	FirstName     string
	MiddleInitial string
	LastName      string
	Suffix        string

	TookSHS bool
	G11     string
	G12     string
}

// Validate checks in as of now. When the returned Errors is empty the
// Registration is complete.
func Validate(in Input, now time.Time) (Registration, Errors) {
	errs := Errors{}
	reg := Registration{
		Email:         strings.TrimSpace(in.Email),
		Password:      in.Password,
		FirstName:     strings.TrimSpace(in.FirstName),
		MiddleInitial: strings.TrimSpace(in.MiddleInitial),
		LastName:      strings.TrimSpace(in.LastName),
		Suffix:        strings.TrimSpace(in.Suffix),
		TookSHS:       in.TookSHS,
		G11:           strings.TrimSpace(in.G11),
		G12:           strings.TrimSpace(in.G12),
	}

	if reg.Email == "" {
		errs.add(FieldEmail, "Email is required.")
	} else if !authutil.IsValidEmail(reg.Email) {
		errs.add(FieldEmail, "Enter a valid email address.")
	}

	if err := authutil.ValidatePasswordPair(in.Password, in.ConfirmPassword); err != nil {
		field := FieldPassword
		if err == authutil.ErrPasswordMismatch {
			field = FieldConfirm
		}
		errs.add(field, passwordMessage(err))
	}

	role, ok := models.ParseRole(in.Role)
	if !ok || !role.Registrable() {
		errs.add(FieldRole, "Choose a valid role.")
	}
	reg.Role = role

	checkName(errs, FieldFirst, "First name", reg.FirstName)
	checkName(errs, FieldLast, "Last name", reg.LastName)
	if len([]rune(reg.MiddleInitial)) > 1 {
		errs.add(FieldMiddle, "Middle initial must be a single letter.")
	}
	if len([]rune(reg.Suffix)) > MaxSuffixLen {
		errs.add(FieldSuffix, fmt.Sprintf("Suffix must be at most %d characters.", MaxSuffixLen))
	}

	if birth, msg := ParseBirthdate(in.BirthMonth, in.BirthDay, in.BirthYear, now); msg != "" {
		errs.add(FieldBirth, msg)
	} else {
		reg.Birthdate = birth
	}

	if !in.AgreeTerms {
		errs.add(FieldTerms, "You must agree to the Terms and Conditions to register.")
	}

	if !ok {
		return reg, errs
	}
	for f, m := range CheckBatches(role, in.TookSHS, reg.G11, reg.G12) {
		errs.add(f, m)
	}
	return reg, errs
}

func checkName(errs Errors, field, label, v string) {
	switch {
	case v == "":
		errs.add(field, label+" is required.")
	case len([]rune(v)) > MaxNameLen:
		errs.add(field, fmt.Sprintf("%s must be at most %d characters.", label, MaxNameLen))
	}
}

func passwordMessage(err error) string {
	switch err {
	case authutil.ErrPasswordRequired:
		return "Password is required."
	case authutil.ErrPasswordMismatch:
		return "Passwords do not match. Please try again."
	case authutil.ErrPasswordCommon:
		return "That password is too common. Choose another."
	default:
		return fmt.Sprintf("Password must be between %d and %d characters.",
			authutil.MinPasswordLength, authutil.MaxPasswordLength)
	}
}

// ParseBirthdate builds a UTC date from form parts and checks the age range.
// A non-empty message means the date was rejected.
func ParseBirthdate(month, day, year string, now time.Time) (time.Time, string) {
	m, errM := strconv.Atoi(strings.TrimSpace(month))
	d, errD := strconv.Atoi(strings.TrimSpace(day))
	y, errY := strconv.Atoi(strings.TrimSpace(year))
	if errM != nil || errD != nil || errY != nil {
		return time.Time{}, "Please provide your complete date of birth."
	}
	if m < 1 || m > 12 || d < 1 || y < 1 {
		return time.Time{}, invalidDate(m, d, y)
	}
	birth := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if birth.Month() != time.Month(m) || birth.Day() != d {
		return time.Time{}, invalidDate(m, d, y)
	}

	age := models.AgeAt(birth, now)
	if age < MinAge {
		return time.Time{}, fmt.Sprintf("You must be at least %d years old to register.", MinAge)
	}
	if age > MaxAge {
		return time.Time{}, "Please enter a valid birthdate."
	}
	return birth, ""
}

func invalidDate(m, d, y int) string {
	return fmt.Sprintf("Invalid date. Please check your birth month (%d), day (%d), and year (%d).", m, d, y)
}

// BatchRequired reports whether role needs at least one batch year.
func BatchRequired(role models.Role, tookSHS bool) bool {
	return role == models.RoleSHSStudent || (role == models.RoleAlumni && tookSHS)
}

// CheckBatches applies the batch-year rules: when required, at least one
// year; each present year is YYYY-YYYY; with both, G12 starts one year
// after G11. Batch years are ignored for roles that do not need them.
func CheckBatches(role models.Role, tookSHS bool, g11, g12 string) Errors {
	errs := Errors{}
	if !BatchRequired(role, tookSHS) {
		return errs
	}
	if g11 == "" && g12 == "" {
		msg := "At least one batch year (Grade 11 or Grade 12) is required."
		errs.add(FieldG11, msg)
		errs.add(FieldG12, msg)
		return errs
	}
	if g11 != "" && !models.ValidBatch(g11) {
		errs.add(FieldG11, "Grade 11 batch must be in format YYYY-YYYY (e.g., 2019-2020).")
	}
	if g12 != "" && !models.ValidBatch(g12) {
		errs.add(FieldG12, "Grade 12 batch must be in format YYYY-YYYY (e.g., 2020-2021).")
	}
	if len(errs) == 0 && g11 != "" && g12 != "" && batchStart(g12) != batchStart(g11)+1 {
		errs.add(FieldG12, "Grade 12 batch should be one year after Grade 11 batch.")
	}
	return errs
}

func batchStart(b string) int {
	n, _ := strconv.Atoi(b[:4])
	return n
}

// Account builds the Account to insert. Batch years are only kept for
// roles that use them.
func (r Registration) Account(passwordHash string) models.Account {
	birth := r.Birthdate
	a := models.Account{
		Email:        r.Email,
		PasswordHash: passwordHash,
		Role:         r.Role,
		Birthdate:    &birth,
		Profile: models.Profile{
			PendingFirstName:     r.FirstName,
			PendingMiddleInitial: strings.ToUpper(r.MiddleInitial),
			PendingLastName:      r.LastName,
			PendingSuffix:        r.Suffix,
			TookSHS:              r.TookSHS,
			ConsentStatus:        models.ConsentNotConsented,
		},
	}
	if BatchRequired(r.Role, r.TookSHS) {
		a.Profile.PendingG11 = r.G11
		a.Profile.PendingG12 = r.G12
	}
	return a
}
