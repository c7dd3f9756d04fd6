// internal/domain/models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is a login identity. Its Profile is embedded so it is created and
// deleted together with the account.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	EmailCI      string             `bson:"email_ci" json:"email_ci"` // lowercase, diacritics-stripped
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Birthdate    *time.Time         `bson:"birthdate,omitempty" json:"birthdate,omitempty"`
	Active       bool               `bson:"active" json:"active"`

	Profile Profile `bson:"profile" json:"profile"`

	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// Profile is the per-account mutable state: the pending identity entered at
// registration, approval and consent, and verification/reset security fields.
//
// Pending name fields are never shown publicly on papers; the public name comes
// from the Author claimed or created at approval time.
type Profile struct {
	PendingFirstName     string `bson:"pending_first_name" json:"pending_first_name"`
	PendingMiddleInitial string `bson:"pending_middle_initial,omitempty" json:"pending_middle_initial,omitempty"`
	PendingLastName      string `bson:"pending_last_name" json:"pending_last_name"`
	PendingSuffix        string `bson:"pending_suffix,omitempty" json:"pending_suffix,omitempty"`
	PendingNameCI        string `bson:"pending_name_ci,omitempty" json:"-"` // folded "first middle last suffix" for search

	TookSHS    bool   `bson:"took_shs" json:"took_shs"`
	PendingG11 string `bson:"pending_g11,omitempty" json:"pending_g11,omitempty"`
	PendingG12 string `bson:"pending_g12,omitempty" json:"pending_g12,omitempty"`

	Approved   bool       `bson:"approved" json:"approved"`
	ApprovedAt *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`

	ConsentStatus ConsentStatus `bson:"consent_status" json:"consent_status"`
	ConsentDate   *time.Time    `bson:"consent_date,omitempty" json:"consent_date,omitempty"`
	ConsentFile   string        `bson:"consent_file,omitempty" json:"consent_file,omitempty"` // object storage path

	VerificationCode        string     `bson:"verification_code,omitempty" json:"-"`
	VerificationCodeCreated *time.Time `bson:"verification_code_created,omitempty" json:"-"`
	EmailVerified           bool       `bson:"email_verified" json:"email_verified"`
	VerificationAttempts    int        `bson:"verification_attempts" json:"-"`
	VerificationLockedUntil *time.Time `bson:"verification_locked_until,omitempty" json:"-"`

	LastPasswordResetRequest *time.Time `bson:"last_password_reset_request,omitempty" json:"-"`

	AuthorIDs []primitive.ObjectID `bson:"author_ids,omitempty" json:"author_ids,omitempty"`
	PaperIDs  []primitive.ObjectID `bson:"paper_ids,omitempty" json:"paper_ids,omitempty"`
}

// Age returns the account holder's age in whole years at now, or -1 when no
// birthdate is recorded.
func (a Account) Age(now time.Time) int {
	if a.Birthdate == nil {
		return -1
	}
	return AgeAt(*a.Birthdate, now)
}

// AgeAt computes completed years between birth and now.
func AgeAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// NeedsAuthoringIdentity reports whether approval should link an Author:
// current students, and alumni who took SHS here.
func (a Account) NeedsAuthoringIdentity() bool {
	switch a.Role {
	case RoleSHSStudent:
		return true
	case RoleAlumni:
		return a.Profile.TookSHS
	default:
		return false
	}
}

// PendingName returns the registration name as an unsaved Author value, with
// the same normalization an Author gets on save.
func (p Profile) PendingName() Author {
	a := Author{
		FirstName:     p.PendingFirstName,
		MiddleInitial: p.PendingMiddleInitial,
		LastName:      p.PendingLastName,
		Suffix:        p.PendingSuffix,
	}
	a.Normalize()
	return a
}
