// internal/domain/models/author.go
package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Author is the canonical named entity credited on papers. It exists
// independently of login accounts and may be claimed by at most one Account.
//
// The tuple (first, middle, last, suffix) is unique across the collection.
type Author struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstName     string             `bson:"first_name" json:"first_name"`
	MiddleInitial string             `bson:"middle_initial" json:"middle_initial"`
	LastName      string             `bson:"last_name" json:"last_name"`
	Suffix        string             `bson:"suffix" json:"suffix"`

	FirstNameCI string `bson:"first_name_ci" json:"-"`
	LastNameCI  string `bson:"last_name_ci" json:"-"`

	UserID    *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Birthdate *time.Time          `bson:"birthdate,omitempty" json:"birthdate,omitempty"`
	G11Batch  string              `bson:"g11_batch,omitempty" json:"g11_batch,omitempty"`
	G12Batch  string              `bson:"g12_batch,omitempty" json:"g12_batch,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Normalize applies the save-time casing rules: first and last title-cased,
// middle initial upper-cased, suffix trimmed. Folded copies are refreshed.
func (a *Author) Normalize() {
	a.FirstName = TitleCase(a.FirstName)
	a.LastName = TitleCase(a.LastName)
	a.MiddleInitial = strings.ToUpper(strings.TrimSpace(a.MiddleInitial))
	a.Suffix = strings.TrimSpace(a.Suffix)
	a.FirstNameCI = text.Fold(a.FirstName)
	a.LastNameCI = text.Fold(a.LastName)
}

// Claimed reports whether an account has claimed this identity.
func (a Author) Claimed() bool { return a.UserID != nil && !a.UserID.IsZero() }

// ClaimedBy reports whether the given account has claimed this identity.
func (a Author) ClaimedBy(id primitive.ObjectID) bool {
	return a.Claimed() && *a.UserID == id
}

// SameName reports whether two identities share the exact normalized name key.
func (a Author) SameName(b Author) bool {
	return a.FirstName == b.FirstName &&
		a.MiddleInitial == b.MiddleInitial &&
		a.LastName == b.LastName &&
		a.Suffix == b.Suffix
}

// TitleCase trims s and capitalizes the first letter of every run of letters,
// lowercasing the rest ("o'neil" -> "O'Neil", "ANNA marie" -> "Anna Marie").
func TitleCase(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
