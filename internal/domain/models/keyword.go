// internal/domain/models/keyword.go
package models

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Keyword is a searchable paper keyword. A word may carry one *emphasized*
// span, rendered in italics.
type Keyword struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Word   string             `bson:"word" json:"word"`
	WordCI string             `bson:"word_ci" json:"-"`
}

// Normalize trims the word and refreshes the folded copy.
func (k *Keyword) Normalize() {
	k.Word = strings.TrimSpace(k.Word)
	k.WordCI = text.Fold(k.Word)
}

// PlainWord strips emphasis markers.
func (k Keyword) PlainWord() string { return strings.ReplaceAll(k.Word, "*", "") }
