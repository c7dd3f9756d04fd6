// internal/domain/models/award.go
package models

import (
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Award is a distinction a paper received.
type Award struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"`
}

// Normalize title-cases the name and refreshes the folded copy.
func (a *Award) Normalize() {
	a.Name = TitleCase(a.Name)
	a.NameCI = text.Fold(a.Name)
}
