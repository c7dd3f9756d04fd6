// internal/domain/models/citation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Citation records that a paper was cited, either by another paper in the
// repository or by an external source given as free text.
type Citation struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PaperID         primitive.ObjectID  `bson:"paper_id" json:"paper_id"`
	CitedByPaperID  *primitive.ObjectID `bson:"cited_by_paper_id,omitempty" json:"cited_by_paper_id,omitempty"`
	CitedByExternal string              `bson:"cited_by_external,omitempty" json:"cited_by_external,omitempty"`
	CitationDate    time.Time           `bson:"citation_date" json:"citation_date"`
	Notes           string              `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Internal reports whether the citing source is a repository paper.
func (c Citation) Internal() bool { return c.CitedByPaperID != nil }
