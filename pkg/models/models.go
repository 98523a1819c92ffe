package models

import (
	"time"

	"github.com/gofrs/uuid"

	"railwatch/pkg/fuzzy"
	"railwatch/pkg/lexer"
)

// Post is a single short text under analysis (a tweet, an RSS item).
type Post struct {
	ID        uuid.UUID `bson:"_id,omitempty" json:"id,omitempty"`
	Author    string    `bson:"author,omitempty" json:"author,omitempty"`
	Text      string    `bson:"text" json:"text"`
	Source    string    `bson:"source,omitempty" json:"source,omitempty"`
	Link      string    `bson:"link,omitempty" json:"link,omitempty"`
	Published time.Time `bson:"published,omitempty" json:"published,omitempty"`
}

// Analysis is the stored outcome of analysing one post.
type Analysis struct {
	ID       uuid.UUID           `bson:"_id" json:"id"`
	Author   string              `bson:"author,omitempty" json:"author,omitempty"`
	Text     string              `bson:"text" json:"text"`
	Source   string              `bson:"source,omitempty" json:"source,omitempty"`
	Link     string              `bson:"link,omitempty" json:"link,omitempty"`
	Tokens   []lexer.Token       `bson:"tokens" json:"tokens"`
	Problems []lexer.Token       `bson:"problems" json:"problems"`
	Flagged  []fuzzy.MatchResult `bson:"flagged" json:"flagged"`
	Analyzed time.Time           `bson:"analyzed" json:"analyzed"`
}

// AnalysisID derives a stable ID from the post source and text, so analysing the
// same post twice updates one record.
func AnalysisID(source, text string) uuid.UUID {
	return uuid.NewV5(uuid.NamespaceURL, source+"\n"+text)
}

// HasProblem reports whether the analysis holds a problem token of category c.
func (a Analysis) HasProblem(c lexer.Category) bool {
	for _, tok := range a.Problems {
		if tok.Category == c {
			return true
		}
	}
	return false
}
