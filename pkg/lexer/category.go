package lexer

import "fmt"

// Category is the tag attached to every token produced by the Tokenizer.
type Category int

const (
	// Entities
	Line Category = iota
	Station
	Vehicle
	Bus

	// Problems
	Delay
	Overcrowding
	Failure
	Disruption
	Complaint

	// Sentiment
	Praise

	// Temporal
	Time
	Date

	// Social
	Hashtag
	Mention

	// Structural
	Word
	Punctuation

	numCategories
)

var categoryNames = [numCategories]string{
	Line:         "Line",
	Station:      "Station",
	Vehicle:      "Vehicle",
	Bus:          "Bus",
	Delay:        "Delay",
	Overcrowding: "Overcrowding",
	Failure:      "Failure",
	Disruption:   "Disruption",
	Complaint:    "Complaint",
	Praise:       "Praise",
	Time:         "Time",
	Date:         "Date",
	Hashtag:      "Hashtag",
	Mention:      "Mention",
	Word:         "Word",
	Punctuation:  "Punctuation",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	cats := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		cats = append(cats, c)
	}
	return cats
}

// ParseCategory resolves a category by its name. The lookup is exact.
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return Category(c), nil
		}
	}
	return 0, fmt.Errorf("unknown token category %q", name)
}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// IsProblem reports whether c describes a service problem.
func (c Category) IsProblem() bool {
	switch c {
	case Delay, Overcrowding, Failure, Disruption, Complaint:
		return true
	}
	return false
}

func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || c >= numCategories {
		return nil, fmt.Errorf("invalid token category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
