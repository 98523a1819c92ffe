package fuzzy

import "fmt"

// DefaultMaxDistance is the largest distance at which a word still matches an entry.
const DefaultMaxDistance = 1

// Policy selects which entry is reported when several entries are close enough.
type Policy int

const (
	// PolicyLastWins reports the last qualifying entry in blocklist order.
	PolicyLastWins Policy = iota
	// PolicyClosest reports the entry with the smallest distance; ties go to
	// the entry listed first.
	PolicyClosest
)

func (p Policy) String() string {
	switch p {
	case PolicyLastWins:
		return "last"
	case PolicyClosest:
		return "closest"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts "last" or "closest". An empty name means "last".
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "last":
		return PolicyLastWins, nil
	case "closest":
		return PolicyClosest, nil
	}
	return 0, fmt.Errorf("unknown match policy %q", name)
}

// MatchResult is the outcome of matching one word against a blocklist.
type MatchResult struct {
	IsMatch  bool   `json:"is_match" bson:"is_match"`
	Word     string `json:"word" bson:"word"`
	Entry    string `json:"entry,omitempty" bson:"entry,omitempty"`
	Distance int    `json:"distance" bson:"distance"`
}

// Matcher compares words against a blocklist. The zero value uses
// PolicyLastWins with a maximum distance of 0; use NewMatcher for defaults.
type Matcher struct {
	Policy      Policy
	MaxDistance int
}

// NewMatcher returns a last-wins matcher accepting distance ≤ 1.
func NewMatcher() *Matcher {
	return &Matcher{Policy: PolicyLastWins, MaxDistance: DefaultMaxDistance}
}

// Match compares word against every entry of blocklist. Comparison is exact;
// case folding is up to the caller.
func (m *Matcher) Match(word string, blocklist *Blocklist) MatchResult {
	res := MatchResult{Word: word}
	for _, entry := range blocklist.entries {
		dist := Distance(word, entry)
		if dist > m.MaxDistance {
			continue
		}

		if m.Policy == PolicyClosest && res.IsMatch && dist >= res.Distance {
			continue
		}
		res.IsMatch = true
		res.Entry = entry
		res.Distance = dist
	}

	return res
}

// Match reports whether word is within distance 1 of any blocklist entry. When
// several entries qualify the last one in blocklist order is returned.
func Match(word string, blocklist *Blocklist) MatchResult {
	return NewMatcher().Match(word, blocklist)
}
