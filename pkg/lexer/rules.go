package lexer

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// ErrBadPattern is returned when a rule pattern does not compile.
var ErrBadPattern = errors.New("invalid rule pattern")

// Bounds lists the word-boundary checks a rule needs around its match.
// RE2 only knows ASCII word boundaries, so Unicode-aware checks are done by the
// scanner instead of the pattern.
type Bounds uint8

const (
	// BoundStart requires the rune before the match to be a non-word rune
	// (or the match to start the text).
	BoundStart Bounds = 1 << iota
	// BoundEnd requires the rune after the match to be a non-word rune
	// (or the match to end the text).
	BoundEnd
)

func (b Bounds) String() string {
	switch b {
	case 0:
		return "none"
	case BoundStart:
		return "start"
	case BoundEnd:
		return "end"
	case BoundStart | BoundEnd:
		return "start+end"
	}
	return fmt.Sprintf("Bounds(%d)", uint8(b))
}

func (b Bounds) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Rule pairs a case-insensitive pattern with the category it assigns.
type Rule struct {
	Category Category `json:"category"`
	Pattern  string   `json:"pattern"`
	Bounds   Bounds   `json:"bounds"`
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Table holds the two ordered rule tiers. It is immutable once built.
type Table struct {
	problem []compiledRule
	general []compiledRule
}

// NewTable compiles both tiers, keeping the given order.
func NewTable(problem, general []Rule) (*Table, error) {
	p, err := compileTier("problem", problem)
	if err != nil {
		return nil, err
	}
	g, err := compileTier("general", general)
	if err != nil {
		return nil, err
	}

	return &Table{problem: p, general: g}, nil
}

func compileTier(tier string, rules []Rule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(`^(?i:` + r.Pattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("%w: %s rule #%d (%s) %q: %v", ErrBadPattern, tier, i+1, r.Category, r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, re: re})
	}
	return compiled, nil
}

// ProblemRules returns a copy of the problem tier.
func (t *Table) ProblemRules() []Rule {
	return rules(t.problem)
}

// GeneralRules returns a copy of the general tier.
func (t *Table) GeneralRules() []Rule {
	return rules(t.general)
}

func rules(compiled []compiledRule) []Rule {
	out := make([]Rule, len(compiled))
	for i, c := range compiled {
		out[i] = c.Rule
	}
	return out
}

// Unicode counterparts of \w, \s and \d.
const (
	w = `[\p{L}\p{N}_]`
	s = `[\s\p{Z}\x85]`
	d = `\p{Nd}`
)

var defaultProblemRules = []Rule{
	{Delay, `atras` + w + `*`, BoundStart},
	{Delay, `demor` + w + `+`, BoundStart},

	{Overcrowding, `lotad` + w + `+`, BoundStart},
	{Overcrowding, `superlot` + w + `+`, BoundStart},
	{Overcrowding, `chei` + w + `+`, BoundStart},
	{Overcrowding, `fil` + w + `+`, BoundStart},

	{Failure, `pane` + w + `*`, BoundStart},
	{Failure, `defeit` + w + `+`, BoundStart},
	{Failure, `quebr` + w + `+`, BoundStart},

	{Disruption, `paralis` + w + `+`, BoundStart},
	{Disruption, `interromp` + w + `+`, BoundStart},
	{Disruption, `protest` + w + `+`, BoundStart},
	{Disruption, `manifest` + w + `+`, BoundStart},
	{Disruption, `trava` + w + `+`, BoundStart},
	{Disruption, `bloque` + w + `+`, BoundStart},

	{Complaint, `horr[íi]vel`, BoundStart},
	{Complaint, `p[ée]ssim` + w + `+`, BoundStart},
	{Complaint, `humilh` + w + `+`, BoundStart},
	{Complaint, `lament` + w + `+`, BoundStart},
	{Complaint, `cr[íi]tic` + w + `+`, BoundStart},
	{Complaint, `caos` + w + `*`, BoundStart},
	{Complaint, `ca[óo]tic` + w + `+`, BoundStart},
	{Complaint, `rui` + w + `+`, BoundStart},
	{Complaint, `transtorn` + w + `+`, BoundStart},

	{Praise, `bom`, BoundStart | BoundEnd},
	{Praise, `ótimo`, BoundStart},
	{Praise, `efici` + w + `+`, BoundStart},
}

var defaultGeneralRules = []Rule{
	{Line, `linha` + s + d + `+`, 0},
	{Station, `esta[çc][aã]o?` + s + w + `+`, 0},
	{Vehicle, `trem` + w + `*`, BoundStart},
	{Vehicle, `composi[çc][aã]o`, BoundStart},
	{Bus, `[oô]nibu` + w + `*`, BoundStart},
	{Time, d + `{1,2}[:h]` + d + `{0,2}`, 0},
	{Date, `hoje`, BoundStart | BoundEnd},
	{Date, `ontem`, BoundStart | BoundEnd},
	{Date, d + `{1,2}/` + d + `{1,2}`, 0},
	{Hashtag, `#cptm` + w + `*`, 0},
	{Mention, `@cptm` + w + `*`, 0},
	{Punctuation, `[.,!?;:]`, 0},
}

// DefaultProblemRules returns a copy of the problem tier of the CPTM rule set.
func DefaultProblemRules() []Rule {
	return append([]Rule(nil), defaultProblemRules...)
}

// DefaultGeneralRules returns a copy of the general tier of the CPTM rule set.
func DefaultGeneralRules() []Rule {
	return append([]Rule(nil), defaultGeneralRules...)
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// DefaultTable builds the CPTM rule table once and returns it on every call.
func DefaultTable() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = NewTable(defaultProblemRules, defaultGeneralRules)
	})
	return defaultTable, defaultErr
}
