// Package lexer segments short posts about commuter-rail service into typed
// tokens using a two-tier, priority-ordered rule table.
//
// At every scan position the problem tier is tried before the general tier and
// the first rule that matches wins; text no rule accepts is emitted as a Word up
// to the next whitespace. Overlaps between rules are resolved by that order only,
// never by match length.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a classified piece of the input text.
type Token struct {
	Category Category `json:"category" bson:"category"`
	Lexeme   string   `json:"lexeme" bson:"lexeme"`
	// Offset is the byte offset of Lexeme in the text passed to Tokenize.
	Offset int `json:"offset" bson:"offset"`
}

// Tokenizer applies a Table to text. It keeps no state between calls and can be
// shared between goroutines.
type Tokenizer struct {
	table *Table
}

func NewTokenizer(table *Table) *Tokenizer {
	return &Tokenizer{table: table}
}

// Table returns the rule table the tokenizer was built with.
func (t *Tokenizer) Table() *Table {
	return t.table
}

// Tokenize returns the tokens of text in input order. Empty or blank text
// yields an empty slice.
func (t *Tokenizer) Tokenize(text string) []Token {
	trimmed := strings.TrimSpace(text)
	base := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))

	tokens := []Token{}
	pos := 0
	for pos < len(trimmed) {
		r, size := utf8.DecodeRuneInString(trimmed[pos:])
		if unicode.IsSpace(r) {
			pos += size
			continue
		}

		if cat, end, ok := matchTier(t.table.problem, trimmed, pos); ok {
			tokens = append(tokens, Token{Category: cat, Lexeme: trimmed[pos:end], Offset: base + pos})
			pos = end
			continue
		}

		if cat, end, ok := matchTier(t.table.general, trimmed, pos); ok {
			tokens = append(tokens, Token{Category: cat, Lexeme: trimmed[pos:end], Offset: base + pos})
			pos = end
			continue
		}

		end := pos
		for end < len(trimmed) {
			r, size := utf8.DecodeRuneInString(trimmed[end:])
			if unicode.IsSpace(r) {
				break
			}
			end += size
		}
		tokens = append(tokens, Token{Category: Word, Lexeme: trimmed[pos:end], Offset: base + pos})
		pos = end
	}

	return tokens
}

// matchTier tries every rule of a tier anchored at pos and returns the category
// and match end of the first one that succeeds.
func matchTier(tier []compiledRule, text string, pos int) (Category, int, bool) {
	for _, rule := range tier {
		loc := rule.re.FindStringIndex(text[pos:])
		if loc == nil || loc[1] == 0 {
			continue
		}
		end := pos + loc[1]

		if rule.Bounds&BoundStart != 0 && pos > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:pos])
			if isWordRune(prev) {
				continue
			}
		}
		if rule.Bounds&BoundEnd != 0 && end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if isWordRune(next) {
				continue
			}
		}

		return rule.Category, end, true
	}

	return 0, 0, false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// ExtractProblems keeps the tokens whose category is a problem category,
// preserving their order. The result is empty, not nil, when there are none.
func ExtractProblems(tokens []Token) []Token {
	problems := []Token{}
	for _, tok := range tokens {
		if tok.Category.IsProblem() {
			problems = append(problems, tok)
		}
	}
	return problems
}
