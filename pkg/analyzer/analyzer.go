// Package analyzer runs both classification flows over a post: rule-based
// tokenization with problem extraction, and fuzzy blocklist matching of the
// individual words.
package analyzer

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"railwatch/pkg/fuzzy"
	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
)

// Options tune the blocklist side of the analysis.
type Options struct {
	Policy      fuzzy.Policy
	MaxDistance int
	// FoldAccents strips diacritics from words before matching, so that
	// "complicação" is compared as "complicacao".
	FoldAccents bool
}

// DefaultOptions keeps the last-wins policy and distance 1, with accent folding on.
func DefaultOptions() Options {
	return Options{
		Policy:      fuzzy.PolicyLastWins,
		MaxDistance: fuzzy.DefaultMaxDistance,
		FoldAccents: true,
	}
}

// Report is the result of analysing one text.
type Report struct {
	Tokens   []lexer.Token       `json:"tokens"`
	Problems []lexer.Token       `json:"problems"`
	Flagged  []fuzzy.MatchResult `json:"flagged"`
}

// HasIssues reports whether the text has problem tokens or flagged words.
func (r Report) HasIssues() bool {
	return len(r.Problems) > 0 || len(r.Flagged) > 0
}

// Analyzer is safe for concurrent use: the rule table and the blocklist are never
// written after construction.
type Analyzer struct {
	tokenizer *lexer.Tokenizer
	blocklist *fuzzy.Blocklist
	matcher   *fuzzy.Matcher
	fold      bool
}

func New(table *lexer.Table, blocklist *fuzzy.Blocklist, opts Options) *Analyzer {
	return &Analyzer{
		tokenizer: lexer.NewTokenizer(table),
		blocklist: blocklist,
		matcher:   &fuzzy.Matcher{Policy: opts.Policy, MaxDistance: opts.MaxDistance},
		fold:      opts.FoldAccents,
	}
}

// Table returns the rule table used for tokenization.
func (a *Analyzer) Table() *lexer.Table {
	return a.tokenizer.Table()
}

// Blocklist returns the blocklist used for word matching.
func (a *Analyzer) Blocklist() *fuzzy.Blocklist {
	return a.blocklist
}

// Tokenize classifies text without running the blocklist.
func (a *Analyzer) Tokenize(text string) []lexer.Token {
	return a.tokenizer.Tokenize(text)
}

// Analyze tokenizes text, extracts its problem tokens and flags every
// whitespace-delimited word that is close to a blocklist entry.
func (a *Analyzer) Analyze(text string) Report {
	tokens := a.tokenizer.Tokenize(text)

	flagged := []fuzzy.MatchResult{}
	for _, word := range strings.Fields(text) {
		res, ok := a.matchWord(word)
		if ok && res.IsMatch {
			flagged = append(flagged, res)
		}
	}

	return Report{
		Tokens:   tokens,
		Problems: lexer.ExtractProblems(tokens),
		Flagged:  flagged,
	}
}

// MatchWord normalizes word and matches it against the blocklist. The returned
// result carries the normalized word.
func (a *Analyzer) MatchWord(word string) fuzzy.MatchResult {
	res, _ := a.matchWord(word)
	return res
}

// MatchExact matches word against the blocklist as written, without
// normalization.
func (a *Analyzer) MatchExact(word string) fuzzy.MatchResult {
	return a.matcher.Match(word, a.blocklist)
}

func (a *Analyzer) matchWord(word string) (fuzzy.MatchResult, bool) {
	normalized := a.normalize(word)
	if normalized == "" {
		return fuzzy.MatchResult{Word: normalized}, false
	}
	return a.matcher.Match(normalized, a.blocklist), true
}

// normalize lower-cases word, strips surrounding spaces, punctuation and
// symbols and, when enabled, removes diacritics.
func (a *Analyzer) normalize(word string) string {
	word = strings.ToLower(word)
	word = strings.TrimFunc(word, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if a.fold && word != "" {
		word = foldAccents(word)
	}
	return word
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// AnalyzeBatch analyses texts on a pool of workers and returns the reports in
// input order. If ctx is done before every text has been handed out, the
// context error is returned.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string, workers int) ([]Report, error) {
	if workers < 1 {
		workers = 1
	}

	reports := make([]Report, len(texts))
	jobs := make(chan int, workers*5)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				reports[idx] = a.Analyze(texts[idx])
			}
		}()
	}

	var err error
feed:
	for i := range texts {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return reports, nil
}

// NewAnalysis builds the stored form of a report.
func NewAnalysis(post models.Post, r Report, now time.Time) models.Analysis {
	return models.Analysis{
		ID:       models.AnalysisID(post.Source, post.Text),
		Author:   post.Author,
		Text:     post.Text,
		Source:   post.Source,
		Link:     post.Link,
		Tokens:   r.Tokens,
		Problems: r.Problems,
		Flagged:  r.Flagged,
		Analyzed: now.UTC(),
	}
}
