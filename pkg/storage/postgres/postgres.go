package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"railwatch/pkg/fuzzy"
	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
	"railwatch/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id         UUID PRIMARY KEY,
	author     TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	link       TEXT NOT NULL DEFAULT '',
	tokens     JSONB NOT NULL,
	problems   JSONB NOT NULL,
	categories TEXT[] NOT NULL DEFAULT '{}',
	flagged    JSONB NOT NULL,
	analyzed   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_analyzed_idx ON analyses (analyzed DESC);
CREATE INDEX IF NOT EXISTS analyses_categories_idx ON analyses USING GIN (categories);
`

const upsert = `
	INSERT INTO analyses (id, author, text, source, link, tokens, problems, categories, flagged, analyzed)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id)
	DO UPDATE SET
		author = EXCLUDED.author,
		text = EXCLUDED.text,
		source = EXCLUDED.source,
		link = EXCLUDED.link,
		tokens = EXCLUDED.tokens,
		problems = EXCLUDED.problems,
		categories = EXCLUDED.categories,
		flagged = EXCLUDED.flagged,
		analyzed = EXCLUDED.analyzed
`

const selectColumns = `id, author, text, source, link, tokens, problems, flagged, analyzed`

type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, conStr string) (*Store, error) {
	db, err := pgxpool.Connect(ctx, conStr)
	if err != nil {
		return nil, err
	}
	s := Store{
		db: db,
	}

	return &s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

// Migrate creates the analyses table and its indexes when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

// row holds the encoded column values of one analysis.
type row struct {
	tokens, problems, flagged []byte
	categories                []string
}

func encode(a models.Analysis) (row, error) {
	var (
		r   row
		err error
	)
	if r.tokens, err = json.Marshal(nonNilTokens(a.Tokens)); err != nil {
		return r, err
	}
	if r.problems, err = json.Marshal(nonNilTokens(a.Problems)); err != nil {
		return r, err
	}
	flagged := a.Flagged
	if flagged == nil {
		flagged = []fuzzy.MatchResult{}
	}
	if r.flagged, err = json.Marshal(flagged); err != nil {
		return r, err
	}

	seen := make(map[lexer.Category]bool)
	r.categories = []string{}
	for _, tok := range a.Problems {
		if !seen[tok.Category] {
			seen[tok.Category] = true
			r.categories = append(r.categories, tok.Category.String())
		}
	}
	return r, nil
}

func nonNilTokens(tokens []lexer.Token) []lexer.Token {
	if tokens == nil {
		return []lexer.Token{}
	}
	return tokens
}

// AddAnalysis inserts an analysis or replaces the stored one with the same ID.
// A missing ID is derived from the analysis source and text.
func (s *Store) AddAnalysis(ctx context.Context, a models.Analysis) (id uuid.UUID, err error) {
	if a.ID == uuid.Nil {
		a.ID = models.AnalysisID(a.Source, a.Text)
	}
	r, err := encode(a)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode analysis %v: %w", a.ID, err)
	}

	_, err = s.db.Exec(ctx, upsert,
		a.ID, a.Author, a.Text, a.Source, a.Link,
		r.tokens, r.problems, r.categories, r.flagged, a.Analyzed,
	)
	if err != nil {
		return uuid.Nil, err
	}

	return a.ID, nil
}

// AddAnalyses upserts a batch of analyses within a single transaction.
func (s *Store) AddAnalyses(ctx context.Context, as []models.Analysis) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := new(pgx.Batch)
	for _, a := range as {
		if a.ID == uuid.Nil {
			a.ID = models.AnalysisID(a.Source, a.Text)
		}
		r, err := encode(a)
		if err != nil {
			return fmt.Errorf("encode analysis %v: %w", a.ID, err)
		}
		batch.Queue(upsert,
			a.ID, a.Author, a.Text, a.Source, a.Link,
			r.tokens, r.problems, r.categories, r.flagged, a.Analyzed,
		)
	}

	res := tx.SendBatch(ctx, batch)
	err = res.Close()
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LatestAnalyses returns a page of analyses ordered by analysis time, newest first.
// Non-positive page or limit default to 1 and 10.
func (s *Store) LatestAnalyses(ctx context.Context, page, limit int) (analyses []models.Analysis, numPages int, err error) {
	return s.pageQuery(ctx, "", page, limit)
}

// ProblemAnalyses is LatestAnalyses restricted to analyses holding at least one
// problem token of the given category.
func (s *Store) ProblemAnalyses(ctx context.Context, category lexer.Category, page, limit int) (analyses []models.Analysis, numPages int, err error) {
	if err := storage.CheckCategory(category); err != nil {
		return nil, 0, err
	}
	return s.pageQuery(ctx, category.String(), page, limit)
}

// pageQuery runs a paginated select, filtered by problem category when one is given.
func (s *Store) pageQuery(ctx context.Context, category string, page, limit int) ([]models.Analysis, int, error) {
	page, limit = storage.PageParams(page, limit)
	offset := (page - 1) * limit

	var (
		filter    string
		args      = []any{limit, offset}
		countSQL  = `SELECT COUNT(id) FROM analyses`
		countArgs []any
	)
	if category != "" {
		filter = `WHERE $3 = ANY(categories)`
		args = append(args, category)
		countSQL += ` WHERE $1 = ANY(categories)`
		countArgs = append(countArgs, category)
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM analyses
		`+filter+`
		ORDER BY analyzed DESC, id
		LIMIT $1 OFFSET $2
	`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	analyses := []models.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	numPages := (total + limit - 1) / limit
	return analyses, numPages, nil
}

// Analysis returns the analysis with the given ID or storage.ErrAnalysisNotFound.
func (s *Store) Analysis(ctx context.Context, id uuid.UUID) (models.Analysis, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Analysis{}, storage.ErrAnalysisNotFound
		}
		return models.Analysis{}, err
	}
	return a, nil
}

func scanAnalysis(row pgx.Row) (models.Analysis, error) {
	var (
		a                         models.Analysis
		tokens, problems, flagged []byte
	)
	err := row.Scan(&a.ID, &a.Author, &a.Text, &a.Source, &a.Link, &tokens, &problems, &flagged, &a.Analyzed)
	if err != nil {
		return models.Analysis{}, err
	}
	if err := json.Unmarshal(tokens, &a.Tokens); err != nil {
		return models.Analysis{}, err
	}
	if err := json.Unmarshal(problems, &a.Problems); err != nil {
		return models.Analysis{}, err
	}
	if err := json.Unmarshal(flagged, &a.Flagged); err != nil {
		return models.Analysis{}, err
	}
	a.Analyzed = a.Analyzed.UTC()
	return a, nil
}
