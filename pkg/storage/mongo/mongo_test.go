package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"railwatch/pkg/fuzzy"
	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
	"railwatch/pkg/storage"
)

func connect(t *testing.T) *Store {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := StorageConnect(ctx)
	if err != nil {
		t.Skipf("mongo test instance unavailable: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := RestoreDB(ctx, db); err != nil {
			t.Logf("WARNING: unable to restore DB state after the test: %v", err)
		}
		db.Close(ctx)
	})

	return db
}

func testAnalysis(text string, at time.Time, problems ...lexer.Category) models.Analysis {
	a := models.Analysis{
		Text:     text,
		Source:   "test",
		Tokens:   []lexer.Token{{Category: lexer.Word, Lexeme: text}},
		Problems: []lexer.Token{},
		Flagged:  []fuzzy.MatchResult{},
		Analyzed: at,
	}
	for _, c := range problems {
		a.Problems = append(a.Problems, lexer.Token{Category: c, Lexeme: c.String()})
	}
	return a
}

func TestStore_AddAnalysis(t *testing.T) {
	db := connect(t)
	ctx := context.Background()

	a := testAnalysis("trem lotado", time.Date(2025, 1, 12, 10, 22, 13, 0, time.UTC), lexer.Overcrowding)

	id, err := db.AddAnalysis(ctx, a)
	if err != nil {
		t.Fatalf("unexpected error adding analysis: %v", err)
	}
	if want := models.AnalysisID("test", "trem lotado"); id != want {
		t.Errorf("want derived ID %v, got %v", want, id)
	}

	// same post again replaces the stored document
	if _, err := db.AddAnalysis(ctx, a); err != nil {
		t.Fatalf("unexpected error on upsert: %v", err)
	}
	cnt, err := db.collection().CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("unexpected error counting documents: %v", err)
	}
	if cnt != 1 {
		t.Errorf("want 1 document, got %d", cnt)
	}

	got, err := db.Analysis(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != a.Text || !got.Analyzed.Equal(a.Analyzed) {
		t.Errorf("want analysis\n%+v\n\ngot analysis\n%+v\n", a, got)
	}
	if !got.HasProblem(lexer.Overcrowding) {
		t.Errorf("want Overcrowding problem, got %+v", got.Problems)
	}
}

func TestStore_AnalysisNotFound(t *testing.T) {
	db := connect(t)

	id, err := uuid.NewV4()
	if err != nil {
		t.Fatalf("failed to generate uuid: %v", err)
	}
	_, err = db.Analysis(context.Background(), id)
	if !errors.Is(err, storage.ErrAnalysisNotFound) {
		t.Errorf("want ErrAnalysisNotFound, got %v", err)
	}
}

func TestStore_Pages(t *testing.T) {
	db := connect(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 12, 7, 0, 0, 0, time.UTC)
	err := db.AddAnalyses(ctx, []models.Analysis{
		testAnalysis("um", base, lexer.Delay),
		testAnalysis("dois", base.Add(time.Minute)),
		testAnalysis("tres", base.Add(2*time.Minute), lexer.Delay, lexer.Failure),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	latest, numPages, err := db.LatestAnalyses(ctx, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numPages != 2 {
		t.Errorf("want 2 pages, got %d", numPages)
	}
	if len(latest) != 2 || latest[0].Text != "tres" || latest[1].Text != "dois" {
		t.Errorf("want [tres dois], got %+v", latest)
	}

	delays, _, err := db.ProblemAnalyses(ctx, lexer.Delay, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delays) != 2 {
		t.Errorf("want 2 delay analyses, got %d", len(delays))
	}

	_, _, err = db.ProblemAnalyses(ctx, lexer.Word, 1, 10)
	if !errors.Is(err, storage.ErrInvalidCategory) {
		t.Errorf("want ErrInvalidCategory, got %v", err)
	}
}
