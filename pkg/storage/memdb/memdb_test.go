package memdb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid"

	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
	"railwatch/pkg/storage"
)

func testAnalysis(i int, problems ...lexer.Category) models.Analysis {
	a := models.Analysis{
		Text:     fmt.Sprintf("post %d", i),
		Source:   "test",
		Analyzed: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
	}
	for _, c := range problems {
		a.Problems = append(a.Problems, lexer.Token{Category: c, Lexeme: c.String()})
	}
	return a
}

func TestStore_AddAnalysis(t *testing.T) {
	db := New()

	a := testAnalysis(1)
	gotID, err := db.AddAnalysis(context.Background(), a)
	if err != nil {
		t.Errorf("unexpected error while adding analysis: %v", err)
	}
	if want := models.AnalysisID(a.Source, a.Text); gotID != want {
		t.Errorf("want analysis ID %v, got %v", want, gotID)
	}

	// Same post again is an update, not a new record.
	if _, err := db.AddAnalysis(context.Background(), a); err != nil {
		t.Errorf("unexpected error while re-adding analysis: %v", err)
	}
	if len(db.analyses) != 1 {
		t.Errorf("want 1 analysis in DB, got %d", len(db.analyses))
	}

	got, err := db.Analysis(context.Background(), gotID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != a.Text {
		t.Errorf("want text %q, got %q", a.Text, got.Text)
	}
}

func TestStore_AnalysisNotFound(t *testing.T) {
	db := New()

	id, _ := uuid.NewV4()
	_, err := db.Analysis(context.Background(), id)
	if !errors.Is(err, storage.ErrAnalysisNotFound) {
		t.Errorf("want ErrAnalysisNotFound, got %v", err)
	}
}

func TestStore_LatestAnalyses(t *testing.T) {
	db := New()

	var as []models.Analysis
	for i := 1; i <= 7; i++ {
		as = append(as, testAnalysis(i))
	}
	if err := db.AddAnalyses(context.Background(), as); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name      string
		page      int
		limit     int
		wantTexts []string
		wantPages int
	}{
		{"first page", 1, 3, []string{"post 7", "post 6", "post 5"}, 3},
		{"last page", 3, 3, []string{"post 1"}, 3},
		{"page past the end", 4, 3, []string{}, 3},
		{"page zero is page one", 0, 2, []string{"post 7", "post 6"}, 4},
		{"zero limit uses the default", 1, 0, []string{"post 7", "post 6", "post 5", "post 4", "post 3", "post 2", "post 1"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, numPages, err := db.LatestAnalyses(context.Background(), tt.page, tt.limit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if numPages != tt.wantPages {
				t.Errorf("want %d pages, got %d", tt.wantPages, numPages)
			}
			if len(got) != len(tt.wantTexts) {
				t.Fatalf("want %d analyses, got %d", len(tt.wantTexts), len(got))
			}
			for i := range got {
				if got[i].Text != tt.wantTexts[i] {
					t.Errorf("position %d: want %q, got %q", i, tt.wantTexts[i], got[i].Text)
				}
			}
		})
	}
}

func TestStore_ProblemAnalyses(t *testing.T) {
	db := New()

	as := []models.Analysis{
		testAnalysis(1, lexer.Delay),
		testAnalysis(2, lexer.Overcrowding),
		testAnalysis(3, lexer.Delay, lexer.Complaint),
		testAnalysis(4),
	}
	if err := db.AddAnalyses(context.Background(), as); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, numPages, err := db.ProblemAnalyses(context.Background(), lexer.Delay, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numPages != 1 || len(got) != 2 {
		t.Fatalf("want 2 analyses on 1 page, got %d on %d", len(got), numPages)
	}
	if got[0].Text != "post 3" || got[1].Text != "post 1" {
		t.Errorf("want [post 3, post 1], got [%s, %s]", got[0].Text, got[1].Text)
	}

	_, _, err = db.ProblemAnalyses(context.Background(), lexer.Praise, 1, 10)
	if !errors.Is(err, storage.ErrInvalidCategory) {
		t.Errorf("want ErrInvalidCategory, got %v", err)
	}
}
