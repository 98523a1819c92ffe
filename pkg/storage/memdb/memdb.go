package memdb

import (
	"context"
	"sort"
	"sync"

	"github.com/gofrs/uuid"

	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
	"railwatch/pkg/storage"
)

type Store struct {
	mu       sync.Mutex
	analyses map[uuid.UUID]models.Analysis
}

func New() *Store {
	db := Store{
		analyses: make(map[uuid.UUID]models.Analysis),
	}

	return &db
}

func (db *Store) AddAnalysis(ctx context.Context, a models.Analysis) (id uuid.UUID, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = models.AnalysisID(a.Source, a.Text)
	}
	db.analyses[a.ID] = a

	return a.ID, nil
}

func (db *Store) AddAnalyses(ctx context.Context, as []models.Analysis) (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, a := range as {
		if a.ID == uuid.Nil {
			a.ID = models.AnalysisID(a.Source, a.Text)
		}
		db.analyses[a.ID] = a
	}

	return
}

func (db *Store) LatestAnalyses(ctx context.Context, page, limit int) (analyses []models.Analysis, numPages int, err error) {
	return db.page(page, limit, func(models.Analysis) bool { return true })
}

func (db *Store) ProblemAnalyses(ctx context.Context, category lexer.Category, page, limit int) (analyses []models.Analysis, numPages int, err error) {
	if err := storage.CheckCategory(category); err != nil {
		return nil, 0, err
	}
	return db.page(page, limit, func(a models.Analysis) bool { return a.HasProblem(category) })
}

// page returns the matching analyses newest first.
func (db *Store) page(page, limit int, keep func(models.Analysis) bool) ([]models.Analysis, int, error) {
	page, limit = storage.PageParams(page, limit)

	db.mu.Lock()
	all := make([]models.Analysis, 0, len(db.analyses))
	for _, v := range db.analyses {
		if keep(v) {
			all = append(all, v)
		}
	}
	db.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Analyzed.Equal(all[j].Analyzed) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].Analyzed.After(all[j].Analyzed)
	})

	start, end, numPages := storage.Paginate(len(all), page, limit)
	return all[start:end], numPages, nil
}

func (db *Store) Analysis(ctx context.Context, id uuid.UUID) (models.Analysis, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.analyses[id]
	if !ok {
		return models.Analysis{}, storage.ErrAnalysisNotFound
	}

	return a, nil
}
