package storage

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"

	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
)

var (
	ErrConnectDB        = errors.New("unable to establish DB connection")
	ErrDBNotResponding  = errors.New("DB not responding")
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrInvalidCategory  = errors.New("not a problem category")
)

// Storage persists analyses. Pages are 1-based; numPages is computed for the
// given limit.
type Storage interface {
	AddAnalysis(ctx context.Context, a models.Analysis) (uuid.UUID, error)
	AddAnalyses(ctx context.Context, as []models.Analysis) error
	LatestAnalyses(ctx context.Context, page, limit int) (analyses []models.Analysis, numPages int, err error)
	ProblemAnalyses(ctx context.Context, category lexer.Category, page, limit int) (analyses []models.Analysis, numPages int, err error)
	Analysis(ctx context.Context, id uuid.UUID) (models.Analysis, error)
}

// ValidAnalyses drops analyses without text and fills in missing IDs.
func ValidAnalyses(as ...models.Analysis) []models.Analysis {
	valid := make([]models.Analysis, 0, len(as))
	for _, a := range as {
		if a.Text == "" {
			continue
		}
		if a.ID == uuid.Nil {
			a.ID = models.AnalysisID(a.Source, a.Text)
		}
		valid = append(valid, a)
	}
	return valid
}

// CheckCategory returns ErrInvalidCategory unless c is a problem category.
func CheckCategory(c lexer.Category) error {
	if !c.IsProblem() {
		return ErrInvalidCategory
	}
	return nil
}

// DefaultLimit is the page size used when none is given.
const DefaultLimit = 10

// PageParams replaces a non-positive page with 1 and a non-positive limit
// with DefaultLimit.
func PageParams(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return page, limit
}

// Paginate normalizes page and limit and returns the slice bounds of the page
// within total items together with the number of pages.
func Paginate(total, page, limit int) (start, end, numPages int) {
	if limit <= 0 {
		return 0, 0, 0
	}
	if page < 1 {
		page = 1
	}

	numPages = (total + limit - 1) / limit
	start = (page - 1) * limit
	if start >= total {
		return total, total, numPages
	}
	end = start + limit
	if end > total {
		end = total
	}
	return start, end, numPages
}
