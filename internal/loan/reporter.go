package loan

import (
	"context"
	"fmt"
	"time"

	"booklib/internal/models"
	"booklib/internal/storage"
)

// LateLoan pairs an overdue open loan with the number of full days it
// is late.
type LateLoan struct {
	models.Loan
	DaysLate int `json:"days_late"`
}

// Reporter answers read-only queries over the loan ledger. It takes no
// locks and never blocks the engine.
type Reporter struct {
	store storage.Store
}

// NewReporter creates a reporter backed by the given store.
func NewReporter(store storage.Store) *Reporter {
	return &Reporter{store: store}
}

// LateLoans returns every loan that is still open and whose due date
// has passed. DaysLate is floor((now - dueAt) / 24h), never negative.
func (r *Reporter) LateLoans(ctx context.Context, now time.Time) ([]LateLoan, error) {
	loans, err := r.store.ListOpenLoansDueBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	late := make([]LateLoan, 0, len(loans))
	for _, l := range loans {
		days := int(now.Sub(l.DueAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		late = append(late, LateLoan{Loan: l, DaysLate: days})
	}

	return late, nil
}

// AllLoans returns the full loan ledger, open and closed.
func (r *Reporter) AllLoans(ctx context.Context) ([]models.Loan, error) {
	loans, err := r.store.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return loans, nil
}
