package loan

import (
	"fmt"
	"time"
)

// loanPeriods maps a book category to its maximum loan duration.
var loanPeriods = map[int]time.Duration{
	1: 10 * 24 * time.Hour,
	2: 5 * 24 * time.Hour,
	3: 2 * 24 * time.Hour,
}

// Period returns the maximum loan duration for a book category.
// Categories outside the closed set {1, 2, 3} are rejected.
func Period(category int) (time.Duration, error) {
	period, ok := loanPeriods[category]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCategory, category)
	}
	return period, nil
}

// DueDate computes when a loan issued at issuedAt for the given
// category falls due. Arithmetic is instant-based; no local-day math.
func DueDate(category int, issuedAt time.Time) (time.Time, error) {
	period, err := Period(category)
	if err != nil {
		return time.Time{}, err
	}
	return issuedAt.Add(period), nil
}
