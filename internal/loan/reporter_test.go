package loan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booklib/internal/storage/stubs"
)

func TestReporter_LateLoans(t *testing.T) {
	store := stubs.NewMockStore()
	engine := NewEngine(store, zap.NewNop())
	reporter := NewReporter(store)
	ctx := context.Background()

	bookID := addBook(t, store, "Short Loan", 2) // due 5 days after issue
	alice := addCustomer(t, store, "alice")

	issuedAt := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err := engine.IssueLoan(ctx, bookID, alice, issuedAt)
	require.NoError(t, err)

	// Not yet due.
	late, err := reporter.LateLoans(ctx, issuedAt.Add(4*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, late)

	// One day past due.
	late, err = reporter.LateLoans(ctx, issuedAt.Add(6*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, bookID, late[0].BookID)
	assert.Equal(t, 1, late[0].DaysLate)

	// Returned loans never show up as late, no matter how old.
	_, err = engine.ReturnLoan(ctx, bookID, Actor{ID: alice}, issuedAt.Add(7*24*time.Hour), false)
	require.NoError(t, err)

	late, err = reporter.LateLoans(ctx, issuedAt.Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, late)
}

func TestReporter_LateLoans_DaysLateFlooredAtZero(t *testing.T) {
	store := stubs.NewMockStore()
	engine := NewEngine(store, zap.NewNop())
	reporter := NewReporter(store)
	ctx := context.Background()

	bookID := addBook(t, store, "Barely Late", 3) // due 2 days after issue
	alice := addCustomer(t, store, "alice")

	issuedAt := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err := engine.IssueLoan(ctx, bookID, alice, issuedAt)
	require.NoError(t, err)

	// Past due by one hour: late, but zero full days.
	late, err := reporter.LateLoans(ctx, issuedAt.Add(2*24*time.Hour+time.Hour))
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, 0, late[0].DaysLate)
}

func TestReporter_AllLoans(t *testing.T) {
	store := stubs.NewMockStore()
	engine := NewEngine(store, zap.NewNop())
	reporter := NewReporter(store)
	ctx := context.Background()

	first := addBook(t, store, "First", 1)
	second := addBook(t, store, "Second", 2)
	alice := addCustomer(t, store, "alice")

	issuedAt := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	_, err := engine.IssueLoan(ctx, first, alice, issuedAt)
	require.NoError(t, err)
	_, err = engine.IssueLoan(ctx, second, alice, issuedAt)
	require.NoError(t, err)
	_, err = engine.ReturnLoan(ctx, first, Actor{ID: alice}, issuedAt.Add(24*time.Hour), false)
	require.NoError(t, err)

	loans, err := reporter.AllLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 2)

	// Closed and open loans both remain in the ledger.
	assert.NotNil(t, loans[0].ReturnedAt)
	assert.Nil(t, loans[1].ReturnedAt)
	for _, l := range loans {
		if l.ReturnedAt != nil {
			assert.False(t, l.ReturnedAt.Before(l.IssuedAt))
		}
	}
}
