package stubs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklib/internal/models"
	"booklib/internal/storage"
)

func TestMockStore_BookCRUD(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	id, err := store.CreateBook(ctx, models.Book{Title: "Dune", Author: "Frank Herbert", Category: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	book, err := store.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Nil(t, book.HolderID)

	book.Title = "Dune Messiah"
	require.NoError(t, store.UpdateBook(ctx, book))

	book, err = store.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", book.Title)

	require.NoError(t, store.DeleteBook(ctx, id))
	_, err = store.GetBook(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMockStore_UpdateBookKeepsHolder(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	id, err := store.CreateBook(ctx, models.Book{Title: "Held", Author: "A", Category: 1})
	require.NoError(t, err)

	holder := int64(9)
	err = store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		return tx.SetBookHolder(ctx, id, &holder)
	})
	require.NoError(t, err)

	// A catalog update must not clobber the holder pointer.
	require.NoError(t, store.UpdateBook(ctx, models.Book{ID: id, Title: "Held (2nd ed.)", Author: "A", Category: 1}))

	book, err := store.GetBook(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, book.HolderID)
	assert.Equal(t, holder, *book.HolderID)
}

func TestMockStore_SearchBooksByTitle(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	_, err := store.CreateBook(ctx, models.Book{Title: "The Left Hand of Darkness", Author: "Le Guin", Category: 1})
	require.NoError(t, err)
	_, err = store.CreateBook(ctx, models.Book{Title: "A Wizard of Earthsea", Author: "Le Guin", Category: 2})
	require.NoError(t, err)

	books, err := store.SearchBooksByTitle(ctx, "hand")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "The Left Hand of Darkness", books[0].Title)

	books, err = store.SearchBooksByTitle(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestMockStore_CustomerUniqueUsername(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	_, err := store.CreateCustomer(ctx, models.Customer{Username: "alice"})
	require.NoError(t, err)

	_, err = store.CreateCustomer(ctx, models.Customer{Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	customer, err := store.GetCustomerByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", customer.Username)

	_, err = store.GetCustomerByUsername(ctx, "bob")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMockStore_DeleteWithLoanHistory(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	bookID, err := store.CreateBook(ctx, models.Book{Title: "Ledgered", Author: "A", Category: 1})
	require.NoError(t, err)
	customerID, err := store.CreateCustomer(ctx, models.Customer{Username: "alice"})
	require.NoError(t, err)

	issuedAt := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	var loanID int64
	err = store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		if err := tx.SetBookHolder(ctx, bookID, &customerID); err != nil {
			return err
		}
		loanID, err = tx.InsertLoan(ctx, models.Loan{
			BookID:     bookID,
			CustomerID: customerID,
			IssuedAt:   issuedAt,
			DueAt:      issuedAt.Add(24 * time.Hour),
		})
		return err
	})
	require.NoError(t, err)

	// Neither side of an open loan can be deleted.
	assert.ErrorIs(t, store.DeleteBook(ctx, bookID), storage.ErrInUse)
	assert.ErrorIs(t, store.DeleteCustomer(ctx, customerID), storage.ErrInUse)

	// The loan must survive the rejected delete, still open.
	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Nil(t, loans[0].ReturnedAt)

	// Closing the loan keeps the history, so deletion stays rejected.
	err = store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		if err := tx.CloseLoan(ctx, loanID, issuedAt.Add(2*24*time.Hour)); err != nil {
			return err
		}
		return tx.SetBookHolder(ctx, bookID, nil)
	})
	require.NoError(t, err)

	assert.ErrorIs(t, store.DeleteBook(ctx, bookID), storage.ErrInUse)
	assert.ErrorIs(t, store.DeleteCustomer(ctx, customerID), storage.ErrInUse)
}

func TestMockStore_LoanTx(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	bookID, err := store.CreateBook(ctx, models.Book{Title: "Loanable", Author: "A", Category: 1})
	require.NoError(t, err)
	customerID, err := store.CreateCustomer(ctx, models.Customer{Username: "alice"})
	require.NoError(t, err)

	issuedAt := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	dueAt := issuedAt.Add(10 * 24 * time.Hour)

	var loanID int64
	err = store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		book, err := tx.BookForUpdate(ctx, bookID)
		require.NoError(t, err)
		require.Nil(t, book.HolderID)

		if err := tx.SetBookHolder(ctx, bookID, &customerID); err != nil {
			return err
		}
		loanID, err = tx.InsertLoan(ctx, models.Loan{
			BookID:     bookID,
			CustomerID: customerID,
			IssuedAt:   issuedAt,
			DueAt:      dueAt,
		})
		return err
	})
	require.NoError(t, err)

	// The open loan is findable and due-date filtering works.
	err = store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		open, err := tx.OpenLoanByBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, loanID, open.ID)
		return nil
	})
	require.NoError(t, err)

	overdue, err := store.ListOpenLoansDueBefore(ctx, dueAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, overdue, 1)

	notYet, err := store.ListOpenLoansDueBefore(ctx, dueAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, notYet)

	// Close the loan; it leaves the open set but stays in the ledger.
	returnedAt := issuedAt.Add(24 * time.Hour)
	err = store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		if err := tx.CloseLoan(ctx, loanID, returnedAt); err != nil {
			return err
		}
		return tx.SetBookHolder(ctx, bookID, nil)
	})
	require.NoError(t, err)

	err = store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		_, err := tx.OpenLoanByBook(ctx, bookID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.NotNil(t, loans[0].ReturnedAt)
	assert.Equal(t, returnedAt, *loans[0].ReturnedAt)
}
