package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"booklib/internal/models"
	"booklib/internal/storage"
)

// Actor identifies the authenticated customer performing an operation.
// Librarian mirrors the privileged flag on the customer record.
type Actor struct {
	ID        int64
	Librarian bool
}

// Engine enforces the loan lifecycle rules. A book moves between
// available and on-loan only through IssueLoan and ReturnLoan; the
// holder pointer and the loan ledger always change in the same
// transaction.
type Engine struct {
	store  storage.Store
	logger *zap.Logger
}

// NewEngine creates a loan engine backed by the given store.
func NewEngine(store storage.Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// IssueLoan lends the book to the borrower. The book must exist, be
// available, and carry a valid category. On success the book's holder
// is set and an open loan with the policy due date is appended, both
// in one transaction. When two calls race on the same available book,
// exactly one succeeds; the other gets ErrAlreadyOnLoan.
func (e *Engine) IssueLoan(ctx context.Context, bookID, borrowerID int64, now time.Time) (models.Loan, error) {
	var created models.Loan

	err := e.store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		book, err := tx.BookForUpdate(ctx, bookID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if book.HolderID != nil {
			return ErrAlreadyOnLoan
		}

		dueAt, err := DueDate(book.Category, now)
		if err != nil {
			return err
		}

		if err := tx.SetBookHolder(ctx, bookID, &borrowerID); err != nil {
			return err
		}

		created = models.Loan{
			BookID:     bookID,
			CustomerID: borrowerID,
			IssuedAt:   now,
			DueAt:      dueAt,
		}
		id, err := tx.InsertLoan(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		return nil
	})
	if err != nil {
		return models.Loan{}, coerceStoreError(err)
	}

	e.logger.Info("loan issued",
		zap.Int64("book_id", bookID),
		zap.Int64("customer_id", borrowerID),
		zap.Time("due_at", created.DueAt),
	)

	return created, nil
}

// ReturnLoan closes the open loan for the book. Only the current
// holder may return a book; a librarian may return someone else's book
// only when the explicit override flag is set. On success the holder
// is cleared and the loan's return timestamp is set, in one
// transaction.
//
// If the holder is set but no open loan exists, the holder is still
// cleared (so the book does not stay stuck) and ErrLedgerInconsistency
// is reported instead of a silent success.
func (e *Engine) ReturnLoan(ctx context.Context, bookID int64, requester Actor, now time.Time, override bool) (models.Loan, error) {
	var (
		closed       models.Loan
		inconsistent bool
	)

	err := e.store.WithLoanTx(ctx, func(tx storage.LoanTx) error {
		book, err := tx.BookForUpdate(ctx, bookID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if book.HolderID == nil {
			return ErrNotOnLoan
		}
		if *book.HolderID != requester.ID && !(override && requester.Librarian) {
			return ErrForbidden
		}

		open, err := tx.OpenLoanByBook(ctx, bookID)
		if errors.Is(err, storage.ErrNotFound) {
			// The holder flag disagrees with the ledger. Clear the flag
			// and commit; the fault is reported after the transaction.
			inconsistent = true
			return tx.SetBookHolder(ctx, bookID, nil)
		}
		if err != nil {
			return err
		}

		if err := tx.SetBookHolder(ctx, bookID, nil); err != nil {
			return err
		}
		if err := tx.CloseLoan(ctx, open.ID, now); err != nil {
			return err
		}

		closed = open
		closed.ReturnedAt = &now

		return nil
	})
	if err != nil {
		return models.Loan{}, coerceStoreError(err)
	}

	if inconsistent {
		e.logger.Warn("cleared book holder without a matching open loan",
			zap.Int64("book_id", bookID),
			zap.Int64("customer_id", requester.ID),
		)
		return models.Loan{}, fmt.Errorf("%w: book %d", ErrLedgerInconsistency, bookID)
	}

	e.logger.Info("loan returned",
		zap.Int64("book_id", bookID),
		zap.Int64("customer_id", requester.ID),
		zap.Bool("override", override),
	)

	return closed, nil
}

// coerceStoreError passes domain outcomes through untouched and wraps
// everything else as a persistence failure.
func coerceStoreError(err error) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
