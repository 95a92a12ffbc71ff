package storage

import (
	"context"
	"errors"
	"time"

	"booklib/internal/models"
)

// Sentinel errors exported by storage implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a uniqueness constraint is violated,
	// e.g. registering a username that is already taken.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInUse is returned when a record cannot be deleted because other
	// records still reference it, e.g. a book with loan history. The loan
	// ledger is append-only, so such references never go away.
	ErrInUse = errors.New("record is referenced by other records")
)

// LoanTx is the transactional view used by the loan engine. All calls
// operate inside a single store transaction; the book row fetched via
// BookForUpdate stays locked until the transaction ends, so two
// concurrent transactions on the same book serialize.
type LoanTx interface {
	BookForUpdate(ctx context.Context, bookID int64) (models.Book, error)
	SetBookHolder(ctx context.Context, bookID int64, holderID *int64) error
	InsertLoan(ctx context.Context, loan models.Loan) (int64, error)
	OpenLoanByBook(ctx context.Context, bookID int64) (models.Loan, error)
	CloseLoan(ctx context.Context, loanID int64, returnedAt time.Time) error
}

// Store defines the interface for data storage operations
type Store interface {
	// Book catalog
	CreateBook(ctx context.Context, book models.Book) (int64, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
	UpdateBook(ctx context.Context, book models.Book) error
	DeleteBook(ctx context.Context, id int64) error
	ListBooks(ctx context.Context) ([]models.Book, error)
	SearchBooksByTitle(ctx context.Context, title string) ([]models.Book, error)

	// Customers
	CreateCustomer(ctx context.Context, customer models.Customer) (int64, error)
	GetCustomer(ctx context.Context, id int64) (models.Customer, error)
	GetCustomerByUsername(ctx context.Context, username string) (models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	SearchCustomersByName(ctx context.Context, name string) ([]models.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	// Loan ledger reads
	ListLoans(ctx context.Context) ([]models.Loan, error)
	ListOpenLoansDueBefore(ctx context.Context, cutoff time.Time) ([]models.Loan, error)

	// WithLoanTx runs fn inside a single transaction and commits if fn
	// returns nil. An error from fn rolls the transaction back and is
	// returned unchanged.
	WithLoanTx(ctx context.Context, fn func(tx LoanTx) error) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
