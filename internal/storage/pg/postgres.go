package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"booklib/internal/models"
	"booklib/internal/storage"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isFKViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// PostgresStore implements the Store interface on a pgx connection
// pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Initialize is a no-op - the schema is managed via goose migrations
// (see migrations/ directory).
func (s *PostgresStore) Initialize(ctx context.Context) error {
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const bookColumns = `id, title, author, year_published, category, cover, holder_id`

func scanBook(row pgx.Row) (models.Book, error) {
	var book models.Book
	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.Year, &book.Category, &book.Cover, &book.HolderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Book{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Book{}, fmt.Errorf("failed to scan book: %w", err)
	}
	return book, nil
}

// CreateBook inserts a book and returns its id.
func (s *PostgresStore) CreateBook(ctx context.Context, book models.Book) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO books (title, author, year_published, category, cover)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		book.Title, book.Author, book.Year, book.Category, book.Cover,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create book: %w", err)
	}
	return id, nil
}

// GetBook returns the book with the given id.
func (s *PostgresStore) GetBook(ctx context.Context, id int64) (models.Book, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	return scanBook(row)
}

// UpdateBook replaces the catalog attributes of an existing book. The
// holder pointer is owned by the loan engine and is not touched here.
func (s *PostgresStore) UpdateBook(ctx context.Context, book models.Book) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE books SET title = $2, author = $3, year_published = $4, category = $5, cover = $6
		 WHERE id = $1`,
		book.ID, book.Title, book.Author, book.Year, book.Category, book.Cover,
	)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteBook removes the book with the given id. A book with loan
// history cannot be deleted; the ledger keeps its foreign key forever.
func (s *PostgresStore) DeleteBook(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if isFKViolation(err) {
		return storage.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryBooks(ctx context.Context, query string, args ...any) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.Year, &book.Category, &book.Cover, &book.HolderID); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// ListBooks returns all books ordered by id.
func (s *PostgresStore) ListBooks(ctx context.Context) ([]models.Book, error) {
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
}

// SearchBooksByTitle returns books whose title contains the query,
// case-insensitively.
func (s *PostgresStore) SearchBooksByTitle(ctx context.Context, title string) ([]models.Book, error) {
	return s.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE title ILIKE '%' || $1 || '%' ORDER BY id`, title)
}

const customerColumns = `id, username, password_hash, name, city, age, librarian`

func scanCustomer(row pgx.Row) (models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Username, &c.PasswordHash, &c.Name, &c.City, &c.Age, &c.Librarian)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Customer{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to scan customer: %w", err)
	}
	return c, nil
}

// CreateCustomer inserts a customer and returns its id. A duplicate
// username yields ErrAlreadyExists.
func (s *PostgresStore) CreateCustomer(ctx context.Context, customer models.Customer) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customers (username, password_hash, name, city, age, librarian)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		customer.Username, customer.PasswordHash, customer.Name, customer.City, customer.Age, customer.Librarian,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, storage.ErrAlreadyExists
		}
		return 0, fmt.Errorf("failed to create customer: %w", err)
	}
	return id, nil
}

// GetCustomer returns the customer with the given id.
func (s *PostgresStore) GetCustomer(ctx context.Context, id int64) (models.Customer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

// GetCustomerByUsername returns the customer with the given username.
func (s *PostgresStore) GetCustomerByUsername(ctx context.Context, username string) (models.Customer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE username = $1`, username)
	return scanCustomer(row)
}

func (s *PostgresStore) queryCustomers(ctx context.Context, query string, args ...any) ([]models.Customer, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Username, &c.PasswordHash, &c.Name, &c.City, &c.Age, &c.Librarian); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// ListCustomers returns all customers ordered by id.
func (s *PostgresStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return s.queryCustomers(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
}

// SearchCustomersByName returns customers whose display name contains
// the query, case-insensitively.
func (s *PostgresStore) SearchCustomersByName(ctx context.Context, name string) ([]models.Customer, error) {
	return s.queryCustomers(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE name ILIKE '%' || $1 || '%' ORDER BY id`, name)
}

// DeleteCustomer removes the customer with the given id. A customer
// with loan history, or one currently holding a book, cannot be
// deleted.
func (s *PostgresStore) DeleteCustomer(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if isFKViolation(err) {
		return storage.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const loanColumns = `id, book_id, customer_id, issued_at, due_at, returned_at`

func (s *PostgresStore) queryLoans(ctx context.Context, query string, args ...any) ([]models.Loan, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		var l models.Loan
		if err := rows.Scan(&l.ID, &l.BookID, &l.CustomerID, &l.IssuedAt, &l.DueAt, &l.ReturnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// ListLoans returns the full loan ledger ordered by id.
func (s *PostgresStore) ListLoans(ctx context.Context) ([]models.Loan, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY id`)
}

// ListOpenLoansDueBefore returns open loans with a due date strictly
// before the cutoff.
func (s *PostgresStore) ListOpenLoansDueBefore(ctx context.Context, cutoff time.Time) ([]models.Loan, error) {
	return s.queryLoans(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE returned_at IS NULL AND due_at < $1 ORDER BY id`, cutoff)
}

// WithLoanTx runs fn inside a database transaction. The book row
// locked by BookForUpdate keeps concurrent transactions on the same
// book serialized until commit or rollback.
func (s *PostgresStore) WithLoanTx(ctx context.Context, fn func(tx storage.LoanTx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&loanTx{tx: tx})
	})
}

type loanTx struct {
	tx pgx.Tx
}

func (t *loanTx) BookForUpdate(ctx context.Context, bookID int64) (models.Book, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, bookID)
	return scanBook(row)
}

func (t *loanTx) SetBookHolder(ctx context.Context, bookID int64, holderID *int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE books SET holder_id = $2 WHERE id = $1`, bookID, holderID)
	if err != nil {
		return fmt.Errorf("failed to set book holder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *loanTx) InsertLoan(ctx context.Context, loan models.Loan) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO loans (book_id, customer_id, issued_at, due_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		loan.BookID, loan.CustomerID, loan.IssuedAt, loan.DueAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert loan: %w", err)
	}
	return id, nil
}

func (t *loanTx) OpenLoanByBook(ctx context.Context, bookID int64) (models.Loan, error) {
	var l models.Loan
	err := t.tx.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE book_id = $1 AND returned_at IS NULL`, bookID,
	).Scan(&l.ID, &l.BookID, &l.CustomerID, &l.IssuedAt, &l.DueAt, &l.ReturnedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Loan{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Loan{}, fmt.Errorf("failed to query open loan: %w", err)
	}
	return l, nil
}

func (t *loanTx) CloseLoan(ctx context.Context, loanID int64, returnedAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE loans SET returned_at = $2 WHERE id = $1 AND returned_at IS NULL`, loanID, returnedAt)
	if err != nil {
		return fmt.Errorf("failed to close loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
