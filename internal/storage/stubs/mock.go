package stubs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"booklib/internal/models"
	"booklib/internal/storage"
)

// MockStore is an in-memory implementation of the Store interface for
// tests and local development. WithLoanTx serializes under the store
// lock, which gives the same per-book serialization the Postgres
// implementation gets from row locking.
type MockStore struct {
	mu sync.Mutex

	books     map[int64]models.Book
	customers map[int64]models.Customer
	loans     map[int64]models.Loan

	nextBookID     int64
	nextCustomerID int64
	nextLoanID     int64
}

// NewMockStore creates a new empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		books:          make(map[int64]models.Book),
		customers:      make(map[int64]models.Customer),
		loans:          make(map[int64]models.Loan),
		nextBookID:     1,
		nextCustomerID: 1,
		nextLoanID:     1,
	}
}

// Initialize is a no-op for the mock store.
func (m *MockStore) Initialize(ctx context.Context) error {
	return nil
}

// CreateBook adds a book and returns its id.
func (m *MockStore) CreateBook(ctx context.Context, book models.Book) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book.ID = m.nextBookID
	m.nextBookID++
	m.books[book.ID] = book

	return book.ID, nil
}

// GetBook returns the book with the given id.
func (m *MockStore) GetBook(ctx context.Context, id int64) (models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[id]
	if !ok {
		return models.Book{}, storage.ErrNotFound
	}
	return book, nil
}

// UpdateBook replaces the catalog attributes of an existing book. The
// holder pointer is owned by the loan engine and is left untouched.
func (m *MockStore) UpdateBook(ctx context.Context, book models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.books[book.ID]
	if !ok {
		return storage.ErrNotFound
	}
	book.HolderID = current.HolderID
	m.books[book.ID] = book

	return nil
}

// DeleteBook removes the book with the given id. Books with loan
// history cannot be deleted, matching the ledger foreign keys in
// Postgres.
func (m *MockStore) DeleteBook(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[id]; !ok {
		return storage.ErrNotFound
	}
	for _, loan := range m.loans {
		if loan.BookID == id {
			return storage.ErrInUse
		}
	}
	delete(m.books, id)

	return nil
}

// ListBooks returns all books ordered by id.
func (m *MockStore) ListBooks(ctx context.Context) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	books := make([]models.Book, 0, len(m.books))
	for _, book := range m.books {
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })

	return books, nil
}

// SearchBooksByTitle returns books whose title contains the query,
// case-insensitively, ordered by id.
func (m *MockStore) SearchBooksByTitle(ctx context.Context, title string) ([]models.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := strings.ToLower(title)
	var books []models.Book
	for _, book := range m.books {
		if strings.Contains(strings.ToLower(book.Title), query) {
			books = append(books, book)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })

	return books, nil
}

// CreateCustomer adds a customer and returns its id. Usernames are
// unique.
func (m *MockStore) CreateCustomer(ctx context.Context, customer models.Customer) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.customers {
		if existing.Username == customer.Username {
			return 0, storage.ErrAlreadyExists
		}
	}

	customer.ID = m.nextCustomerID
	m.nextCustomerID++
	m.customers[customer.ID] = customer

	return customer.ID, nil
}

// GetCustomer returns the customer with the given id.
func (m *MockStore) GetCustomer(ctx context.Context, id int64) (models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	customer, ok := m.customers[id]
	if !ok {
		return models.Customer{}, storage.ErrNotFound
	}
	return customer, nil
}

// GetCustomerByUsername returns the customer with the given username.
func (m *MockStore) GetCustomerByUsername(ctx context.Context, username string) (models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, customer := range m.customers {
		if customer.Username == username {
			return customer, nil
		}
	}
	return models.Customer{}, storage.ErrNotFound
}

// ListCustomers returns all customers ordered by id.
func (m *MockStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	customers := make([]models.Customer, 0, len(m.customers))
	for _, customer := range m.customers {
		customers = append(customers, customer)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })

	return customers, nil
}

// SearchCustomersByName returns customers whose display name contains
// the query, case-insensitively, ordered by id.
func (m *MockStore) SearchCustomersByName(ctx context.Context, name string) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := strings.ToLower(name)
	var customers []models.Customer
	for _, customer := range m.customers {
		if strings.Contains(strings.ToLower(customer.Name), query) {
			customers = append(customers, customer)
		}
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })

	return customers, nil
}

// DeleteCustomer removes the customer with the given id. Customers
// with loan history, or currently holding a book, cannot be deleted.
func (m *MockStore) DeleteCustomer(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[id]; !ok {
		return storage.ErrNotFound
	}
	for _, loan := range m.loans {
		if loan.CustomerID == id {
			return storage.ErrInUse
		}
	}
	for _, book := range m.books {
		if book.HolderID != nil && *book.HolderID == id {
			return storage.ErrInUse
		}
	}
	delete(m.customers, id)

	return nil
}

// ListLoans returns all loans ordered by id.
func (m *MockStore) ListLoans(ctx context.Context) ([]models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loans := make([]models.Loan, 0, len(m.loans))
	for _, loan := range m.loans {
		loans = append(loans, loan)
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })

	return loans, nil
}

// ListOpenLoansDueBefore returns open loans with a due date strictly
// before the cutoff, ordered by id.
func (m *MockStore) ListOpenLoansDueBefore(ctx context.Context, cutoff time.Time) ([]models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var loans []models.Loan
	for _, loan := range m.loans {
		if loan.Open() && loan.DueAt.Before(cutoff) {
			loans = append(loans, loan)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID < loans[j].ID })

	return loans, nil
}

// WithLoanTx runs fn while holding the store lock, so concurrent
// transactions are fully serialized. Mutations apply directly; the
// engine only mutates after its checks pass, so rollback is not
// simulated here.
func (m *MockStore) WithLoanTx(ctx context.Context, fn func(tx storage.LoanTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fn(&mockLoanTx{store: m})
}

// Close does nothing for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// mockLoanTx operates on the store maps directly; the store lock is
// held for the whole callback.
type mockLoanTx struct {
	store *MockStore
}

func (t *mockLoanTx) BookForUpdate(ctx context.Context, bookID int64) (models.Book, error) {
	book, ok := t.store.books[bookID]
	if !ok {
		return models.Book{}, storage.ErrNotFound
	}
	return book, nil
}

func (t *mockLoanTx) SetBookHolder(ctx context.Context, bookID int64, holderID *int64) error {
	book, ok := t.store.books[bookID]
	if !ok {
		return storage.ErrNotFound
	}
	book.HolderID = holderID
	t.store.books[bookID] = book

	return nil
}

func (t *mockLoanTx) InsertLoan(ctx context.Context, loan models.Loan) (int64, error) {
	loan.ID = t.store.nextLoanID
	t.store.nextLoanID++
	t.store.loans[loan.ID] = loan

	return loan.ID, nil
}

func (t *mockLoanTx) OpenLoanByBook(ctx context.Context, bookID int64) (models.Loan, error) {
	for _, loan := range t.store.loans {
		if loan.BookID == bookID && loan.Open() {
			return loan, nil
		}
	}
	return models.Loan{}, storage.ErrNotFound
}

func (t *mockLoanTx) CloseLoan(ctx context.Context, loanID int64, returnedAt time.Time) error {
	loan, ok := t.store.loans[loanID]
	if !ok {
		return storage.ErrNotFound
	}
	loan.ReturnedAt = &returnedAt
	t.store.loans[loanID] = loan

	return nil
}
