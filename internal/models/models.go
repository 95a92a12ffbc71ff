package models

import "time"

// Book represents a catalog record. HolderID points at the customer
// currently borrowing the book; nil means the book is available.
// HolderID is a projection of the loan ledger and is mutated only by
// the loan engine, in the same transaction as the ledger change.
type Book struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Year     int    `json:"year_published"`
	Category int    `json:"category"`
	Cover    string `json:"cover"`
	HolderID *int64 `json:"holder_id"`
}

// Customer represents a registered library user. Librarian grants
// catalog-mutation rights.
type Customer struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	City         string `json:"city"`
	Age          int    `json:"age"`
	Librarian    bool   `json:"librarian"`
}

// Loan is a ledger entry for one loan/return cycle. ReturnedAt is nil
// while the loan is open; it is set exactly once, at return time.
// Loans are never deleted or reopened.
type Loan struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	CustomerID int64      `json:"customer_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// Open reports whether the loan is still outstanding.
func (l Loan) Open() bool {
	return l.ReturnedAt == nil
}
