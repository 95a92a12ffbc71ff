package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"booklib/internal/auth"
	"booklib/internal/models"
	"booklib/internal/storage"
)

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// RegisterRequest is the payload for creating a customer account.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	City      string `json:"city"`
	Age       int    `json:"age"`
	Librarian bool   `json:"librarian"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	id, err := s.store.CreateCustomer(r.Context(), models.Customer{
		Username:     req.Username,
		PasswordHash: hash,
		Name:         req.Name,
		City:         req.City,
		Age:          req.Age,
		Librarian:    req.Librarian,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		writeError(w, http.StatusConflict, "username is already taken")
		return
	}
	if err != nil {
		s.logger.Error("failed to create customer", zap.Error(err), zap.String("username", req.Username))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("customer registered", zap.Int64("customer_id", id), zap.String("username", req.Username))
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// LoginRequest is the payload for obtaining a session token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	customer, err := s.store.GetCustomerByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(customer.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.Issue(customer, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to issue token", zap.Error(err), zap.Int64("customer_id", customer.ID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"librarian":    customer.Librarian,
	})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(r.Context())
	if err != nil {
		s.logger.Error("failed to list books", zap.Error(err))
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "title query parameter is required")
		return
	}

	books, err := s.store.SearchBooksByTitle(r.Context(), title)
	if err != nil {
		s.logger.Error("failed to search books", zap.Error(err))
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

// BookRequest is the payload for creating or updating a book.
type BookRequest struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Year     int    `json:"year_published"`
	Category int    `json:"category"`
	Cover    string `json:"cover"`
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok || !actor.Librarian {
		writeError(w, http.StatusForbidden, "librarian role required")
		return
	}

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Author == "" {
		writeError(w, http.StatusBadRequest, "title and author are required")
		return
	}

	id, err := s.store.CreateBook(r.Context(), models.Book{
		Title:    req.Title,
		Author:   req.Author,
		Year:     req.Year,
		Category: req.Category,
		Cover:    req.Cover,
	})
	if err != nil {
		s.logger.Error("failed to create book", zap.Error(err), zap.String("title", req.Title))
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("book created", zap.Int64("book_id", id), zap.String("title", req.Title))
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok || !actor.Librarian {
		writeError(w, http.StatusForbidden, "librarian role required")
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = s.store.UpdateBook(r.Context(), models.Book{
		ID:       id,
		Title:    req.Title,
		Author:   req.Author,
		Year:     req.Year,
		Category: req.Category,
		Cover:    req.Cover,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok || !actor.Librarian {
		writeError(w, http.StatusForbidden, "librarian role required")
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	if err := s.store.DeleteBook(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("book deleted", zap.Int64("book_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleLoanBook(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bookID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	created, err := s.engine.IssueLoan(r.Context(), bookID, actor.ID, time.Now().UTC())
	if err != nil {
		s.writeLoanError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ReturnRequest is the optional payload for returning a book. Override
// lets a librarian return a book held by someone else.
type ReturnRequest struct {
	Override bool `json:"override"`
}

func (s *Server) handleReturnBook(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bookID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	closed, err := s.engine.ReturnLoan(r.Context(), bookID, actor, time.Now().UTC(), req.Override)
	if err != nil {
		s.writeLoanError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, closed)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.store.ListCustomers(r.Context())
	if err != nil {
		s.logger.Error("failed to list customers", zap.Error(err))
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (s *Server) handleSearchCustomers(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	customers, err := s.store.SearchCustomersByName(r.Context(), name)
	if err != nil {
		s.logger.Error("failed to search customers", zap.Error(err))
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer id")
		return
	}
	if id != actor.ID && !actor.Librarian {
		writeError(w, http.StatusForbidden, "cannot remove another customer")
		return
	}

	if err := s.store.DeleteCustomer(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("customer removed", zap.Int64("customer_id", id), zap.Int64("requested_by", actor.ID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.reporter.AllLoans(r.Context())
	if err != nil {
		s.writeLoanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": loans})
}

func (s *Server) handleLateLoans(w http.ResponseWriter, r *http.Request) {
	late, err := s.reporter.LateLoans(r.Context(), time.Now().UTC())
	if err != nil {
		s.writeLoanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"late_loans": late})
}
