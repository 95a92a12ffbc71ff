package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"booklib/internal/auth"
	"booklib/internal/loan"
	"booklib/internal/storage"
)

// Server holds the HTTP surface of the service. All state is injected;
// nothing here owns the store lifecycle.
type Server struct {
	store    storage.Store
	engine   *loan.Engine
	reporter *loan.Reporter
	tokens   *auth.TokenManager
	logger   *zap.Logger
}

// New creates a server around the given collaborators.
func New(store storage.Store, engine *loan.Engine, reporter *loan.Reporter, tokens *auth.TokenManager, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		engine:   engine,
		reporter: reporter,
		tokens:   tokens,
		logger:   logger,
	}
}

// Router builds the route table. Reads are open; mutations require a
// bearer token, catalog mutations additionally require the librarian
// flag.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	api.HandleFunc("/books", s.handleListBooks).Methods(http.MethodGet)
	api.HandleFunc("/books/search", s.handleSearchBooks).Methods(http.MethodGet)
	api.HandleFunc("/customers", s.handleListCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers/search", s.handleSearchCustomers).Methods(http.MethodGet)
	api.HandleFunc("/loans", s.handleListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/late", s.handleLateLoans).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/books", s.handleCreateBook).Methods(http.MethodPost)
	authed.HandleFunc("/books/{id:[0-9]+}", s.handleUpdateBook).Methods(http.MethodPut)
	authed.HandleFunc("/books/{id:[0-9]+}", s.handleDeleteBook).Methods(http.MethodDelete)
	authed.HandleFunc("/books/{id:[0-9]+}/loan", s.handleLoanBook).Methods(http.MethodPost)
	authed.HandleFunc("/books/{id:[0-9]+}/return", s.handleReturnBook).Methods(http.MethodPost)
	authed.HandleFunc("/customers/{id:[0-9]+}", s.handleDeleteCustomer).Methods(http.MethodDelete)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
