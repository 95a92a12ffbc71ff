package server

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"booklib/internal/loan"
)

type contextKey string

const actorKey contextKey = "actor"

// authMiddleware validates the bearer token and stores the
// authenticated actor in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		id, librarian, err := s.tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			s.logger.Warn("rejected token",
				zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, loan.Actor{ID: id, Librarian: librarian})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom extracts the authenticated actor placed by authMiddleware.
func actorFrom(ctx context.Context) (loan.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(loan.Actor)
	return actor, ok
}
