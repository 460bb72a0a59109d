package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/mfuentesc/siidte/internal/server/auth"
)

type ctxKey int

const accountIDKey ctxKey = iota

// requireAccount validates the bearer token and stores the account id in
// the request context. Requests without a valid token never reach a
// handler.
func (h *Handler) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		accountID, err := auth.GetAccountIDFromToken(token, h.secretKey)
		if err != nil || accountID == "" {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accountID extracts the authenticated account from the request context.
func accountID(r *http.Request) string {
	id, _ := r.Context().Value(accountIDKey).(string)
	return id
}
