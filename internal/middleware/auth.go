package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"tubetrack-backend/internal/models"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Identity verifies tokens and reports the shell's signed-in user.
type Identity interface {
	Verify(token string) (models.User, error)
	Current() (models.User, bool)
}

// Authenticate attaches the caller's user id to the context. A bearer token
// (or a "token" query parameter, for WebSocket upgrades) wins; otherwise the
// shell's current session is used, but only for loopback callers. Everything
// else stays anonymous.
func Authenticate(identity Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
				return
			}

			var userID string
			if tokenStr != "" {
				user, err := identity.Verify(tokenStr)
				if err != nil {
					code := "UNAUTHORIZED"
					if err.Error() == "Token has expired" {
						code = "TOKEN_EXPIRED"
					}
					writeError(w, http.StatusUnauthorized, code, err.Error(), r)
					return
				}
				userID = user.ID
			} else if isLoopback(r) {
				if user, ok := identity.Current(); ok {
					userID = user.ID
				}
			}

			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// bearerToken returns "" with ok=true when no token was sent.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return strings.TrimSpace(r.URL.Query().Get("token")), true
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts user_id from request context. Empty means anonymous.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(r.Context()),
		},
	})
}
