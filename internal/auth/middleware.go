package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/services"
)

type UserLookup interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type ctxKey struct{}

// WithUser attaches the acting user to ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the user attached by Authenticate.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.User)
	return u, ok && u != nil
}

type Middleware struct {
	tokens *TokenManager
	users  UserLookup
	log    *zap.SugaredLogger
}

func NewMiddleware(tokens *TokenManager, users UserLookup, log *zap.SugaredLogger) *Middleware {
	return &Middleware{tokens: tokens, users: users, log: log}
}

// Authenticate verifies the bearer token and loads the user it names. Role
// and approval always come from the store, never from the token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			deny(w, http.StatusUnauthorized, "No token provided")
			return
		}
		claims, err := m.tokens.Parse(strings.TrimPrefix(header, "Bearer "), PurposeAccess)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				deny(w, http.StatusUnauthorized, "Token has expired")
				return
			}
			deny(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := m.users.GetByID(r.Context(), claims.ObjectID())
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				deny(w, http.StatusUnauthorized, "Invalid user")
				return
			}
			m.log.Errorf("Failed to load user %s for request: %v", claims.UserID, err)
			deny(w, http.StatusInternalServerError, "Failed to authenticate")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			deny(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if u.Role != models.RoleAdmin {
			deny(w, http.StatusForbidden, "Access denied. Admin only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireApprovedAgent must run after Authenticate.
func RequireApprovedAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			deny(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if u.Role != models.RoleAgent {
			deny(w, http.StatusForbidden, "Access denied. Agents only.")
			return
		}
		if !u.IsApproved {
			deny(w, http.StatusForbidden, "Agent account not yet approved")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
