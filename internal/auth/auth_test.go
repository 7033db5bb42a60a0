package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/services"
)

type mapUsers map[primitive.ObjectID]*models.User

func (m mapUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return u, nil
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour, 2*time.Hour)
	u := &models.User{ID: primitive.NewObjectID(), Email: "a@x.io", Role: models.RoleAgent}

	tok, err := tm.IssueAccess(u)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := tm.Parse(tok, PurposeAccess)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.ObjectID() != u.ID || claims.Role != models.RoleAgent {
		t.Errorf("claims = %+v", claims)
	}
	if _, err := tm.Parse(tok, PurposeReset); err != ErrTokenInvalid {
		t.Errorf("access token accepted as reset token: %v", err)
	}
	if _, err := NewTokenManager("other", time.Hour, time.Hour).Parse(tok, PurposeAccess); err != ErrTokenInvalid {
		t.Errorf("wrong secret: %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute, time.Hour)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := tm.IssueAccess(&models.User{ID: primitive.NewObjectID()})
	if err != nil {
		t.Fatal(err)
	}
	tm.now = time.Now
	if _, err := tm.Parse(tok, PurposeAccess); err != ErrTokenExpired {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "correct horse") || CheckPassword(hash, "wrong") {
		t.Error("bcrypt check mismatch")
	}
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour, time.Hour)
	admin := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin, IsApproved: true}
	pending := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAgent}
	agent := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAgent, IsApproved: true}
	ghost := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	users := mapUsers{admin.ID: admin, pending.ID: pending, agent.ID: agent}

	mw := NewMiddleware(tm, users, zap.NewNop().Sugar())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	adminOnly := mw.Authenticate(RequireAdmin(ok))
	agentOnly := mw.Authenticate(RequireApprovedAgent(ok))

	bearer := func(u *models.User) string {
		tok, err := tm.IssueAccess(u)
		if err != nil {
			t.Fatal(err)
		}
		return "Bearer " + tok
	}

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		want    int
	}{
		{"no token", adminOnly, "", http.StatusUnauthorized},
		{"garbage token", adminOnly, "Bearer nope", http.StatusUnauthorized},
		{"deleted user", adminOnly, bearer(ghost), http.StatusUnauthorized},
		{"admin on admin route", adminOnly, bearer(admin), http.StatusNoContent},
		{"agent on admin route", adminOnly, bearer(agent), http.StatusForbidden},
		{"approved agent", agentOnly, bearer(agent), http.StatusNoContent},
		{"unapproved agent", agentOnly, bearer(pending), http.StatusForbidden},
		{"admin on agent route", agentOnly, bearer(admin), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRoleComesFromStore(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour, time.Hour)
	u := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	tok, _ := tm.IssueAccess(u)

	// Demoted after the token was issued.
	stored := *u
	stored.Role = models.RoleUser
	mw := NewMiddleware(tm, mapUsers{u.ID: &stored}, zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	mw.Authenticate(RequireAdmin(http.NotFoundHandler())).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
