package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
	PurposeReset   = "reset"

	resetTTL = time.Hour
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

type Claims struct {
	UserID  string `json:"userId"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) IssueAccess(u *models.User) (string, error) {
	return m.sign(u.ID, u.Email, u.Role, PurposeAccess, m.accessTTL)
}

func (m *TokenManager) IssueRefresh(u *models.User) (string, error) {
	return m.sign(u.ID, u.Email, u.Role, PurposeRefresh, m.refreshTTL)
}

func (m *TokenManager) IssueReset(u *models.User) (string, error) {
	return m.sign(u.ID, u.Email, "", PurposeReset, resetTTL)
}

func (m *TokenManager) sign(id primitive.ObjectID, email, role, purpose string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:  id.Hex(),
		Email:   email,
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry and checks the token was issued for purpose.
func (m *TokenManager) Parse(token, purpose string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Purpose != purpose {
		return nil, ErrTokenInvalid
	}
	if _, err := primitive.ObjectIDFromHex(claims.UserID); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ObjectID returns the user id carried by the claims.
func (c *Claims) ObjectID() primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(c.UserID)
	return id
}
