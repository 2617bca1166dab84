package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bazarcheh/auth-service/internal/model"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims carried by both token types. Role is only meaningful on access
// tokens; TokenType prevents a refresh token from passing as an access
// token even if the secrets were ever shared.
type Claims struct {
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role,omitempty"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse subject: %w", err)
	}
	return id, nil
}

// TokenManager signs and verifies access and refresh tokens with
// independent secrets.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenManager creates a token manager. Both secrets are required and
// must differ; TTL validation happens at config load.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// SignAccessToken mints a short-lived access token for the user.
func (m *TokenManager) SignAccessToken(user *model.User) (string, error) {
	return m.sign(user, tokenTypeAccess, string(user.Role), m.accessSecret, m.accessTTL)
}

// SignRefreshToken mints a long-lived refresh token and returns its
// absolute expiry for persistence alongside the stored hash.
func (m *TokenManager) SignRefreshToken(user *model.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.refreshTTL)
	token, err := m.sign(user, tokenTypeRefresh, "", m.refreshSecret, m.refreshTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (m *TokenManager) sign(user *model.User, tokenType, role string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		PhoneNumber: user.PhoneNumber,
		Role:        role,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, expiry and token type. All failure
// modes collapse into ErrInvalidToken.
func (m *TokenManager) VerifyAccessToken(raw string) (*Claims, error) {
	claims, err := m.verify(raw, tokenTypeAccess, m.accessSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken checks signature, expiry and token type. All failure
// modes collapse into ErrInvalidRefreshToken.
func (m *TokenManager) VerifyRefreshToken(raw string) (*Claims, error) {
	claims, err := m.verify(raw, tokenTypeRefresh, m.refreshSecret)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	return claims, nil
}

func (m *TokenManager) verify(raw, wantType string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("unexpected token type %q", claims.TokenType)
	}
	return claims, nil
}
