package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrTokenExpiredTooLong = errors.New("token is too old to refresh")

// TokenIssuer mints HS256 session tokens in standalone mode.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	// RefreshWindow is how long after expiry a token may still be
	// exchanged for a fresh one.
	RefreshWindow time.Duration
	now           func() time.Time
}

func NewTokenIssuer(key []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: key, issuer: issuer, ttl: ttl, RefreshWindow: 7 * 24 * time.Hour, now: time.Now}
}

// Session is what login and refresh return to the client.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Roles       []string  `json:"roles"`
}

func (i *TokenIssuer) Issue(userID, email string, roles []string, branchID string) (*Session, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:    email,
		Roles:    roles,
		BranchID: branchID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{AccessToken: signed, TokenType: "Bearer", ExpiresAt: exp, UserID: userID, Roles: roles}, nil
}

// Parse verifies signature and issuer but tolerates expiry within the
// refresh window, returning the claims so a new session can be issued.
func (i *TokenIssuer) ParseForRefresh(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return i.key, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(i.issuer),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil || i.now().After(claims.ExpiresAt.Add(i.RefreshWindow)) {
		return nil, ErrTokenExpiredTooLong
	}
	return claims, nil
}
