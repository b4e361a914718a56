// Package auth issues the session credential handed to clients and checks
// the operator key.
package auth

import (
	"errors"
	"strings"
	"time"

	"livechat/backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "livechat"

var (
	ErrTokenInvalid = errors.New("session token invalid")
	ErrTokenExpired = errors.New("session token expired")
)

// Claims identify the session a client is bound to.
type Claims struct {
	SessionID  string `json:"sid"`
	ClientName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session credentials (HS256).
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a credential for s.
func (t *TokenService) Issue(s models.Session) (string, error) {
	if len(t.secret) == 0 || s.ID == "" {
		return "", ErrTokenInvalid
	}
	now := t.now().UTC()
	claims := Claims{
		SessionID:  s.ID,
		ClientName: s.ClientName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies a credential and returns its claims.
func (t *TokenService) Parse(token string) (Claims, error) {
	if len(t.secret) == 0 || strings.TrimSpace(token) == "" {
		return Claims{}, ErrTokenInvalid
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if claims.SessionID == "" || claims.Subject != claims.SessionID {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
