// Package auth issues and validates the bearer tokens that carry a caller's identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

const issuer = "simple-chatbot-platform"

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity carried by an access token.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 tokens with a shared secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a secret is configured. Without one every token is rejected.
func (s *TokenService) Enabled() bool {
	return len(s.secret) > 0
}

// Issue signs a token for id that expires after ttl.
func (s *TokenService) Issue(id domain.Identity, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", errors.New("jwt secret is not configured")
	}
	if id.UID == "" {
		return "", domain.Required("uid")
	}
	now := s.now()
	claims := Claims{
		UID:   id.UID,
		Email: id.Email,
		Admin: id.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   id.UID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses a token and returns the identity it carries.
func (s *TokenService) Validate(tokenString string) (*domain.Identity, error) {
	if !s.Enabled() {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: missing uid", ErrInvalidToken)
	}
	return &domain.Identity{UID: uid, Email: claims.Email, Admin: claims.Admin}, nil
}
