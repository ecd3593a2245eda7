package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

func TestIssueAndValidate(t *testing.T) {
	tokens := NewTokenService("secret")
	token, err := tokens.Issue(domain.Identity{UID: "u1", Email: "u1@example.com", Admin: true}, time.Hour)
	require.NoError(t, err)

	id, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, &domain.Identity{UID: "u1", Email: "u1@example.com", Admin: true}, id)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret").Issue(domain.Identity{UID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = NewTokenService("other").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	tokens := NewTokenService("secret")
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := tokens.Issue(domain.Identity{UID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = NewTokenService("secret").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateFallsBackToSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "u9", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	id, err := NewTokenService("secret").Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u9", id.UID)
	assert.False(t, id.Admin)
}

func TestDisabledServiceRejectsEverything(t *testing.T) {
	tokens := NewTokenService("")
	assert.False(t, tokens.Enabled())
	_, err := tokens.Issue(domain.Identity{UID: "u1"}, time.Hour)
	assert.Error(t, err)
	_, err = tokens.Validate("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
