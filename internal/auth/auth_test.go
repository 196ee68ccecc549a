package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTriggerSecret(t *testing.T) {
	tests := []struct {
		name   string
		header string
		secret string
		ok     bool
	}{
		{"valid", "Bearer s3cret", "s3cret", true},
		{"lowercase scheme", "bearer s3cret", "s3cret", true},
		{"wrong secret", "Bearer nope", "s3cret", false},
		{"missing header", "", "s3cret", false},
		{"basic scheme", "Basic s3cret", "s3cret", false},
		{"unset secret", "Bearer ", "", false},
		{"prefix of secret", "Bearer s3c", "s3cret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/reporting/runner", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			err := CheckTriggerSecret(r, tt.secret)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnauthorized)
			}
		})
	}
}

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("staff-secret")

	token, err := v.Issue("user-1", RoleAgent, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, RoleAgent, claims.Role)
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("staff-secret")
	other := NewVerifier("another-secret")

	foreign, err := other.Issue("user-1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	expired, err := v.Issue("user-1", RoleAdmin, -time.Minute)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "user-1",
		Role:             "client",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("staff-secret"))
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             RoleAgent,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("staff-secret"))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID: "user-1",
		Role:   RoleAgent,
	}).SignedString([]byte("staff-secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"foreign key":  foreign,
		"expired":      expired,
		"unknown role": badRole,
		"no user":      noUser,
		"hs512":        hs512,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestVerifierWithoutSecret(t *testing.T) {
	v := NewVerifier("")
	_, err := v.Verify("anything")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFrom(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{UserID: "u", Role: RoleAdmin})
	c, ok := ClaimsFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", c.UserID)
}
