package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestValidateToken(t *testing.T) {
	userID := uuid.New()
	valid, err := GenerateToken(userID, "habits", testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(userID, "habits", testSecret, -time.Minute)
	require.NoError(t, err)
	otherIssuer, err := GenerateToken(userID, "elsewhere", testSecret, time.Hour)
	require.NoError(t, err)
	noUser, err := GenerateToken(uuid.Nil, "habits", testSecret, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: userID}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		secret  string
		issuer  string
		wantErr bool
	}{
		{"Valid token", valid, testSecret, "habits", false},
		{"Any issuer accepted when unset", otherIssuer, testSecret, "", false},
		{"Wrong secret", valid, "other-secret", "habits", true},
		{"Expired", expired, testSecret, "habits", true},
		{"Wrong issuer", otherIssuer, testSecret, "habits", true},
		{"Missing user", noUser, testSecret, "habits", true},
		{"Unsigned token", none, testSecret, "", true},
		{"Garbage", "not-a-token", testSecret, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateToken(tt.token, tt.secret, tt.issuer)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidToken))
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.UserID)
		})
	}
}

func TestMemoryRateLimiter(t *testing.T) {
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	limiter := NewMemoryRateLimiter(time.Minute, 2)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	allowed, remaining, reset, err := limiter.Allow(ctx, "user-a")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, now.Add(time.Minute), reset)

	allowed, _, _, _ = limiter.Allow(ctx, "user-a")
	assert.True(t, allowed)
	allowed, remaining, _, _ = limiter.Allow(ctx, "user-a")
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)

	allowed, _, _, _ = limiter.Allow(ctx, "user-b")
	assert.True(t, allowed, "keys are counted separately")

	require.NoError(t, limiter.Reset(ctx, "user-a"))
	allowed, _, _, _ = limiter.Allow(ctx, "user-a")
	assert.True(t, allowed)

	now = now.Add(time.Minute)
	for i := 0; i < 2; i++ {
		allowed, _, _, _ = limiter.Allow(ctx, "user-a")
		assert.True(t, allowed, "a new window starts fresh")
	}
}

func TestMemoryRateLimiterWithLimit(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Minute, 100).WithLimit(1, time.Hour)
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, _, _, _ = limiter.Allow(ctx, "k")
	assert.False(t, allowed)
}
