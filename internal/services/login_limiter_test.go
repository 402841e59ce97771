package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"maclink/internal/apperrors"
)

func TestLoginLimiter_BlocksAfterConsecutiveFailures(t *testing.T) {
	f := newFixture(t)
	lim := NewLoginLimiter(f.cache, testSecurityConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, lim.Check(ctx, "ada@example.com", "10.0.0.1"))
		lim.RegisterFailure(ctx, "ada@example.com", "10.0.0.1")
	}
	require.NoError(t, lim.Check(ctx, "ada@example.com", "10.0.0.1"))
	lim.RegisterFailure(ctx, "ada@example.com", "10.0.0.1")

	err := lim.Check(ctx, "ada@example.com", "10.0.0.1")
	var tooMany *apperrors.TooManyRequestsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, time.Hour, tooMany.RetryAfter)
	assert.True(t, f.mr.Exists("login-fail-consecutive-unique-id-and-ip:blocked:ada@example.com_10.0.0.1"))

	// another address of the same user is still allowed
	assert.NoError(t, lim.Check(ctx, "ada@example.com", "10.0.0.2"))
}

func TestLoginLimiter_BlockExpires(t *testing.T) {
	f := newFixture(t)
	lim := NewLoginLimiter(f.cache, testSecurityConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		lim.RegisterFailure(ctx, "ada@example.com", "10.0.0.1")
	}
	require.Error(t, lim.Check(ctx, "ada@example.com", "10.0.0.1"))

	f.mr.FastForward(time.Hour + time.Second)
	assert.NoError(t, lim.Check(ctx, "ada@example.com", "10.0.0.1"))
}

func TestLoginLimiter_SuccessResetsConsecutiveStreak(t *testing.T) {
	f := newFixture(t)
	lim := NewLoginLimiter(f.cache, testSecurityConfig(), zap.NewNop())
	ctx := context.Background()

	lim.RegisterFailure(ctx, "ada@example.com", "10.0.0.1")
	lim.RegisterFailure(ctx, "ada@example.com", "10.0.0.1")
	lim.RegisterSuccess(ctx, "ada@example.com", "10.0.0.1")
	lim.RegisterFailure(ctx, "ada@example.com", "10.0.0.1")

	assert.NoError(t, lim.Check(ctx, "ada@example.com", "10.0.0.1"))
	count, err := f.mr.Get("login-fail-consecutive-unique-id-and-ip:ada@example.com_10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestLoginLimiter_DailyLoginBudget(t *testing.T) {
	f := newFixture(t)
	lim := NewLoginLimiter(f.cache, testSecurityConfig(), zap.NewNop())
	ctx := context.Background()

	lim.RegisterSuccess(ctx, "ada@example.com", "10.0.0.1")
	require.NoError(t, lim.Check(ctx, "ada@example.com", "10.0.0.1"))
	lim.RegisterSuccess(ctx, "ada@example.com", "10.0.0.1")

	assert.Error(t, lim.Check(ctx, "ada@example.com", "10.0.0.9"))
}

func TestLoginLimiter_FailsOpenWithoutRedis(t *testing.T) {
	f := newFixture(t)
	lim := NewLoginLimiter(f.cache, testSecurityConfig(), zap.NewNop())
	f.mr.Close()

	ctx := context.Background()
	lim.RegisterFailure(ctx, "ada@example.com", "10.0.0.1")
	assert.NoError(t, lim.Check(ctx, "ada@example.com", "10.0.0.1"))
}
