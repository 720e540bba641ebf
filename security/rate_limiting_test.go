package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowWithinBudget(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)
	ctx := context.Background()

	mock.ExpectIncr("ratelimit:scan:op1").SetVal(1)
	mock.ExpectExpire("ratelimit:scan:op1", time.Minute).SetVal(true)

	err := limiter.Allow(ctx, "scan:op1", 30, time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RefusesOverBudget(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)

	mock.ExpectIncr("ratelimit:scan:op1").SetVal(31)

	err := limiter.Allow(context.Background(), "scan:op1", 30, time.Minute)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestRateLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)

	mock.ExpectIncr("ratelimit:scan:op1").SetErr(errors.New("connection refused"))

	assert.NoError(t, limiter.Allow(context.Background(), "scan:op1", 30, time.Minute))
}

func TestRateLimiter_NilClientAndZeroLimitPass(t *testing.T) {
	assert.NoError(t, NewRateLimiter(nil).Allow(context.Background(), "x", 30, time.Minute))

	db, _ := redismock.NewClientMock()
	assert.NoError(t, NewRateLimiter(db).Allow(context.Background(), "x", 0, time.Minute))
}
