package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthedEvent(userID, userAgent string) *core.RequestEvent {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase", nil)
	req.Header.Set("User-Agent", userAgent)

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = httptest.NewRecorder()
	auth := core.NewRecord(core.NewAuthCollection("users"))
	auth.Id = userID
	e.Auth = auth
	return e
}

func TestRateLimiter_Allow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	limiter := NewRateLimiter(db, 2)
	ctx := context.Background()

	mock.ExpectIncr("ratelimit:user:u1").SetVal(1)
	mock.ExpectExpire("ratelimit:user:u1", rateLimitWindow).SetVal(true)
	mock.ExpectIncr("ratelimit:user:u1").SetVal(2)
	mock.ExpectIncr("ratelimit:user:u1").SetVal(3)

	allowed, err := limiter.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	limiter := NewRateLimiter(db, 2)

	mock.ExpectIncr("ratelimit:user:u1").SetErr(errors.New("connection refused"))

	allowed, err := limiter.Allow(context.Background(), "user:u1")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestRateLimiter_Middleware(t *testing.T) {
	t.Run("UnderLimit", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		handler := NewRateLimiter(db, 5).Middleware()

		mock.ExpectIncr("ratelimit:user:buyer-1").SetVal(1)
		mock.ExpectExpire("ratelimit:user:buyer-1", rateLimitWindow).SetVal(true)

		assert.NoError(t, handler.Func(newAuthedEvent("buyer-1", "Mozilla/5.0")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OverLimit", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		handler := NewRateLimiter(db, 5).Middleware()

		mock.ExpectIncr("ratelimit:user:buyer-1").SetVal(6)

		err := handler.Func(newAuthedEvent("buyer-1", "Mozilla/5.0"))
		var apiErr *router.ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	})

	t.Run("RedisDownFailsOpen", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		handler := NewRateLimiter(db, 5).Middleware()

		mock.ExpectIncr("ratelimit:user:buyer-1").SetErr(errors.New("connection refused"))

		assert.NoError(t, handler.Func(newAuthedEvent("buyer-1", "Mozilla/5.0")))
	})

	t.Run("Bot", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		handler := NewRateLimiter(db, 5).Middleware()

		err := handler.Func(newAuthedEvent("buyer-1", "Googlebot/2.1"))
		var apiErr *router.ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	assert.True(t, isSuspiciousUserAgent("Some-Crawler/1.0"))
	assert.True(t, isSuspiciousUserAgent("python scraper"))
	assert.False(t, isSuspiciousUserAgent("Mozilla/5.0 (Macintosh)"))
	assert.False(t, isSuspiciousUserAgent(""))
}
