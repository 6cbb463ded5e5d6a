package httpmiddleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSimpleTokenBucket(t *testing.T) {
	l := NewSimpleTokenBucket(2, 60)
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

	assert.True(t, l.allow("a", now))
	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now), "bucket is empty")
	assert.True(t, l.allow("b", now), "keys have separate buckets")

	assert.False(t, l.allow("a", now.Add(500*time.Millisecond)), "less than one token refilled")
	assert.True(t, l.allow("a", now.Add(2*time.Second)))

	later := now.Add(time.Hour)
	assert.True(t, l.allow("a", later))
	assert.True(t, l.allow("a", later))
	assert.False(t, l.allow("a", later), "refill is capped at capacity")
}

type stubLimiter struct {
	ok  bool
	err error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.ok, s.err }

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name     string
		limiter  Limiter
		wantCode int
	}{
		{name: "allowed", limiter: stubLimiter{ok: true}, wantCode: http.StatusOK},
		{name: "limited", limiter: stubLimiter{}, wantCode: http.StatusTooManyRequests},
		{name: "limiter down lets requests through", limiter: stubLimiter{err: errors.New("redis down")}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RateLimit(tt.limiter, ClientIP, zap.NewNop()))
			r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
