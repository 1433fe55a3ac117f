package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Enabled:             true,
		WindowDuration:      time.Minute,
		DefaultRequests:     100,
		PublicRequests:      200,
		ReservationRequests: 10,
		AdminRequests:       20,
		HealthRequests:      1000,
		WhitelistedIPs:      []string{"10.0.0.1"},
	}
}

func TestGetRateLimitType(t *testing.T) {
	tests := []struct {
		path string
		want RateLimitType
	}{
		{"/health", RateLimitTypeHealth},
		{"/api/v1/tickets/reserve", RateLimitTypeReservation},
		{"/api/v1/tickets/purchase", RateLimitTypeReservation},
		{"/api/v1/tickets/:id/cancel", RateLimitTypeReservation},
		{"/api/v1/tickets/:id", RateLimitTypePublic},
		{"/api/v1/tickets/availability/:ticketTypeId", RateLimitTypePublic},
		{"/api/v1/admin/tickets/sweep", RateLimitTypeAdmin},
		{"/swagger/*any", RateLimitTypeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, getRateLimitType(tt.path))
		})
	}
}

func TestIsAllowedSkipsRedisWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	limiter := NewRateLimiter(nil, cfg)

	result, err := limiter.IsAllowed(context.Background(), "192.168.1.5", RateLimitTypeReservation)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 10, result.Limit)
	assert.Equal(t, 10, result.Remaining)
}

func TestIsAllowedSkipsRedisForWhitelistedIP(t *testing.T) {
	limiter := NewRateLimiter(nil, testConfig())

	result, err := limiter.IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeAdmin)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 20, result.Limit)
}

func TestMiddlewareSetsHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Enabled = false

	r := gin.New()
	r.Use(Middleware(NewRateLimiter(nil, cfg)))
	r.GET("/api/v1/tickets/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets/abc", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "200", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "200", w.Header().Get("X-RateLimit-Remaining"))
}

func TestGetClientIPPrefersForwardedFor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")

	assert.Equal(t, "203.0.113.7", getClientIP(c))
}

func TestGetClientIPFallsBackToRealIPAndRemoteAddr(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "198.51.100.4:52311"

	c.Request.Header.Set("X-Forwarded-For", "not-an-ip")
	c.Request.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", getClientIP(c))

	c.Request.Header.Del("X-Real-IP")
	assert.Equal(t, "198.51.100.4", getClientIP(c))
}

func TestRetryAfterIsAtLeastOneSecond(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, 42, retryAfter(now.Unix()+42, now))
	assert.Equal(t, 1, retryAfter(now.Unix(), now))
	assert.Equal(t, 1, retryAfter(now.Unix()-5, now))
}

func TestMiddlewareAllowsRequestWhenRedisIsDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(Middleware(NewRateLimiter(client, testConfig())))
	r.POST("/api/v1/tickets/reserve", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/tickets/reserve", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}
