package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"boxoffice/internal/shared/utils/response"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware enforces the per-IP sliding window for the matched route.
// A limiter error lets the request through: a Redis blip must not stop
// ticket sales, and the ledger enforces inventory on its own.
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := getClientIP(c)
		route := c.FullPath()

		result, err := rateLimiter.IsAllowed(ctx, clientIP, getRateLimitType(route))
		if err != nil {
			logger.GetDefault().WarnContext(ctx, "Rate limit check failed, allowing request",
				slog.String("ip", clientIP),
				slog.String("route", route),
				slog.Any("error", err),
			)
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if result.Allowed {
			c.Next()
			return
		}

		logger.GetDefault().LogRateLimitExceeded(ctx, clientIP, route)
		h.Set("Retry-After", strconv.Itoa(retryAfter(result.ResetTime, time.Now())))
		response.RespondJSON(c, "error", http.StatusTooManyRequests,
			"Rate limit exceeded", nil, map[string]interface{}{
				"limit":      result.Limit,
				"reset_time": result.ResetTime,
			})
		c.Abort()
	}
}

// retryAfter is the whole seconds until reset, never less than one
func retryAfter(reset int64, now time.Time) int {
	if secs := reset - now.Unix(); secs > 0 {
		return int(secs)
	}
	return 1
}

// routeBuckets is checked in order; the first matching rule wins.
var routeBuckets = []struct {
	match func(path string) bool
	kind  RateLimitType
}{
	{func(p string) bool { return strings.HasPrefix(p, "/health") || strings.HasPrefix(p, "/ping") }, RateLimitTypeHealth},
	{func(p string) bool { return strings.Contains(p, "/admin/") }, RateLimitTypeAdmin},
	// State-changing ticket routes share the strict reservation bucket
	{isTicketMutation, RateLimitTypeReservation},
	{func(p string) bool { return strings.Contains(p, "/tickets") }, RateLimitTypePublic},
}

func isTicketMutation(path string) bool {
	return strings.HasSuffix(path, "/tickets/reserve") ||
		strings.HasSuffix(path, "/tickets/purchase") ||
		(strings.Contains(path, "/tickets/") && strings.HasSuffix(path, "/cancel"))
}

// getRateLimitType maps a gin route pattern onto a limit bucket
func getRateLimitType(path string) RateLimitType {
	for _, b := range routeBuckets {
		if b.match(path) {
			return b.kind
		}
	}
	return RateLimitTypeDefault
}

// getClientIP takes the first parseable address from X-Forwarded-For, then
// X-Real-IP, then the connection's remote address.
func getClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0]); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
