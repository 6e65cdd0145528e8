package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"sceneit-backend/internal/apperror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit"

// RateLimit allows maxRequests per client IP in each fixed window of the
// given length, counted in Redis so every instance shares the budget.
// scope separates the counters of different route groups. If Redis is
// unreachable the request is let through.
func RateLimit(rdb *redis.Client, scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("%s:%s:%s", rateLimitKeyPrefix, scope, c.ClientIP())

		count, err := hit(ctx, rdb, key, window)
		if err != nil {
			// A counter left without a TTL would never reset.
			if delErr := rdb.Del(ctx, key).Err(); delErr != nil {
				slog.WarnContext(ctx, "cannot clear rate limit counter",
					slog.String("key", key),
					slog.Any("error", delErr),
				)
			}
			slog.WarnContext(ctx, "rate limiter unavailable, allowing request",
				slog.String("scope", scope),
				slog.Any("error", err),
			)
			c.Next()
			return
		}

		remaining := int64(maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(maxRequests) {
			retry, err := rdb.PTTL(ctx, key).Result()
			if err != nil || retry <= 0 {
				retry = window
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			slog.InfoContext(ctx, "rate limit exceeded",
				slog.String("scope", scope),
				slog.String("remote_ip", c.ClientIP()),
			)
			apperror.Abort(c, apperror.RateLimited())
			return
		}
		c.Next()
	}
}

// hit counts one request against key. INCR and EXPIRE NX run in a single
// MULTI/EXEC, so a counter always carries a TTL; a key that somehow lost
// its TTL gets one back on the next request.
func hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
