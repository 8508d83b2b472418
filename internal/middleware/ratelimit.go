package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tienda/core/internal/pkg/response"
)

// RateLimit returns a middleware that enforces a fixed-window per-IP rate
// limit backed by redis. With a nil client the limiter is a no-op, which
// keeps single-node deployments working without redis.
func RateLimit(rdb *goredis.Client, max int, window time.Duration) gin.HandlerFunc {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("tienda:rate_limit:%s:%d", ip, bucket)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis being down should not take the API down with it.
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, window+time.Second)
		}

		if count > int64(max) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			response.TooManyRequests(c, "too many requests, slow down")
			return
		}

		c.Next()
	}
}
