package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/pkg/redis"
	"github.com/medvault/portal/internal/pkg/response"
	"go.uber.org/zap"
)

// RateLimit caps requests per user (or client IP when anonymous) in fixed
// windows. A nil client or a redis error lets the request through.
func RateLimit(rc *redis.Client, scope string, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rc == nil || limit <= 0 || window <= 0 {
			c.Next()
			return
		}

		subject := CurrentUserID(c)
		if subject == "" {
			subject = c.ClientIP()
		}
		if subject == "" {
			c.Next()
			return
		}

		bucket := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("medvault:rate_limit:%s:%s:%d", scope, subject, bucket)

		count, err := rc.Incr(c.Request.Context(), key, window+time.Second)
		if err != nil {
			if log != nil {
				log.Warn("rate limit check failed", zap.String("scope", scope), zap.Error(err))
			}
			c.Next()
			return
		}

		if count > int64(limit) {
			retry := int(window.Seconds())
			if retry < 1 {
				retry = 1
			}
			response.TooManyRequests(c, strconv.Itoa(retry))
			return
		}

		c.Next()
	}
}
