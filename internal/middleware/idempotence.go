package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotenceHeader = "Idempotency-Key"
	idempotenceTTL    = 60 * time.Second
	idempotencePrefix = "medvault:idempotence:"

	idempotencePending = "0"
	idempotenceDone    = "1"
)

// Idempotence rejects a repeated mutating request carrying the same
// Idempotency-Key while the first is in flight or within a minute of its
// success. Requests without the header, and all requests when rc is nil,
// pass through.
func Idempotence(rc *redis.Client, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if rc == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		key := idempotenceKey(c)
		if key == "" {
			c.Next()
			return
		}

		rdb := rc.Raw()
		ctx := c.Request.Context()
		ok, err := rdb.SetNX(ctx, key, idempotencePending, idempotenceTTL).Result()
		if err != nil {
			log.Warn("idempotence check skipped", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			msg := "an identical request succeeded less than a minute ago"
			val, err := rc.Get(ctx, key)
			if err != nil {
				log.Warn("idempotence lookup failed", zap.Error(err))
			}
			if val == idempotencePending {
				msg = "an identical request is still being processed"
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"ok": 0, "code": http.StatusConflict, "message": msg})
			return
		}

		c.Next()

		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rdb.Set(ctx, key, idempotenceDone, goredis.KeepTTL)
		} else {
			rdb.Del(ctx, key)
		}
	}
}

// idempotenceKey scopes the client key to the caller and route.
func idempotenceKey(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(IdempotenceHeader))
	if raw == "" {
		return ""
	}
	caller := CurrentUserID(c)
	if caller == "" {
		caller = extractToken(c)
	}
	if caller == "" {
		caller = c.ClientIP()
	}
	h := sha256.Sum256([]byte(c.Request.Method + "|" + c.Request.URL.Path + "|" + caller + "|" + raw))
	return idempotencePrefix + hex.EncodeToString(h[:])
}
