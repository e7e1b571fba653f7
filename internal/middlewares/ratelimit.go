package middlewares

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/automod/utils/ratelimit"
)

// RateLimit 按用户限流，没有用户身份时按客户端 IP
// scope 区分不同接口组的计数
func RateLimit(limiter *ratelimit.Limiter, scope string, rule ratelimit.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !rule.Enabled() {
			c.Next()
			return
		}

		key := scope + ":ip:" + c.ClientIP()
		if userID, ok := UserID(c); ok {
			key = scope + ":user:" + strconv.FormatInt(userID, 10)
		}

		allowed, err := limiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "限流服务不可用"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁"})
			return
		}
		c.Next()
	}
}
