package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/automod/internal/models"
)

// UserIDHeader 网关认证后透传的用户 ID
const UserIDHeader = "X-User-ID"

const (
	ctxUserID = "user_id"
	ctxMember = "member"
)

// MemberLookup 按用户查询 Guild 成员身份
type MemberLookup interface {
	GetMemberByUser(ctx context.Context, guildID, userID int64) (*models.GuildMember, error)
}

// CapabilityChecker 判断成员是否具备某项能力
type CapabilityChecker interface {
	HasCapability(ctx context.Context, member *models.GuildMember, capability string) (bool, error)
}

// Identity 从请求头读取调用者的用户 ID
// 认证由上游网关完成，这里只负责解析并放入 Context
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未提供用户身份"})
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "用户身份无效"})
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// RequireCapability 要求调用者是 :guild_id 的成员并具备指定能力
// 实现逻辑：解析 guild_id，查询成员身份（非成员 403），再做能力检查（不具备 403）；
// 成员记录放入 Context 供后续 handler 使用
func RequireCapability(members MemberLookup, checker CapabilityChecker, capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		guildID, err := strconv.ParseInt(c.Param("guild_id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "无效的服务器ID"})
			return
		}
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
			return
		}

		member, err := members.GetMemberByUser(c.Request.Context(), guildID, userID)
		if err != nil || member == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "用户不是该服务器成员"})
			return
		}
		allowed, err := checker.HasCapability(c.Request.Context(), member, capability)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "权限不足"})
			return
		}
		c.Set(ctxMember, member)
		c.Next()
	}
}

// UserID 取出 Identity 写入的用户 ID
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// Member 取出 RequireCapability 写入的成员记录
func Member(c *gin.Context) (*models.GuildMember, error) {
	v, ok := c.Get(ctxMember)
	if !ok {
		return nil, errors.New("member not resolved")
	}
	member, ok := v.(*models.GuildMember)
	if !ok {
		return nil, errors.New("member not resolved")
	}
	return member, nil
}
