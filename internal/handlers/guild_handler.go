package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/automod/internal/middlewares"
	"github.com/Gopher0727/automod/internal/services"
)

type GuildHandler struct {
	GuildService  *services.GuildService
	MemberService *services.MemberService
}

func NewGuildHandler(guildService *services.GuildService, memberService *services.MemberService) *GuildHandler {
	return &GuildHandler{
		GuildService:  guildService,
		MemberService: memberService,
	}
}

// CreateGuild 当前用户创建 Guild 并成为所有者
func (h *GuildHandler) CreateGuild(c *gin.Context) {
	userID, ok := middlewares.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return
	}

	var req services.CreateGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	guild, err := h.GuildService.CreateGuild(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, guild)
}

// JoinGuild 当前用户加入 :guild_id，加入事件会经过自动审核的 Join 触发器
func (h *GuildHandler) JoinGuild(c *gin.Context) {
	userID, ok := middlewares.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return
	}
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}

	member, err := h.GuildService.JoinGuild(c.Request.Context(), guildID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// LeaveGuild 当前用户退出 :guild_id
func (h *GuildHandler) LeaveGuild(c *gin.Context) {
	userID, ok := middlewares.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return
	}
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}

	member, err := h.GuildService.GetMemberByUser(c.Request.Context(), guildID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.MemberService.RemoveMember(c.Request.Context(), member.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateChannel 需要 manage_guild 能力
func (h *GuildHandler) CreateChannel(c *gin.Context) {
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}
	var req services.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	channel, err := h.GuildService.CreateChannel(c.Request.Context(), guildID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, channel)
}

// CreateRole 需要 manage_guild 能力
func (h *GuildHandler) CreateRole(c *gin.Context) {
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}
	var req services.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	role, err := h.GuildService.CreateRole(c.Request.Context(), guildID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// GrantRole 给成员授予角色
func (h *GuildHandler) GrantRole(c *gin.Context) {
	h.changeRole(c, h.MemberService.AddRole)
}

// RevokeRole 撤销成员的角色
func (h *GuildHandler) RevokeRole(c *gin.Context) {
	h.changeRole(c, h.MemberService.RemoveRole)
}

func (h *GuildHandler) changeRole(c *gin.Context, apply func(ctx context.Context, guildID, memberID, roleID int64) error) {
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}
	memberID, ok := paramInt64(c, "member_id")
	if !ok {
		return
	}
	roleID, ok := paramInt64(c, "role_id")
	if !ok {
		return
	}

	if err := apply(c.Request.Context(), guildID, memberID, roleID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
