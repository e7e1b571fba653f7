package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Gopher0727/automod/config"
	"github.com/Gopher0727/automod/internal/handlers"
	"github.com/Gopher0727/automod/internal/middlewares"
	"github.com/Gopher0727/automod/internal/services"
	logger "github.com/Gopher0727/automod/middleware/log"
	"github.com/Gopher0727/automod/utils/ratelimit"
)

// Deps 路由依赖
type Deps struct {
	Guilds      *handlers.GuildHandler
	Messages    *handlers.MessageHandler
	Automod     *handlers.AutomodHandler
	Members     middlewares.MemberLookup
	Permissions middlewares.CapabilityChecker
	Limiter     *ratelimit.Limiter // 为 nil 时不限流
	RateLimit   config.RateLimitConfig
	Logger      *zap.Logger
	// Health 健康检查时调用，返回错误表示依赖不可用
	Health func(*gin.Context) error
}

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r.Use(logger.GinMiddleware(deps.Logger))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"Status": "DOWN", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"Status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(middlewares.Identity())

	RegisterGuildRoutes(api, deps)
	RegisterAutomodRoutes(api, deps)
}

// RegisterGuildRoutes Guild、成员与消息接口
func RegisterGuildRoutes(api *gin.RouterGroup, deps Deps) {
	manageGuild := middlewares.RequireCapability(deps.Members, deps.Permissions, services.CapabilityManageGuild)
	messageLimit := middlewares.RateLimit(deps.Limiter, "message", ratelimit.PerMinute(deps.RateLimit.MessagesPerMinute))

	guildGroup := api.Group("/guilds")
	{
		guildGroup.POST("", deps.Guilds.CreateGuild) // 创建服务器

		// 成员管理
		guildGroup.POST("/:guild_id/join", deps.Guilds.JoinGuild)   // 加入服务器
		guildGroup.POST("/:guild_id/leave", deps.Guilds.LeaveGuild) // 退出服务器

		// 需要 manage_guild
		guildGroup.POST("/:guild_id/channels", manageGuild, deps.Guilds.CreateChannel)
		guildGroup.POST("/:guild_id/roles", manageGuild, deps.Guilds.CreateRole)
		guildGroup.PUT("/:guild_id/members/:member_id/roles/:role_id", manageGuild, deps.Guilds.GrantRole)
		guildGroup.DELETE("/:guild_id/members/:member_id/roles/:role_id", manageGuild, deps.Guilds.RevokeRole)

		// 消息相关
		guildGroup.POST("/:guild_id/messages", messageLimit, deps.Messages.SendMessage)
		guildGroup.GET("/:guild_id/channels/:channel_id/messages", deps.Messages.GetChannelMessages)
	}
}

// RegisterAutomodRoutes 自动审核规则管理，整组要求 manage_automod
func RegisterAutomodRoutes(api *gin.RouterGroup, deps Deps) {
	automodGroup := api.Group("/guilds/:guild_id/automod")
	automodGroup.Use(
		middlewares.RateLimit(deps.Limiter, "admin", ratelimit.PerMinute(deps.RateLimit.AdminPerMinute)),
		middlewares.RequireCapability(deps.Members, deps.Permissions, services.CapabilityManageAutomod),
	)
	{
		automodGroup.GET("/triggers", deps.Automod.ListTriggers)
		automodGroup.POST("/triggers", deps.Automod.CreateTrigger)
		automodGroup.GET("/triggers/:trigger_id", deps.Automod.GetTrigger)
		automodGroup.PUT("/triggers/:trigger_id", deps.Automod.UpdateTrigger)
		automodGroup.DELETE("/triggers/:trigger_id", deps.Automod.DeleteTrigger)

		automodGroup.GET("/triggers/:trigger_id/actions", deps.Automod.ListActions)
		automodGroup.POST("/triggers/:trigger_id/actions", deps.Automod.CreateAction)
		automodGroup.GET("/actions/:action_id", deps.Automod.GetAction)
		automodGroup.PUT("/actions/:action_id", deps.Automod.UpdateAction)
		automodGroup.DELETE("/actions/:action_id", deps.Automod.DeleteAction)

		automodGroup.GET("/members/:member_id/strikes", deps.Automod.MemberStrikes)
	}
}
