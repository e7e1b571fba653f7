package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/automod/internal/middlewares"
	"github.com/Gopher0727/automod/internal/services"
)

// MessageHandler 消息处理器
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// SendMessage 发送消息，被自动审核拦截时返回 422
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := middlewares.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return
	}
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	msg, err := h.messageService.SendMessage(c.Request.Context(), guildID, userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetChannelMessages 获取频道最近的消息，limit 默认 50
func (h *MessageHandler) GetChannelMessages(c *gin.Context) {
	userID, ok := middlewares.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return
	}
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}
	channelID, ok := paramInt64(c, "channel_id")
	if !ok {
		return
	}

	messages, err := h.messageService.ListChannelMessages(c.Request.Context(), guildID, userID, channelID, queryInt(c, "limit", 50))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
