package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/automod/internal/automod"
	"github.com/Gopher0727/automod/internal/middlewares"
	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
)

const maxStrikeHistory = 100

// AutomodHandler 自动审核规则管理接口，路由层已要求 manage_automod 能力
type AutomodHandler struct {
	Engine  *automod.Engine
	Strikes *repositories.AutomodLogRepository
}

func NewAutomodHandler(engine *automod.Engine, strikes *repositories.AutomodLogRepository) *AutomodHandler {
	return &AutomodHandler{Engine: engine, Strikes: strikes}
}

type actionRequest struct {
	ActionType       models.ActionType `json:"action_type"`
	RoleID           *int64            `json:"role_id"`
	Message          string            `json:"message"`
	Expires          *time.Time        `json:"expires"`
	Strikes          int               `json:"strikes"`
	UseGlobalStrikes bool              `json:"use_global_strikes"`
}

func (r *actionRequest) apply(action *models.Action) {
	action.ActionType = r.ActionType
	action.RoleID = r.RoleID
	action.Message = r.Message
	action.Expires = r.Expires
	action.Strikes = r.Strikes
	action.UseGlobalStrikes = r.UseGlobalStrikes
}

type triggerRequest struct {
	Name         string             `json:"name"`
	Type         models.TriggerType `json:"type"`
	TriggerWords string             `json:"trigger_words"`
	Actions      []actionRequest    `json:"actions"`
}

// CreateTrigger 创建触发器，请求体带 actions 时在同一事务里一起创建
func (h *AutomodHandler) CreateTrigger(c *gin.Context) {
	member, err := middlewares.Member(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return
	}
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	trigger := &models.Trigger{
		GuildID:       member.GuildID,
		Name:          req.Name,
		Type:          req.Type,
		TriggerWords:  req.TriggerWords,
		MemberAddedBy: member.ID,
	}

	if len(req.Actions) == 0 {
		created, err := h.Engine.CreateTrigger(c.Request.Context(), trigger)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"trigger": created, "actions": []models.Action{}})
		return
	}

	actions := make([]models.Action, len(req.Actions))
	for i := range req.Actions {
		req.Actions[i].apply(&actions[i])
		actions[i].MemberAddedBy = member.ID
	}
	created, createdActions, err := h.Engine.CreateTriggerWithActions(c.Request.Context(), trigger, actions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trigger": created, "actions": createdActions})
}

// ListTriggers 分页列出 Guild 的触发器，skip/take 查询参数
func (h *AutomodHandler) ListTriggers(c *gin.Context) {
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}
	page, err := h.Engine.QueryTriggers(c.Request.Context(), guildID, queryInt(c, "skip", 0), queryInt(c, "take", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AutomodHandler) GetTrigger(c *gin.Context) {
	trigger, ok := h.loadTrigger(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, trigger)
}

// UpdateTrigger 只能修改名称、类型和触发词
func (h *AutomodHandler) UpdateTrigger(c *gin.Context) {
	trigger, ok := h.loadTrigger(c)
	if !ok {
		return
	}
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}
	trigger.Name = req.Name
	trigger.Type = req.Type
	trigger.TriggerWords = req.TriggerWords

	updated, err := h.Engine.UpdateTrigger(c.Request.Context(), trigger)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteTrigger 连同动作与触发记录一起删除
func (h *AutomodHandler) DeleteTrigger(c *gin.Context) {
	trigger, ok := h.loadTrigger(c)
	if !ok {
		return
	}
	if err := h.Engine.DeleteTrigger(c.Request.Context(), trigger.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AutomodHandler) CreateAction(c *gin.Context) {
	member, err := middlewares.Member(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权访问"})
		return
	}
	trigger, ok := h.loadTrigger(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}

	action := &models.Action{
		TriggerID:     trigger.ID,
		GuildID:       trigger.GuildID,
		MemberAddedBy: member.ID,
	}
	req.apply(action)

	created, err := h.Engine.CreateAction(c.Request.Context(), action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListActions 分页列出触发器的动作
func (h *AutomodHandler) ListActions(c *gin.Context) {
	trigger, ok := h.loadTrigger(c)
	if !ok {
		return
	}
	page, err := h.Engine.QueryActions(c.Request.Context(), trigger.ID, queryInt(c, "skip", 0), queryInt(c, "take", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AutomodHandler) GetAction(c *gin.Context) {
	action, ok := h.loadAction(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, action)
}

func (h *AutomodHandler) UpdateAction(c *gin.Context) {
	action, ok := h.loadAction(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数格式错误"})
		return
	}
	req.apply(action)

	updated, err := h.Engine.UpdateAction(c.Request.Context(), action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *AutomodHandler) DeleteAction(c *gin.Context) {
	action, ok := h.loadAction(c)
	if !ok {
		return
	}
	if err := h.Engine.DeleteAction(c.Request.Context(), action.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MemberStrikes 成员最近的触发记录
func (h *AutomodHandler) MemberStrikes(c *gin.Context) {
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return
	}
	memberID, ok := paramInt64(c, "member_id")
	if !ok {
		return
	}
	limit := queryInt(c, "limit", maxStrikeHistory)
	if limit <= 0 || limit > maxStrikeHistory {
		limit = maxStrikeHistory
	}

	logs, err := h.Strikes.ListByMember(c.Request.Context(), guildID, memberID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := h.Strikes.CountByMember(c.Request.Context(), guildID, memberID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, automod.Page[models.AutomodLog]{Items: logs, TotalCount: total})
}

// loadTrigger 读取 :trigger_id，不属于 :guild_id 的触发器按不存在处理
func (h *AutomodHandler) loadTrigger(c *gin.Context) (*models.Trigger, bool) {
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return nil, false
	}
	id, ok := paramUUID(c, "trigger_id")
	if !ok {
		return nil, false
	}
	trigger, err := h.Engine.GetTrigger(c.Request.Context(), id)
	if err == nil && trigger.GuildID != guildID {
		err = automod.ErrTriggerNotFound
	}
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return trigger, true
}

func (h *AutomodHandler) loadAction(c *gin.Context) (*models.Action, bool) {
	guildID, ok := paramInt64(c, "guild_id")
	if !ok {
		return nil, false
	}
	id, ok := paramUUID(c, "action_id")
	if !ok {
		return nil, false
	}
	action, err := h.Engine.GetAction(c.Request.Context(), id)
	if err == nil && action.GuildID != guildID {
		err = automod.ErrActionNotFound
	}
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return action, true
}
