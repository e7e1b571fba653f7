package automod

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
)

// Page 分页结果
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
}

// CreateTrigger 创建触发器
func (e *Engine) CreateTrigger(ctx context.Context, trigger *models.Trigger) (*models.Trigger, error) {
	if err := validateTrigger(trigger); err != nil {
		return nil, err
	}
	trigger.ID = uuid.New()
	if err := e.rules.CreateTrigger(ctx, trigger); err != nil {
		return nil, fmt.Errorf("create automod trigger: %w", err)
	}
	e.cache.InvalidateGuild(trigger.GuildID)
	e.notifier.ItemChanged(ctx, trigger.GuildID, trigger)
	return trigger, nil
}

// CreateTriggerWithActions 在一个事务中创建触发器及其动作
// 动作的 TriggerID 与 GuildID 由触发器决定，调用方传入的值会被覆盖
func (e *Engine) CreateTriggerWithActions(ctx context.Context, trigger *models.Trigger, actions []models.Action) (*models.Trigger, []models.Action, error) {
	if err := validateTrigger(trigger); err != nil {
		return nil, nil, err
	}
	for i := range actions {
		if err := validateAction(&actions[i]); err != nil {
			return nil, nil, err
		}
	}

	trigger.ID = uuid.New()
	for i := range actions {
		actions[i].ID = uuid.New()
		actions[i].TriggerID = trigger.ID
		actions[i].GuildID = trigger.GuildID
		if actions[i].MemberAddedBy == 0 {
			actions[i].MemberAddedBy = trigger.MemberAddedBy
		}
	}

	if err := e.rules.CreateTriggerWithActions(ctx, trigger, actions); err != nil {
		return nil, nil, fmt.Errorf("create automod trigger with actions: %w", err)
	}
	e.cache.InvalidateGuild(trigger.GuildID)
	e.cache.InvalidateTrigger(trigger.ID)

	e.notifier.ItemChanged(ctx, trigger.GuildID, trigger)
	for i := range actions {
		e.notifier.ItemChanged(ctx, trigger.GuildID, &actions[i])
	}
	return trigger, actions, nil
}

// UpdateTrigger 更新触发器的名称、类型和触发词，guild_id 与 member_added_by 不可修改
func (e *Engine) UpdateTrigger(ctx context.Context, trigger *models.Trigger) (*models.Trigger, error) {
	existing, err := e.GetTrigger(ctx, trigger.ID)
	if err != nil {
		return nil, err
	}
	if trigger.GuildID != existing.GuildID {
		return nil, invalid("guild_id", "cannot be changed")
	}
	if trigger.MemberAddedBy != existing.MemberAddedBy {
		return nil, invalid("member_added_by", "cannot be changed")
	}
	if err := validateTrigger(trigger); err != nil {
		return nil, err
	}

	if err := e.rules.UpdateTrigger(ctx, trigger); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTriggerNotFound
		}
		return nil, fmt.Errorf("update automod trigger: %w", err)
	}
	e.cache.InvalidateGuild(trigger.GuildID)

	updated := *existing
	updated.Name = trigger.Name
	updated.Type = trigger.Type
	updated.TriggerWords = trigger.TriggerWords
	e.notifier.ItemChanged(ctx, updated.GuildID, &updated)
	return &updated, nil
}

// DeleteTrigger 删除触发器及其动作和 strike 记录
func (e *Engine) DeleteTrigger(ctx context.Context, id uuid.UUID) error {
	existing, err := e.GetTrigger(ctx, id)
	if err != nil {
		return err
	}
	if err := e.rules.DeleteTrigger(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrTriggerNotFound
		}
		return fmt.Errorf("delete automod trigger: %w", err)
	}
	e.cache.InvalidateGuild(existing.GuildID)
	e.cache.InvalidateTrigger(id)
	e.notifier.ItemDeleted(ctx, existing.GuildID, existing)
	return nil
}

// GetTrigger 读取单个触发器，直接走存储
func (e *Engine) GetTrigger(ctx context.Context, id uuid.UUID) (*models.Trigger, error) {
	trigger, err := e.rules.GetTrigger(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTriggerNotFound
		}
		return nil, fmt.Errorf("get automod trigger: %w", err)
	}
	return trigger, nil
}

// QueryTriggers 分页查询 Guild 的触发器
func (e *Engine) QueryTriggers(ctx context.Context, guildID int64, skip, take int) (Page[models.Trigger], error) {
	skip, take = e.clampPage(skip, take)
	items, total, err := e.rules.QueryTriggers(ctx, guildID, skip, take)
	if err != nil {
		return Page[models.Trigger]{}, fmt.Errorf("query automod triggers: %w", err)
	}
	if items == nil {
		items = []models.Trigger{}
	}
	return Page[models.Trigger]{Items: items, TotalCount: total}, nil
}

// CreateAction 给已有触发器添加动作，动作必须与触发器属于同一个 Guild
func (e *Engine) CreateAction(ctx context.Context, action *models.Action) (*models.Action, error) {
	if err := validateAction(action); err != nil {
		return nil, err
	}
	trigger, err := e.GetTrigger(ctx, action.TriggerID)
	if err != nil {
		return nil, err
	}
	if trigger.GuildID != action.GuildID {
		return nil, invalid("trigger_id", "belongs to another guild")
	}

	action.ID = uuid.New()
	if err := e.rules.CreateAction(ctx, action); err != nil {
		return nil, fmt.Errorf("create automod action: %w", err)
	}
	e.cache.InvalidateGuild(action.GuildID)
	e.cache.InvalidateTrigger(action.TriggerID)
	e.notifier.ItemChanged(ctx, action.GuildID, action)
	return action, nil
}

// UpdateAction 更新动作，trigger_id / guild_id / member_added_by 不可修改
func (e *Engine) UpdateAction(ctx context.Context, action *models.Action) (*models.Action, error) {
	existing, err := e.GetAction(ctx, action.ID)
	if err != nil {
		return nil, err
	}
	if action.GuildID != existing.GuildID {
		return nil, invalid("guild_id", "cannot be changed")
	}
	if action.TriggerID != existing.TriggerID {
		return nil, invalid("trigger_id", "cannot be changed")
	}
	if action.MemberAddedBy != existing.MemberAddedBy {
		return nil, invalid("member_added_by", "cannot be changed")
	}
	if err := validateAction(action); err != nil {
		return nil, err
	}

	if err := e.rules.UpdateAction(ctx, action); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("update automod action: %w", err)
	}
	e.cache.InvalidateGuild(existing.GuildID)
	e.cache.InvalidateTrigger(existing.TriggerID)

	updated := *action
	updated.CreatedAt = existing.CreatedAt
	e.notifier.ItemChanged(ctx, updated.GuildID, &updated)
	return &updated, nil
}

// DeleteAction 删除动作
func (e *Engine) DeleteAction(ctx context.Context, id uuid.UUID) error {
	existing, err := e.GetAction(ctx, id)
	if err != nil {
		return err
	}
	if err := e.rules.DeleteAction(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrActionNotFound
		}
		return fmt.Errorf("delete automod action: %w", err)
	}
	e.cache.InvalidateGuild(existing.GuildID)
	e.cache.InvalidateTrigger(existing.TriggerID)
	e.notifier.ItemDeleted(ctx, existing.GuildID, existing)
	return nil
}

// GetAction 读取单个动作，直接走存储
func (e *Engine) GetAction(ctx context.Context, id uuid.UUID) (*models.Action, error) {
	action, err := e.rules.GetAction(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("get automod action: %w", err)
	}
	return action, nil
}

// QueryActions 分页查询触发器的动作
func (e *Engine) QueryActions(ctx context.Context, triggerID uuid.UUID, skip, take int) (Page[models.Action], error) {
	skip, take = e.clampPage(skip, take)
	items, total, err := e.rules.QueryActions(ctx, triggerID, skip, take)
	if err != nil {
		return Page[models.Action]{}, fmt.Errorf("query automod actions: %w", err)
	}
	if items == nil {
		items = []models.Action{}
	}
	return Page[models.Action]{Items: items, TotalCount: total}, nil
}

// clampPage take 超过上限或非正数时取上限，skip 不小于 0
func (e *Engine) clampPage(skip, take int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 || take > e.maxPage {
		take = e.maxPage
	}
	return skip, take
}

func validateTrigger(trigger *models.Trigger) error {
	if trigger == nil {
		return invalid("trigger", "is required")
	}
	switch trigger.Type {
	case models.TriggerBlacklist, models.TriggerCommand:
		if strings.TrimSpace(trigger.TriggerWords) == "" {
			return invalid("trigger_words", fmt.Sprintf("is required for %s triggers", trigger.Type))
		}
	case models.TriggerSpam, models.TriggerJoin:
	default:
		return invalid("type", "is not a known trigger type")
	}
	if len(trigger.Name) > 64 {
		return invalid("name", "must be at most 64 characters")
	}
	return nil
}

func validateAction(action *models.Action) error {
	if action == nil {
		return invalid("action", "is required")
	}
	if handlerFor(action.ActionType) == nil {
		return invalid("action_type", "is not a known action type")
	}
	if (action.ActionType == models.ActionAddRole || action.ActionType == models.ActionRemoveRole) && action.RoleID == nil {
		return invalid("role_id", fmt.Sprintf("is required for %s actions", action.ActionType))
	}
	return nil
}
