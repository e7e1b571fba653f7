package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Gopher0727/automod/internal/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// AutomodRepository 自动审核规则（触发器与动作）的持久化
type AutomodRepository struct {
	db *gorm.DB
}

func NewAutomodRepository(db *gorm.DB) *AutomodRepository {
	return &AutomodRepository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateTrigger 创建触发器
func (r *AutomodRepository) CreateTrigger(ctx context.Context, trigger *models.Trigger) error {
	return r.db.WithContext(ctx).Create(trigger).Error
}

// CreateTriggerWithActions 在同一个事务里创建触发器和它的初始动作
// 实现逻辑：任一插入失败则整体回滚，不会留下没有动作的半成品触发器
func (r *AutomodRepository) CreateTriggerWithActions(ctx context.Context, trigger *models.Trigger, actions []models.Action) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trigger).Error; err != nil {
			return err
		}
		if len(actions) == 0 {
			return nil
		}
		return tx.Create(&actions).Error
	})
}

// GetTrigger 根据 ID 获取触发器
func (r *AutomodRepository) GetTrigger(ctx context.Context, id uuid.UUID) (*models.Trigger, error) {
	var trigger models.Trigger
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&trigger).Error; err != nil {
		return nil, notFound(err)
	}
	return &trigger, nil
}

// UpdateTrigger 只更新可变字段，guild_id 与 member_added_by 创建后不可改
func (r *AutomodRepository) UpdateTrigger(ctx context.Context, trigger *models.Trigger) error {
	res := r.db.WithContext(ctx).Model(&models.Trigger{}).
		Where("id = ?", trigger.ID).
		Select("name", "type", "trigger_words").
		Updates(trigger)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTrigger 级联删除触发器
// 实现逻辑：严格按 触发记录 -> 动作 -> 触发器 的顺序删除，
// 以满足 automod_logs.trigger_id / automod_actions.trigger_id 外键约束
func (r *AutomodRepository) DeleteTrigger(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trigger_id = ?", id).Delete(&models.AutomodLog{}).Error; err != nil {
			return fmt.Errorf("delete automod logs: %w", err)
		}
		if err := tx.Where("trigger_id = ?", id).Delete(&models.Action{}).Error; err != nil {
			return fmt.Errorf("delete automod actions: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Trigger{})
		if res.Error != nil {
			return fmt.Errorf("delete automod trigger: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListTriggers 获取 Guild 的全部触发器，按创建顺序
func (r *AutomodRepository) ListTriggers(ctx context.Context, guildID int64) ([]models.Trigger, error) {
	var triggers []models.Trigger
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at asc, id asc").
		Find(&triggers).Error
	return triggers, err
}

// QueryTriggers 分页获取 Guild 的触发器，返回当前页和总数
func (r *AutomodRepository) QueryTriggers(ctx context.Context, guildID int64, skip, take int) ([]models.Trigger, int64, error) {
	var (
		triggers []models.Trigger
		total    int64
	)
	query := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Trigger{}).Where("guild_id = ?", guildID)
	}
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query().Order("created_at asc, id asc").Offset(skip).Limit(take).Find(&triggers).Error
	return triggers, total, err
}

// CreateAction 创建动作
func (r *AutomodRepository) CreateAction(ctx context.Context, action *models.Action) error {
	return r.db.WithContext(ctx).Create(action).Error
}

// GetAction 根据 ID 获取动作
func (r *AutomodRepository) GetAction(ctx context.Context, id uuid.UUID) (*models.Action, error) {
	var action models.Action
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&action).Error; err != nil {
		return nil, notFound(err)
	}
	return &action, nil
}

// UpdateAction 只更新可变字段，trigger_id / guild_id / member_added_by 不可改
func (r *AutomodRepository) UpdateAction(ctx context.Context, action *models.Action) error {
	res := r.db.WithContext(ctx).Model(&models.Action{}).
		Where("id = ?", action.ID).
		Select("action_type", "role_id", "message", "expires", "strikes", "use_global_strikes").
		Updates(action)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAction 删除动作
func (r *AutomodRepository) DeleteAction(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Action{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActions 获取触发器的全部动作，按创建顺序
func (r *AutomodRepository) ListActions(ctx context.Context, triggerID uuid.UUID) ([]models.Action, error) {
	var actions []models.Action
	err := r.db.WithContext(ctx).
		Where("trigger_id = ?", triggerID).
		Order("created_at asc, id asc").
		Find(&actions).Error
	return actions, err
}

// QueryActions 分页获取触发器的动作，返回当前页和总数
func (r *AutomodRepository) QueryActions(ctx context.Context, triggerID uuid.UUID, skip, take int) ([]models.Action, int64, error) {
	var (
		actions []models.Action
		total   int64
	)
	query := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Action{}).Where("trigger_id = ?", triggerID)
	}
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query().Order("created_at asc, id asc").Offset(skip).Limit(take).Find(&actions).Error
	return actions, total, err
}
