package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Gopher0727/automod/internal/models"
)

// AutomodLogRepository 触发记录（strike 账本），只追加
type AutomodLogRepository struct {
	db *gorm.DB
}

func NewAutomodLogRepository(db *gorm.DB) *AutomodLogRepository {
	return &AutomodLogRepository{db: db}
}

// Append 批量写入触发记录，返回前已落库
func (r *AutomodLogRepository) Append(ctx context.Context, logs []models.AutomodLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&logs).Error
}

// CountByMember 成员在 Guild 内的全部触发次数（跨触发器）
func (r *AutomodLogRepository) CountByMember(ctx context.Context, guildID, memberID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AutomodLog{}).
		Where("guild_id = ? AND member_id = ?", guildID, memberID).
		Count(&count).Error
	return count, err
}

// CountByTriggers 成员在给定触发器上的触发次数
// 实现逻辑：按 trigger_id 分组计数，没有记录的触发器不会出现在结果中
func (r *AutomodLogRepository) CountByTriggers(ctx context.Context, memberID int64, triggerIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(triggerIDs))
	if len(triggerIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TriggerID uuid.UUID
		Total     int64
	}
	err := r.db.WithContext(ctx).Model(&models.AutomodLog{}).
		Select("trigger_id, count(*) as total").
		Where("member_id = ? AND trigger_id IN ?", memberID, triggerIDs).
		Group("trigger_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.TriggerID] = row.Total
	}
	return counts, nil
}

// ListByMember 成员在 Guild 内最近的触发记录，新的在前
func (r *AutomodLogRepository) ListByMember(ctx context.Context, guildID, memberID int64, limit int) ([]models.AutomodLog, error) {
	var logs []models.AutomodLog
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND member_id = ?", guildID, memberID).
		Order("time_triggered desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
