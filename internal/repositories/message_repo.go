package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/automod/internal/models"
)

// MessageRepository 消息仓储
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建消息
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID 根据ID获取消息
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &message, nil
}

// GetChannelMessages 获取频道的最近消息，按时间倒序
func (r *MessageRepository) GetChannelMessages(ctx context.Context, channelID int64, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}
