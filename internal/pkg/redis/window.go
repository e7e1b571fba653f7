package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/automod/internal/models"
)

const (
	DefaultWindowSize = 50
	DefaultWindowTTL  = 10 * time.Minute
)

// MessageWindow keeps the last N messages of every channel in a Redis list,
// oldest first. It backs spam detection and is never the source of truth.
type MessageWindow struct {
	client *redis.Client
	size   int64
	ttl    time.Duration
	logger *zap.Logger
}

func NewMessageWindow(client *redis.Client, size int, ttl time.Duration, logger *zap.Logger) *MessageWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if ttl <= 0 {
		ttl = DefaultWindowTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageWindow{client: client, size: int64(size), ttl: ttl, logger: logger}
}

func windowKey(channelID int64) string {
	return fmt.Sprintf("automod:channel:%d:recent", channelID)
}

// Push 追加一条消息并裁剪到窗口大小，空闲频道的窗口随 TTL 过期
func (w *MessageWindow) Push(ctx context.Context, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message %d: %w", msg.ID, err)
	}
	key := windowKey(msg.ChannelID)
	_, err = w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -w.size, -1)
		pipe.Expire(ctx, key, w.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push message to channel %d window: %w", msg.ChannelID, err)
	}
	return nil
}

// GetRecent 返回频道窗口内的消息，按写入顺序；无法解析的条目跳过
func (w *MessageWindow) GetRecent(ctx context.Context, channelID int64) ([]models.Message, error) {
	raw, err := w.client.LRange(ctx, windowKey(channelID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read channel %d window: %w", channelID, err)
	}
	messages := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			w.logger.Warn("skip malformed window entry", zap.Int64("channel_id", channelID), zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear 删除频道窗口
func (w *MessageWindow) Clear(ctx context.Context, channelID int64) error {
	return w.client.Del(ctx, windowKey(channelID)).Err()
}
