package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CacheInvalidator drops cached rules. automod.RuleCache satisfies it.
type CacheInvalidator interface {
	InvalidateGuild(guildID int64)
	InvalidateTrigger(triggerID uuid.UUID)
}

// NewInvalidationHandler returns a MessageHandler that applies rule changes
// published by other nodes to the local cache. Events from self are skipped
// since the local write already invalidated. Undecodable events are logged
// and dropped without a retry.
func NewInvalidationHandler(cache CacheInvalidator, self int64, logger *zap.Logger) MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		var ev ChangeEvent
		if err := json.Unmarshal(message.Value, &ev); err != nil {
			logger.Warn("malformed change event", zap.Int64("offset", message.Offset), zap.Error(err))
			return nil
		}
		if ev.Source == self {
			return nil
		}

		var ref struct {
			ID        uuid.UUID `json:"id"`
			TriggerID uuid.UUID `json:"trigger_id"`
		}
		if err := json.Unmarshal(ev.Item, &ref); err != nil {
			logger.Warn("malformed change item", zap.String("kind", ev.Kind), zap.Error(err))
			return nil
		}

		switch ev.Kind {
		case KindTrigger:
			cache.InvalidateGuild(ev.GuildID)
			cache.InvalidateTrigger(ref.ID)
		case KindAction:
			cache.InvalidateGuild(ev.GuildID)
			cache.InvalidateTrigger(ref.TriggerID)
		default:
			logger.Warn("unknown change kind", zap.String("kind", ev.Kind))
			return nil
		}

		logger.Debug("applied remote rule change",
			zap.String("op", ev.Op),
			zap.String("kind", ev.Kind),
			zap.Int64("guild_id", ev.GuildID),
			zap.Int64("source", ev.Source),
		)
		return nil
	}
}
