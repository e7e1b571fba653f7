package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/automod/internal/models"
)

const (
	OpChanged = "changed"
	OpDeleted = "deleted"

	KindTrigger = "trigger"
	KindAction  = "action"
)

// ChangeEvent is the envelope published for every automod rule change.
// Events of one guild share a partition key so consumers see them in order.
type ChangeEvent struct {
	Op         string          `json:"op"`
	Kind       string          `json:"kind"`
	GuildID    int64           `json:"guild_id"`
	Item       json.RawMessage `json:"item"`
	Source     int64           `json:"source"` // node id of the publisher
	OccurredAt time.Time       `json:"occurred_at"`
}

const (
	notifyQueueSize = 256
	publishTimeout  = 30 * time.Second
)

// ChangeNotifier publishes trigger and action changes to Kafka.
// Delivery is best effort: events are queued and sent in order by one
// background sender, so callers never wait on the broker. Failures and
// overflow are logged and never reach the caller.
type ChangeNotifier struct {
	producer   *Producer
	topic      string
	source     int64
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time

	queue     chan outgoing
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

type outgoing struct {
	ctx   context.Context
	key   []byte
	value []byte
	log   *zap.Logger
}

// NewChangeNotifier starts the background sender; call Close to flush it.
func NewChangeNotifier(producer *Producer, topic string, source int64, maxRetries int, logger *zap.Logger) *ChangeNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &ChangeNotifier{
		producer:   producer,
		topic:      topic,
		source:     source,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
		queue:      make(chan outgoing, notifyQueueSize),
		done:       make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *ChangeNotifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		ctx, cancel := context.WithTimeout(msg.ctx, publishTimeout)
		if _, _, err := n.producer.ProduceWithRetry(ctx, n.topic, msg.key, msg.value, n.maxRetries); err != nil {
			msg.log.Warn("failed to publish change event", zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are sent.
func (n *ChangeNotifier) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})
	<-n.done
}

func (n *ChangeNotifier) ItemChanged(ctx context.Context, guildID int64, item any) {
	n.publish(ctx, OpChanged, guildID, item)
}

func (n *ChangeNotifier) ItemDeleted(ctx context.Context, guildID int64, item any) {
	n.publish(ctx, OpDeleted, guildID, item)
}

func (n *ChangeNotifier) publish(ctx context.Context, op string, guildID int64, item any) {
	log := n.logger.With(zap.String("op", op), zap.Int64("guild_id", guildID))

	kind := itemKind(item)
	if kind == "" {
		log.Warn("unsupported change item", zap.String("item_type", fmt.Sprintf("%T", item)))
		return
	}
	body, err := json.Marshal(item)
	if err != nil {
		log.Error("failed to encode change item", zap.Error(err))
		return
	}
	value, err := json.Marshal(ChangeEvent{
		Op:         op,
		Kind:       kind,
		GuildID:    guildID,
		Item:       body,
		Source:     n.source,
		OccurredAt: n.now().UTC(),
	})
	if err != nil {
		log.Error("failed to encode change event", zap.Error(err))
		return
	}

	n.enqueue(outgoing{
		ctx:   context.WithoutCancel(ctx),
		key:   []byte(strconv.FormatInt(guildID, 10)),
		value: value,
		log:   log.With(zap.String("kind", kind)),
	})
}

func (n *ChangeNotifier) enqueue(msg outgoing) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		msg.log.Warn("change notifier closed, event dropped")
		return
	}
	select {
	case n.queue <- msg:
	default:
		msg.log.Warn("change event queue full, event dropped", zap.Int("queue_size", cap(n.queue)))
	}
}

func itemKind(item any) string {
	switch item.(type) {
	case *models.Trigger, models.Trigger:
		return KindTrigger
	case *models.Action, models.Action:
		return KindAction
	default:
		return ""
	}
}
