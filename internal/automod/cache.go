package automod

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Gopher0727/automod/internal/models"
)

const loadTimeout = 5 * time.Second

type ruleLoader interface {
	ListTriggers(ctx context.Context, guildID int64) ([]models.Trigger, error)
	ListActions(ctx context.Context, triggerID uuid.UUID) ([]models.Action, error)
}

// RuleCache memoises guild -> triggers and trigger -> actions.
//
// Entries never expire on their own; every accepted rule write invalidates
// the affected keys before returning. Returned slices are shared between
// callers and must not be modified.
type RuleCache struct {
	store    ruleLoader
	triggers *xsync.MapOf[int64, []models.Trigger]
	actions  *xsync.MapOf[uuid.UUID, []models.Action]
	group    singleflight.Group

	// gen is bumped by every invalidation. A load that started under an
	// older generation is handed back to its caller but never stored.
	gen atomic.Uint64
}

func NewRuleCache(store ruleLoader) *RuleCache {
	return &RuleCache{
		store:    store,
		triggers: xsync.NewMapOf[int64, []models.Trigger](),
		actions:  xsync.NewMapOf[uuid.UUID, []models.Action](),
	}
}

// GetTriggers 获取 Guild 的全部触发器
func (c *RuleCache) GetTriggers(ctx context.Context, guildID int64) ([]models.Trigger, error) {
	return cachedLoad(ctx, c, c.triggers, guildID, "triggers", func(ctx context.Context) ([]models.Trigger, error) {
		return c.store.ListTriggers(ctx, guildID)
	})
}

// GetActions 获取触发器的全部动作
func (c *RuleCache) GetActions(ctx context.Context, triggerID uuid.UUID) ([]models.Action, error) {
	return cachedLoad(ctx, c, c.actions, triggerID, "actions", func(ctx context.Context) ([]models.Action, error) {
		return c.store.ListActions(ctx, triggerID)
	})
}

// InvalidateGuild 删除 Guild 的触发器缓存，幂等
func (c *RuleCache) InvalidateGuild(guildID int64) {
	c.gen.Add(1)
	c.triggers.Delete(guildID)
}

// InvalidateTrigger 删除触发器的动作缓存，幂等
func (c *RuleCache) InvalidateTrigger(triggerID uuid.UUID) {
	c.gen.Add(1)
	c.actions.Delete(triggerID)
}

// cachedLoad serves key from m or loads it once for all concurrent callers.
// The shared load runs detached from any single caller and is bounded by
// loadTimeout; each caller stops waiting when its own ctx is done.
func cachedLoad[K comparable, V any](ctx context.Context, c *RuleCache, m *xsync.MapOf[K, []V], key K, kind string, fetch func(context.Context) ([]V, error)) ([]V, error) {
	if v, ok := m.Load(key); ok {
		cacheLookups.WithLabelValues(kind, "hit").Inc()
		return v, nil
	}
	cacheLookups.WithLabelValues(kind, "miss").Inc()

	gen := c.gen.Load()
	// the generation is part of the flight key so a reader arriving after an
	// invalidation never joins a load that began before it
	ch := c.group.DoChan(fmt.Sprintf("%s:%v:%d", kind, key, gen), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		v, err := fetch(lctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = []V{}
		}
		actual, stored := m.Compute(key, func(old []V, loaded bool) ([]V, bool) {
			if loaded {
				return old, false
			}
			if c.gen.Load() != gen {
				return nil, true
			}
			return v, false
		})
		if !stored {
			return v, nil
		}
		return actual, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load automod %s: %w", kind, res.Err)
		}
		return res.Val.([]V), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("load automod %s: %w", kind, ctx.Err())
	}
}
