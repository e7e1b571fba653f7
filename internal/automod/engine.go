package automod

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Gopher0727/automod/internal/models"
	logger "github.com/Gopher0727/automod/middleware/log"
)

const DefaultMaxPageSize = 50

// Options wires an Engine. Rules and Ledger are required; the rest fall back
// to harmless defaults.
type Options struct {
	Rules       RuleStore
	Ledger      StrikeLedger
	Permissions PermissionChecker
	Window      RecentWindow
	Scopes      ScopeProvider
	Notifier    Notifier
	Executor    Executor
	Matcher     *Matcher
	Logger      *zap.Logger

	ActionTimeout time.Duration
	MaxPageSize   int
	Now           func() time.Time
}

// Engine 自动审核引擎：同步给出放行/拦截结论，异步执行处置动作，并负责规则的增删改查
type Engine struct {
	rules       RuleStore
	ledger      StrikeLedger
	permissions PermissionChecker
	window      RecentWindow
	notifier    Notifier
	executor    Executor
	matcher     *Matcher
	cache       *RuleCache
	dispatcher  *Dispatcher
	logger      *zap.Logger
	maxPage     int
	now         func() time.Time
}

func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		rules:       opts.Rules,
		ledger:      opts.Ledger,
		permissions: opts.Permissions,
		window:      opts.Window,
		notifier:    opts.Notifier,
		executor:    opts.Executor,
		matcher:     opts.Matcher,
		cache:       NewRuleCache(opts.Rules),
		logger:      log,
		maxPage:     opts.MaxPageSize,
		now:         opts.Now,
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.executor == nil {
		e.executor = goExecutor{}
	}
	if e.matcher == nil {
		e.matcher = NewMatcher(DefaultSpamWindow, DefaultSpamThreshold)
	}
	if e.maxPage <= 0 {
		e.maxPage = DefaultMaxPageSize
	}
	if e.now == nil {
		e.now = time.Now
	}
	scopes := opts.Scopes
	if scopes == nil {
		scopes = ScopeFunc(func(context.Context) (*Scope, error) {
			return nil, errNoScope
		})
	}
	e.dispatcher = NewDispatcher(scopes, opts.ActionTimeout, log.Named("dispatcher"))
	return e
}

// Cache exposes the rule cache, mainly for tests and admin tooling.
func (e *Engine) Cache() *RuleCache {
	return e.cache
}

const (
	outcomeAllow  = "allow"
	outcomeDeny   = "deny"
	outcomeExempt = "exempt"
	outcomeError  = "error"
)

// ScanMessage 评估一条消息，返回 true 表示放行
// 实现逻辑：
//  1. 私信、系统用户、拥有豁免权限的成员直接放行
//  2. 对非 Join 触发器逐个匹配，命中的触发器各写一条 strike
//  3. 读取 Guild 全局与单触发器的 strike 计数，按阈值筛选动作
//  4. 存在拦截类动作则拒绝；其余动作交给 Executor 异步执行
//
// 存储出错时放行且不执行任何动作
func (e *Engine) ScanMessage(ctx context.Context, msg *models.Message, member *models.GuildMember) bool {
	start := time.Now()
	allow, outcome := e.scanMessage(ctx, msg, member)
	scanDuration.WithLabelValues("message").Observe(time.Since(start).Seconds())
	scanCount.WithLabelValues("message", outcome).Inc()
	return allow
}

func (e *Engine) scanMessage(ctx context.Context, msg *models.Message, member *models.GuildMember) (bool, string) {
	if msg == nil || msg.GuildID == nil || member == nil {
		return true, outcomeExempt
	}
	if models.IsSystemUser(msg.SenderID) {
		return true, outcomeExempt
	}

	log := logger.FromContext(ctx, e.logger).With(
		zap.Int64("guild_id", member.GuildID),
		zap.Int64("member_id", member.ID),
		zap.Int64("message_id", msg.ID),
	)

	if e.bypass(ctx, member, log) {
		return true, outcomeExempt
	}

	triggers, err := e.cache.GetTriggers(ctx, member.GuildID)
	if err != nil {
		log.Error("load automod triggers", zap.Error(err))
		return true, outcomeError
	}
	if len(triggers) == 0 {
		return true, outcomeAllow
	}

	recent := e.recentWindow(ctx, msg, triggers, log)

	var matched []models.Trigger
	for i := range triggers {
		t := &triggers[i]
		if t.Type == models.TriggerJoin {
			continue
		}
		if e.matcher.Matches(t, msg, recent) {
			matched = append(matched, *t)
		}
	}
	if len(matched) == 0 {
		return true, outcomeAllow
	}

	messageID := msg.ID
	counts, err := e.recordStrikes(ctx, member, matched, &messageID)
	if err != nil {
		log.Error("record automod strikes", zap.Error(err))
		return true, outcomeError
	}

	allow := true
	var pending []models.Action
	for i := range matched {
		t := &matched[i]
		actions, err := e.cache.GetActions(ctx, t.ID)
		if err != nil {
			log.Error("load automod actions", zap.String("trigger_id", t.ID.String()), zap.Error(err))
			return true, outcomeError
		}
		for _, action := range FilterActionsByStrikes(actions, counts.global, counts.byTrigger[t.ID]) {
			if action.ActionType.Blocking() {
				allow = false
				continue
			}
			pending = append(pending, action)
		}
	}

	e.dispatch(ctx, pending, member, msg, log)

	if !allow {
		return false, outcomeDeny
	}
	return true, outcomeAllow
}

// HandleMemberJoin 成员加入 Guild 时评估 Join 触发器
// 每个 Join 触发器都记一次 strike，拦截类动作在加入事件中没有意义，直接丢弃
func (e *Engine) HandleMemberJoin(ctx context.Context, member *models.GuildMember) {
	start := time.Now()
	outcome := e.handleMemberJoin(ctx, member)
	scanDuration.WithLabelValues("join").Observe(time.Since(start).Seconds())
	scanCount.WithLabelValues("join", outcome).Inc()
}

func (e *Engine) handleMemberJoin(ctx context.Context, member *models.GuildMember) string {
	if member == nil {
		return outcomeExempt
	}
	log := logger.FromContext(ctx, e.logger).With(
		zap.Int64("guild_id", member.GuildID),
		zap.Int64("member_id", member.ID),
	)

	if e.bypass(ctx, member, log) {
		return outcomeExempt
	}

	triggers, err := e.cache.GetTriggers(ctx, member.GuildID)
	if err != nil {
		log.Error("load automod triggers", zap.Error(err))
		return outcomeError
	}
	var joins []models.Trigger
	for _, t := range triggers {
		if t.Type == models.TriggerJoin {
			joins = append(joins, t)
		}
	}
	if len(joins) == 0 {
		return outcomeAllow
	}

	counts, err := e.recordStrikes(ctx, member, joins, nil)
	if err != nil {
		log.Error("record automod strikes", zap.Error(err))
		return outcomeError
	}

	batches := make([][]models.Action, 0, len(joins))
	for i := range joins {
		t := &joins[i]
		actions, err := e.cache.GetActions(ctx, t.ID)
		if err != nil {
			log.Error("load automod actions", zap.String("trigger_id", t.ID.String()), zap.Error(err))
			return outcomeError
		}
		var batch []models.Action
		for _, action := range FilterActionsByStrikes(actions, counts.global, counts.byTrigger[t.ID]) {
			if !action.ActionType.Blocking() {
				batch = append(batch, action)
			}
		}
		batches = append(batches, batch)
	}

	for _, batch := range batches {
		e.dispatch(ctx, batch, member, nil, log)
	}
	return outcomeAllow
}

// bypass 权限检查失败时按无豁免处理
func (e *Engine) bypass(ctx context.Context, member *models.GuildMember, log *zap.Logger) bool {
	if e.permissions == nil {
		return false
	}
	ok, err := e.permissions.HasCapability(ctx, member, CapabilityBypassAutomod)
	if err != nil {
		log.Warn("check automod bypass", zap.Error(err))
		return false
	}
	return ok
}

// recentWindow 只有存在 Spam 触发器时才读取频道窗口，读取失败返回 nil
func (e *Engine) recentWindow(ctx context.Context, msg *models.Message, triggers []models.Trigger, log *zap.Logger) []models.Message {
	if e.window == nil {
		return nil
	}
	for _, t := range triggers {
		if t.Type != models.TriggerSpam {
			continue
		}
		recent, err := e.window.GetRecent(ctx, msg.ChannelID)
		if err != nil {
			log.Warn("load recent messages", zap.Int64("channel_id", msg.ChannelID), zap.Error(err))
			return nil
		}
		if recent == nil {
			recent = []models.Message{}
		}
		return recent
	}
	return nil
}

type strikeCounts struct {
	global    int64
	byTrigger map[uuid.UUID]int64
}

// recordStrikes 先写 strike 再读计数，计数包含本次写入
func (e *Engine) recordStrikes(ctx context.Context, member *models.GuildMember, triggers []models.Trigger, messageID *int64) (strikeCounts, error) {
	now := e.now()
	logs := make([]models.AutomodLog, 0, len(triggers))
	ids := make([]uuid.UUID, 0, len(triggers))
	for _, t := range triggers {
		logs = append(logs, models.AutomodLog{
			ID:            uuid.New(),
			GuildID:       member.GuildID,
			TriggerID:     t.ID,
			MemberID:      member.ID,
			MessageID:     messageID,
			TimeTriggered: now,
		})
		ids = append(ids, t.ID)
	}
	if err := e.ledger.Append(ctx, logs); err != nil {
		return strikeCounts{}, err
	}
	for _, t := range triggers {
		triggerMatchCount.WithLabelValues(t.Type.String()).Inc()
	}

	global, err := e.ledger.CountByMember(ctx, member.GuildID, member.ID)
	if err != nil {
		return strikeCounts{}, err
	}
	byTrigger, err := e.ledger.CountByTriggers(ctx, member.ID, ids)
	if err != nil {
		return strikeCounts{}, err
	}
	return strikeCounts{global: global, byTrigger: byTrigger}, nil
}

// dispatch 把非阻断动作交给 Executor
// 调用方上下文已取消时放弃执行；否则动作运行在与调用方取消解耦的上下文中
func (e *Engine) dispatch(ctx context.Context, actions []models.Action, member *models.GuildMember, msg *models.Message, log *zap.Logger) {
	if len(actions) == 0 {
		return
	}
	if err := ctx.Err(); err != nil {
		dispatchDroppedCount.WithLabelValues("cancelled").Inc()
		log.Warn("automod dispatch abandoned", zap.Int("actions", len(actions)), zap.Error(err))
		return
	}

	dctx := context.WithoutCancel(ctx)
	target := *member
	var source *models.Message
	if msg != nil {
		m := *msg
		source = &m
	}
	if !e.executor.Submit(func() {
		e.dispatcher.RunActions(dctx, actions, &target, source)
	}) {
		dispatchDroppedCount.WithLabelValues("rejected").Inc()
		log.Warn("automod dispatch rejected", zap.Int("actions", len(actions)))
	}
}
