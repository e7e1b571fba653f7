package automod

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/utils"
)

const testGuild int64 = 1

type engineHarness struct {
	engine   *Engine
	rules    *memoryRules
	ledger   *memoryLedger
	svc      *recordingServices
	notifier *recordingNotifier
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, mutate ...func(*Options)) *engineHarness {
	t.Helper()
	h := &engineHarness{
		rules:    newMemoryRules(),
		ledger:   &memoryLedger{},
		svc:      newRecordingServices(),
		notifier: &recordingNotifier{},
	}
	h.svc.channel = &models.Channel{ID: 900, GuildID: testGuild}
	core, logs := observer.New(zap.DebugLevel)
	h.logs = logs

	opts := Options{
		Rules:    h.rules,
		Ledger:   h.ledger,
		Scopes:   h.svc.scopes(),
		Notifier: h.notifier,
		Executor: syncExecutor{},
		Logger:   zap.New(core),
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.engine = NewEngine(opts)
	return h
}

func (h *engineHarness) addTrigger(t *testing.T, tt models.TriggerType, words string, actions ...models.Action) *models.Trigger {
	t.Helper()
	trigger, _, err := h.engine.CreateTriggerWithActions(context.Background(), &models.Trigger{
		GuildID: testGuild, Name: tt.String(), Type: tt, TriggerWords: words, MemberAddedBy: 50,
	}, actions)
	require.NoError(t, err)
	return trigger
}

func act(at models.ActionType, strikes int, global bool) models.Action {
	return models.Action{ActionType: at, Strikes: strikes, UseGlobalStrikes: global, Message: "stop"}
}

func member() *models.GuildMember {
	return &models.GuildMember{ID: 7, GuildID: testGuild, UserID: 700}
}

func message(content string) *models.Message {
	guildID := testGuild
	memberID := int64(7)
	return &models.Message{ID: 1, GuildID: &guildID, ChannelID: 5, SenderID: 700, AuthorMemberID: &memberID, Content: content, CreatedAt: time.Now()}
}

func TestScanMessage_DenyWithSingleResponse(t *testing.T) {
	h := newHarness(t)
	h.addTrigger(t, models.TriggerBlacklist, "foo,bar",
		act(models.ActionDeleteMessage, 1, false),
		act(models.ActionRespond, 1, false),
	)

	assert.False(t, h.engine.ScanMessage(context.Background(), message("this has FOO in it"), member()))

	posted := h.svc.postedMessages()
	require.Len(t, posted, 1)
	assert.Equal(t, "«@m-7» stop", posted[0].Content)
	assert.Equal(t, models.SystemUserID, posted[0].SenderID)

	entries := h.ledger.entries()
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].MessageID)
	assert.Equal(t, int64(1), *entries[0].MessageID)
}

func TestScanMessage_AllowPaths(t *testing.T) {
	h := newHarness(t)
	h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionDeleteMessage, 1, false))
	ctx := context.Background()

	t.Run("no match", func(t *testing.T) {
		assert.True(t, h.engine.ScanMessage(ctx, message("clean"), member()))
	})

	t.Run("direct message", func(t *testing.T) {
		dm := message("foo")
		dm.GuildID = nil
		assert.True(t, h.engine.ScanMessage(ctx, dm, member()))
	})

	t.Run("no member", func(t *testing.T) {
		assert.True(t, h.engine.ScanMessage(ctx, message("foo"), nil))
	})

	t.Run("system user", func(t *testing.T) {
		sys := message("foo")
		sys.SenderID = models.SystemUserID
		assert.True(t, h.engine.ScanMessage(ctx, sys, member()))
	})

	assert.Empty(t, h.ledger.entries(), "allowed paths write no strikes")
}

func TestScanMessage_Bypass(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Permissions = fixedPermissions{bypass: true} })
	h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionDeleteMessage, 1, false))

	assert.True(t, h.engine.ScanMessage(context.Background(), message("foo"), member()))
	assert.Empty(t, h.ledger.entries())
}

func TestScanMessage_PermissionErrorIsNotBypass(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Permissions = fixedPermissions{err: errors.New("perm store down")} })
	h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionDeleteMessage, 1, false))

	assert.False(t, h.engine.ScanMessage(context.Background(), message("foo"), member()))
}

func TestScanMessage_StrikeEscalation(t *testing.T) {
	h := newHarness(t)
	h.addTrigger(t, models.TriggerBlacklist, "foo",
		act(models.ActionRespond, 1, false),
		act(models.ActionKick, 3, false),
	)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		assert.True(t, h.engine.ScanMessage(ctx, message("foo"), member()))
		if i < 3 {
			assert.Empty(t, h.svc.removed, "scan %d", i)
		}
	}
	assert.Equal(t, []int64{7}, h.svc.removed)
	assert.Len(t, h.svc.postedMessages(), 3)
}

func TestScanMessage_GlobalStrikes(t *testing.T) {
	h := newHarness(t)
	h.addTrigger(t, models.TriggerBlacklist, "foo")
	h.addTrigger(t, models.TriggerCommand, "spam", act(models.ActionKick, 2, true))
	ctx := context.Background()

	assert.True(t, h.engine.ScanMessage(ctx, message("foo"), member()))
	assert.Empty(t, h.svc.removed)

	// 第二个触发器第一次命中，但 Guild 内已经累计 2 次
	assert.True(t, h.engine.ScanMessage(ctx, message("/spam now"), member()))
	assert.Equal(t, []int64{7}, h.svc.removed)
}

func TestScanMessage_MultipleMatchesEachRecordStrike(t *testing.T) {
	h := newHarness(t)
	a := h.addTrigger(t, models.TriggerBlacklist, "foo")
	b := h.addTrigger(t, models.TriggerBlacklist, "bar")
	h.addTrigger(t, models.TriggerJoin, "")

	assert.True(t, h.engine.ScanMessage(context.Background(), message("foo bar"), member()))

	entries := h.ledger.entries()
	require.Len(t, entries, 2)
	got := []uuid.UUID{entries[0].TriggerID, entries[1].TriggerID}
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, got)
}

func TestScanMessage_Spam(t *testing.T) {
	now := time.Now()
	earlier := func(n int) []models.Message {
		var msgs []models.Message
		for i := 0; i < n; i++ {
			msgs = append(msgs, models.Message{ID: int64(100 + i), ChannelID: 5, SenderID: 700, CreatedAt: now.Add(-time.Second)})
		}
		return msgs
	}

	t.Run("burst is blocked", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.Window = fixedWindow{msgs: earlier(4)} })
		h.addTrigger(t, models.TriggerSpam, "", act(models.ActionBlockMessage, 1, false))
		assert.False(t, h.engine.ScanMessage(context.Background(), message("hi"), member()))
	})

	t.Run("below threshold", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.Window = fixedWindow{msgs: earlier(3)} })
		h.addTrigger(t, models.TriggerSpam, "", act(models.ActionBlockMessage, 1, false))
		assert.True(t, h.engine.ScanMessage(context.Background(), message("hi"), member()))
	})

	t.Run("window failure disables spam only", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.Window = fixedWindow{err: errors.New("redis down")} })
		h.addTrigger(t, models.TriggerSpam, "", act(models.ActionBlockMessage, 1, false))
		h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionBlockMessage, 1, false))

		assert.True(t, h.engine.ScanMessage(context.Background(), message("hi"), member()))
		assert.False(t, h.engine.ScanMessage(context.Background(), message("foo"), member()))
	})
}

func TestScanMessage_FailOpen(t *testing.T) {
	t.Run("ledger append fails", func(t *testing.T) {
		h := newHarness(t)
		h.addTrigger(t, models.TriggerBlacklist, "foo",
			act(models.ActionDeleteMessage, 1, false),
			act(models.ActionRespond, 1, false),
		)
		h.ledger.failAppend = true

		assert.True(t, h.engine.ScanMessage(context.Background(), message("foo"), member()))
		assert.Empty(t, h.svc.postedMessages())
		assert.Equal(t, 1, h.logs.FilterMessage("record automod strikes").Len())
	})

	t.Run("rule store fails", func(t *testing.T) {
		h := newHarness(t)
		h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionDeleteMessage, 1, false))
		h.engine.Cache().InvalidateGuild(testGuild)
		h.rules.failLists.Store(true)

		assert.True(t, h.engine.ScanMessage(context.Background(), message("foo"), member()))
		assert.Empty(t, h.ledger.entries())
	})
}

func TestScanMessage_CancelledContextSkipsDispatch(t *testing.T) {
	h := newHarness(t)
	h.addTrigger(t, models.TriggerBlacklist, "foo",
		act(models.ActionDeleteMessage, 1, false),
		act(models.ActionRespond, 1, false),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, h.engine.ScanMessage(ctx, message("foo"), member()))
	assert.Empty(t, h.svc.postedMessages())
	assert.Equal(t, 1, h.logs.FilterMessage("automod dispatch abandoned").Len())
}

type rejectingExecutor struct{}

func (rejectingExecutor) Submit(func()) bool { return false }

func TestScanMessage_ExecutorRejects(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Executor = rejectingExecutor{} })
	h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionRespond, 1, false))

	assert.True(t, h.engine.ScanMessage(context.Background(), message("foo"), member()))
	assert.Empty(t, h.svc.postedMessages())
	assert.Equal(t, 1, h.logs.FilterMessage("automod dispatch rejected").Len())
}

func TestScanMessage_SaturatedPoolDoesNotDelayDecision(t *testing.T) {
	pool := utils.NewWorkerPool(1, 1, nil)
	pool.Start()
	release := make(chan struct{})
	defer func() {
		close(release)
		pool.Stop()
	}()

	// 一个任务占住 worker，另一个占满队列
	started := make(chan struct{})
	require.True(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	require.True(t, pool.Submit(func() { <-release }))

	h := newHarness(t, func(o *Options) { o.Executor = pool })
	h.addTrigger(t, models.TriggerBlacklist, "foo",
		act(models.ActionDeleteMessage, 1, false),
		act(models.ActionRespond, 1, false),
	)

	decided := make(chan bool, 1)
	go func() { decided <- h.engine.ScanMessage(context.Background(), message("foo"), member()) }()

	select {
	case allowed := <-decided:
		assert.False(t, allowed)
	case <-time.After(time.Second):
		t.Fatal("scan decision waited on a saturated worker pool")
	}
	assert.Equal(t, 1, h.logs.FilterMessage("automod dispatch rejected").Len())
	assert.Empty(t, h.svc.postedMessages())
}

func TestScanMessage_DispatchOutlivesCaller(t *testing.T) {
	type observed struct {
		hasDeadline bool
		err         error
	}
	done := make(chan observed, 1)
	h := newHarness(t, func(o *Options) {
		o.Scopes = ScopeFunc(func(ctx context.Context) (*Scope, error) {
			_, hasDeadline := ctx.Deadline()
			done <- observed{hasDeadline: hasDeadline, err: ctx.Err()}
			return nil, errors.New("stop here")
		})
	})
	h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionKick, 1, false))

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	// 调用方在动作开始执行前就已经返回并取消了上下文
	h.engine.executor = executorFunc(func(job func()) bool {
		go func() {
			<-release
			job()
		}()
		return true
	})
	assert.True(t, h.engine.ScanMessage(ctx, message("foo"), member()))
	cancel()
	close(release)

	select {
	case got := <-done:
		assert.True(t, got.hasDeadline)
		assert.NoError(t, got.err)
	case <-time.After(time.Second):
		t.Fatal("dispatch never ran")
	}
}

type executorFunc func(job func()) bool

func (f executorFunc) Submit(job func()) bool { return f(job) }

func TestHandleMemberJoin(t *testing.T) {
	t.Run("join triggers run non-blocking actions", func(t *testing.T) {
		h := newHarness(t)
		h.addTrigger(t, models.TriggerJoin, "",
			act(models.ActionDeleteMessage, 1, false),
			models.Action{ActionType: models.ActionRespond, Strikes: 1, Message: "welcome"},
		)
		h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionKick, 1, false))

		h.engine.HandleMemberJoin(context.Background(), member())

		posted := h.svc.postedMessages()
		require.Len(t, posted, 1)
		assert.Equal(t, int64(900), posted[0].ChannelID)
		assert.Equal(t, "«@m-7» welcome", posted[0].Content)
		assert.Empty(t, h.svc.removed)

		entries := h.ledger.entries()
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].MessageID)
	})

	t.Run("no join triggers", func(t *testing.T) {
		h := newHarness(t)
		h.addTrigger(t, models.TriggerBlacklist, "foo", act(models.ActionKick, 1, false))

		h.engine.HandleMemberJoin(context.Background(), member())
		assert.Empty(t, h.ledger.entries())
	})

	t.Run("bypass", func(t *testing.T) {
		h := newHarness(t, func(o *Options) { o.Permissions = fixedPermissions{bypass: true} })
		h.addTrigger(t, models.TriggerJoin, "", act(models.ActionKick, 1, false))

		h.engine.HandleMemberJoin(context.Background(), member())
		assert.Empty(t, h.ledger.entries())
		assert.Empty(t, h.svc.removed)
	})

	t.Run("strike threshold on rejoin", func(t *testing.T) {
		h := newHarness(t)
		h.addTrigger(t, models.TriggerJoin, "", act(models.ActionBan, 2, false))
		h.svc.members[50] = &models.GuildMember{ID: 50, GuildID: testGuild, UserID: 500}

		h.engine.HandleMemberJoin(context.Background(), member())
		assert.Empty(t, h.svc.bans)
		h.engine.HandleMemberJoin(context.Background(), member())
		assert.Len(t, h.svc.bans, 1)
	})

	t.Run("nil member", func(t *testing.T) {
		h := newHarness(t)
		assert.NotPanics(t, func() { h.engine.HandleMemberJoin(context.Background(), nil) })
	})
}
