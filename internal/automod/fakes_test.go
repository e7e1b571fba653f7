package automod

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
)

var errStoreDown = errors.New("store down")

// memoryRules 内存版 RuleStore，记录 List 调用次数
type memoryRules struct {
	mu       sync.Mutex
	triggers map[uuid.UUID]models.Trigger
	actions  map[uuid.UUID]models.Action

	listTriggerCalls atomic.Int32
	listActionCalls  atomic.Int32
	failLists        atomic.Bool
	// beforeList 在 List 读取数据之前调用，用来制造与失效的竞争
	beforeList func()
}

func newMemoryRules() *memoryRules {
	return &memoryRules{triggers: map[uuid.UUID]models.Trigger{}, actions: map[uuid.UUID]models.Action{}}
}

func (m *memoryRules) CreateTrigger(_ context.Context, t *models.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[t.ID] = *t
	return nil
}

func (m *memoryRules) CreateTriggerWithActions(_ context.Context, t *models.Trigger, actions []models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[t.ID] = *t
	for _, a := range actions {
		m.actions[a.ID] = a
	}
	return nil
}

func (m *memoryRules) GetTrigger(_ context.Context, id uuid.UUID) (*models.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &t, nil
}

func (m *memoryRules) UpdateTrigger(_ context.Context, t *models.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.triggers[t.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	old.Name, old.Type, old.TriggerWords = t.Name, t.Type, t.TriggerWords
	m.triggers[t.ID] = old
	return nil
}

func (m *memoryRules) DeleteTrigger(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.triggers[id]; !ok {
		return repositories.ErrNotFound
	}
	for aid, a := range m.actions {
		if a.TriggerID == id {
			delete(m.actions, aid)
		}
	}
	delete(m.triggers, id)
	return nil
}

func (m *memoryRules) ListTriggers(_ context.Context, guildID int64) ([]models.Trigger, error) {
	m.listTriggerCalls.Add(1)
	if m.beforeList != nil {
		m.beforeList()
	}
	if m.failLists.Load() {
		return nil, errStoreDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Trigger
	for _, t := range m.triggers {
		if t.GuildID == guildID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRules) QueryTriggers(ctx context.Context, guildID int64, skip, take int) ([]models.Trigger, int64, error) {
	all, err := m.ListTriggers(ctx, guildID)
	if err != nil {
		return nil, 0, err
	}
	return pageOf(all, skip, take), int64(len(all)), nil
}

func (m *memoryRules) CreateAction(_ context.Context, a *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[a.ID] = *a
	return nil
}

func (m *memoryRules) GetAction(_ context.Context, id uuid.UUID) (*models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (m *memoryRules) UpdateAction(_ context.Context, a *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.actions[a.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	old.ActionType, old.RoleID, old.Message, old.Expires = a.ActionType, a.RoleID, a.Message, a.Expires
	old.Strikes, old.UseGlobalStrikes = a.Strikes, a.UseGlobalStrikes
	m.actions[a.ID] = old
	return nil
}

func (m *memoryRules) DeleteAction(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.actions, id)
	return nil
}

func (m *memoryRules) ListActions(_ context.Context, triggerID uuid.UUID) ([]models.Action, error) {
	m.listActionCalls.Add(1)
	if m.failLists.Load() {
		return nil, errStoreDown
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Action
	for _, a := range m.actions {
		if a.TriggerID == triggerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strikes < out[j].Strikes })
	return out, nil
}

func (m *memoryRules) QueryActions(ctx context.Context, triggerID uuid.UUID, skip, take int) ([]models.Action, int64, error) {
	all, err := m.ListActions(ctx, triggerID)
	if err != nil {
		return nil, 0, err
	}
	return pageOf(all, skip, take), int64(len(all)), nil
}

func pageOf[T any](all []T, skip, take int) []T {
	if skip >= len(all) {
		return nil
	}
	end := skip + take
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end]
}

// memoryLedger 内存版 StrikeLedger
type memoryLedger struct {
	mu         sync.Mutex
	logs       []models.AutomodLog
	failAppend bool
}

func (l *memoryLedger) Append(_ context.Context, logs []models.AutomodLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAppend {
		return errStoreDown
	}
	l.logs = append(l.logs, logs...)
	return nil
}

func (l *memoryLedger) CountByMember(_ context.Context, guildID, memberID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, e := range l.logs {
		if e.GuildID == guildID && e.MemberID == memberID {
			n++
		}
	}
	return n, nil
}

func (l *memoryLedger) CountByTriggers(_ context.Context, memberID int64, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[uuid.UUID]int64{}
	for _, e := range l.logs {
		for _, id := range ids {
			if e.MemberID == memberID && e.TriggerID == id {
				out[id]++
			}
		}
	}
	return out, nil
}

func (l *memoryLedger) entries() []models.AutomodLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.AutomodLog(nil), l.logs...)
}

// recordingServices 记录动作对协作服务的调用
type recordingServices struct {
	mu       sync.Mutex
	removed  []int64
	bans     []models.Ban
	added    []int64
	dropped  []int64
	posted   []models.Message
	members  map[int64]*models.GuildMember
	channel  *models.Channel
	failKick bool
	panicAdd bool
}

func newRecordingServices() *recordingServices {
	return &recordingServices{members: map[int64]*models.GuildMember{}}
}

func (r *recordingServices) GetMember(_ context.Context, id int64) (*models.GuildMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[id], nil
}

func (r *recordingServices) RemoveMember(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failKick {
		return errors.New("kick failed")
	}
	r.removed = append(r.removed, id)
	return nil
}

func (r *recordingServices) AddRole(_ context.Context, _, _, roleID int64) error {
	if r.panicAdd {
		panic("role service exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, roleID)
	return nil
}

func (r *recordingServices) RemoveRole(_ context.Context, _, _, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, roleID)
	return nil
}

func (r *recordingServices) CreateBan(_ context.Context, ban *models.Ban, _ *models.GuildMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bans = append(r.bans, *ban)
	return nil
}

func (r *recordingServices) PostMessage(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posted = append(r.posted, *msg)
	return nil
}

func (r *recordingServices) GetDefaultChannel(context.Context, int64) (*models.Channel, error) {
	return r.channel, nil
}

func (r *recordingServices) scopes() ScopeProvider {
	return ScopeFunc(func(context.Context) (*Scope, error) {
		return NewScope(r, r, r, r, nil), nil
	})
}

func (r *recordingServices) postedMessages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.posted...)
}

// syncExecutor 在调用方协程中直接执行，测试里动作在 Scan 返回前就已完成
type syncExecutor struct{}

func (syncExecutor) Submit(job func()) bool {
	job()
	return true
}

type fixedPermissions struct {
	bypass bool
	err    error
}

func (p fixedPermissions) HasCapability(context.Context, *models.GuildMember, string) (bool, error) {
	return p.bypass, p.err
}

type fixedWindow struct {
	msgs []models.Message
	err  error
}

func (w fixedWindow) GetRecent(context.Context, int64) ([]models.Message, error) {
	return w.msgs, w.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	changed []any
	deleted []any
}

func (n *recordingNotifier) ItemChanged(_ context.Context, _ int64, item any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, item)
}

func (n *recordingNotifier) ItemDeleted(_ context.Context, _ int64, item any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, item)
}
