package automod

import (
	"context"

	"github.com/google/uuid"

	"github.com/Gopher0727/automod/internal/models"
)

// CapabilityBypassAutomod 持有该权限的成员不受自动审核约束
const CapabilityBypassAutomod = "bypass_automod"

// RuleStore is the durable home of triggers and actions.
type RuleStore interface {
	CreateTrigger(ctx context.Context, trigger *models.Trigger) error
	CreateTriggerWithActions(ctx context.Context, trigger *models.Trigger, actions []models.Action) error
	GetTrigger(ctx context.Context, id uuid.UUID) (*models.Trigger, error)
	UpdateTrigger(ctx context.Context, trigger *models.Trigger) error
	DeleteTrigger(ctx context.Context, id uuid.UUID) error
	ListTriggers(ctx context.Context, guildID int64) ([]models.Trigger, error)
	QueryTriggers(ctx context.Context, guildID int64, skip, take int) ([]models.Trigger, int64, error)

	CreateAction(ctx context.Context, action *models.Action) error
	GetAction(ctx context.Context, id uuid.UUID) (*models.Action, error)
	UpdateAction(ctx context.Context, action *models.Action) error
	DeleteAction(ctx context.Context, id uuid.UUID) error
	ListActions(ctx context.Context, triggerID uuid.UUID) ([]models.Action, error)
	QueryActions(ctx context.Context, triggerID uuid.UUID, skip, take int) ([]models.Action, int64, error)
}

// StrikeLedger is the append-only log of trigger fires. Counts must observe
// entries appended earlier by the same caller.
type StrikeLedger interface {
	Append(ctx context.Context, logs []models.AutomodLog) error
	CountByMember(ctx context.Context, guildID, memberID int64) (int64, error)
	CountByTriggers(ctx context.Context, memberID int64, triggerIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type PermissionChecker interface {
	HasCapability(ctx context.Context, member *models.GuildMember, capability string) (bool, error)
}

// RecentWindow returns the most recent messages of a channel, oldest first.
type RecentWindow interface {
	GetRecent(ctx context.Context, channelID int64) ([]models.Message, error)
}

// MemberService manages guild membership. GetMember returns (nil, nil) when
// the member does not exist.
type MemberService interface {
	GetMember(ctx context.Context, memberID int64) (*models.GuildMember, error)
	RemoveMember(ctx context.Context, memberID int64) error
	AddRole(ctx context.Context, guildID, memberID, roleID int64) error
	RemoveRole(ctx context.Context, guildID, memberID, roleID int64) error
}

type BanService interface {
	CreateBan(ctx context.Context, ban *models.Ban, issuer *models.GuildMember) error
}

type MessageService interface {
	PostMessage(ctx context.Context, msg *models.Message) error
}

// CommunityService resolves guild level settings. GetDefaultChannel returns
// (nil, nil) when the guild has no channel to post into.
type CommunityService interface {
	GetDefaultChannel(ctx context.Context, guildID int64) (*models.Channel, error)
}

// Notifier receives best-effort change notifications for triggers and actions.
// Calls run inline with rule writes, so implementations must not wait on
// delivery.
type Notifier interface {
	ItemChanged(ctx context.Context, guildID int64, item any)
	ItemDeleted(ctx context.Context, guildID int64, item any)
}

// Executor runs dispatch jobs off the caller's goroutine. Submit must not
// block; it reports false if the job was not accepted.
type Executor interface {
	Submit(job func()) bool
}

// Scope bundles the collaborator services one action may use. Each
// dispatched action gets its own scope and releases it when done.
type Scope struct {
	Members  MemberService
	Bans     BanService
	Messages MessageService
	Guilds   CommunityService

	release func()
}

// NewScope builds a scope; release may be nil.
func NewScope(members MemberService, bans BanService, messages MessageService, guilds CommunityService, release func()) *Scope {
	return &Scope{Members: members, Bans: bans, Messages: messages, Guilds: guilds, release: release}
}

// Release frees whatever the scope holds. Safe to call on a nil scope.
func (s *Scope) Release() {
	if s != nil && s.release != nil {
		s.release()
	}
}

// ScopeProvider opens a fresh Scope bound to ctx.
type ScopeProvider interface {
	Scope(ctx context.Context) (*Scope, error)
}

// ScopeFunc adapts a function to ScopeProvider.
type ScopeFunc func(ctx context.Context) (*Scope, error)

func (f ScopeFunc) Scope(ctx context.Context) (*Scope, error) {
	return f(ctx)
}

type nopNotifier struct{}

func (nopNotifier) ItemChanged(context.Context, int64, any) {}
func (nopNotifier) ItemDeleted(context.Context, int64, any) {}

type goExecutor struct{}

func (goExecutor) Submit(job func()) bool {
	go job()
	return true
}
