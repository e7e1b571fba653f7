package automod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/automod/internal/models"
	logger "github.com/Gopher0727/automod/middleware/log"
)

const DefaultActionTimeout = 5 * time.Second

var (
	errIssuerNotFound   = errors.New("ban issuer is no longer a member")
	errRoleMissing      = errors.New("action has no role id")
	errNoDefaultChannel = errors.New("guild has no default channel")
	errNoAuthorMember   = errors.New("message has no author member")
	errUnknownAction    = errors.New("unknown action type")
)

// actionHandler 执行单个动作；msg 在加入事件中为 nil
type actionHandler func(ctx context.Context, s *Scope, action *models.Action, member *models.GuildMember, msg *models.Message) error

// Dispatcher 逐个执行已通过 strike 筛选的动作
// 每个动作拥有独立的超时上下文和独立的服务 Scope，单个动作的失败或 panic 不影响其他动作
type Dispatcher struct {
	scopes  ScopeProvider
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(scopes ScopeProvider, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{scopes: scopes, timeout: timeout, logger: log}
}

// RunActions 按顺序执行动作，msg 为 nil 表示加入事件
func (d *Dispatcher) RunActions(ctx context.Context, actions []models.Action, member *models.GuildMember, msg *models.Message) {
	for i := range actions {
		d.runAction(ctx, &actions[i], member, msg)
	}
}

func (d *Dispatcher) runAction(ctx context.Context, action *models.Action, member *models.GuildMember, msg *models.Message) {
	log := logger.FromContext(ctx, d.logger).With(
		zap.String("action_id", action.ID.String()),
		zap.String("action_type", action.ActionType.String()),
		zap.Int64("member_id", member.ID),
		zap.Int64("guild_id", member.GuildID),
	)

	defer func() {
		if r := recover(); r != nil {
			actionRunCount.WithLabelValues(action.ActionType.String(), "panic").Inc()
			log.Error("automod action panicked", zap.Any("panic", r))
		}
	}()

	handler := handlerFor(action.ActionType)
	if handler == nil {
		actionRunCount.WithLabelValues(action.ActionType.String(), "skipped").Inc()
		log.Warn("automod action skipped", zap.Error(errUnknownAction))
		return
	}

	actx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	scope, err := d.scopes.Scope(actx)
	if err != nil {
		actionRunCount.WithLabelValues(action.ActionType.String(), "failed").Inc()
		log.Error("open automod action scope", zap.Error(err))
		return
	}
	defer scope.Release()

	err = handler(actx, scope, action, member, msg)
	switch {
	case err == nil:
		actionRunCount.WithLabelValues(action.ActionType.String(), "ok").Inc()
		log.Debug("automod action done")
	case errors.Is(err, errIssuerNotFound), errors.Is(err, errRoleMissing), errors.Is(err, errNoDefaultChannel), errors.Is(err, errNoAuthorMember):
		actionRunCount.WithLabelValues(action.ActionType.String(), "skipped").Inc()
		log.Warn("automod action skipped", zap.Error(err))
	default:
		actionRunCount.WithLabelValues(action.ActionType.String(), "failed").Inc()
		log.Error("automod action failed", zap.Error(err))
	}
}

// handlerFor 动作类型到处理函数的映射，新增 ActionType 时必须在这里补上
func handlerFor(t models.ActionType) actionHandler {
	switch t {
	case models.ActionKick:
		return kickMember
	case models.ActionBan:
		return banMember
	case models.ActionAddRole:
		return addRole
	case models.ActionRemoveRole:
		return removeRole
	case models.ActionRespond:
		return respond
	case models.ActionDeleteMessage, models.ActionBlockMessage:
		// 只影响同步的放行结果
		return noop
	}
	return nil
}

func noop(context.Context, *Scope, *models.Action, *models.GuildMember, *models.Message) error {
	return nil
}

func kickMember(ctx context.Context, s *Scope, _ *models.Action, member *models.GuildMember, _ *models.Message) error {
	if err := s.Members.RemoveMember(ctx, member.ID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// banMember 以动作创建者的身份封禁成员，创建者已不在 Guild 时跳过
func banMember(ctx context.Context, s *Scope, action *models.Action, member *models.GuildMember, _ *models.Message) error {
	issuer, err := s.Members.GetMember(ctx, action.MemberAddedBy)
	if err != nil {
		return fmt.Errorf("get ban issuer: %w", err)
	}
	if issuer == nil {
		return errIssuerNotFound
	}
	ban := &models.Ban{
		GuildID:   member.GuildID,
		TargetID:  member.UserID,
		IssuerID:  issuer.UserID,
		Reason:    action.Message,
		ExpiresAt: action.Expires,
	}
	if err := s.Bans.CreateBan(ctx, ban, issuer); err != nil {
		return fmt.Errorf("create ban: %w", err)
	}
	return nil
}

func addRole(ctx context.Context, s *Scope, action *models.Action, member *models.GuildMember, _ *models.Message) error {
	if action.RoleID == nil {
		return errRoleMissing
	}
	if err := s.Members.AddRole(ctx, member.GuildID, member.ID, *action.RoleID); err != nil {
		return fmt.Errorf("add role: %w", err)
	}
	return nil
}

func removeRole(ctx context.Context, s *Scope, action *models.Action, member *models.GuildMember, _ *models.Message) error {
	if action.RoleID == nil {
		return errRoleMissing
	}
	if err := s.Members.RemoveRole(ctx, member.GuildID, member.ID, *action.RoleID); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

// respond 以系统用户身份回复并 @ 触发者
// 实现逻辑：消息触发时回复到原频道；加入事件回复到 Guild 的默认频道
func respond(ctx context.Context, s *Scope, action *models.Action, member *models.GuildMember, msg *models.Message) error {
	guildID := member.GuildID
	targetID := member.ID
	var channelID int64

	if msg != nil {
		channelID = msg.ChannelID
		if msg.GuildID != nil {
			guildID = *msg.GuildID
		}
		if msg.AuthorMemberID == nil {
			return errNoAuthorMember
		}
		targetID = *msg.AuthorMemberID
	} else {
		channel, err := s.Guilds.GetDefaultChannel(ctx, guildID)
		if err != nil {
			return fmt.Errorf("get default channel: %w", err)
		}
		if channel == nil {
			return errNoDefaultChannel
		}
		channelID = channel.ID
	}

	reply := &models.Message{
		GuildID:   &guildID,
		ChannelID: channelID,
		SenderID:  models.SystemUserID,
		Content:   ResponseContent(targetID, action.Message),
		Mentions: []models.Mention{
			{TargetID: targetID, Type: models.MentionMember},
		},
	}
	if err := s.Messages.PostMessage(ctx, reply); err != nil {
		return fmt.Errorf("post response: %w", err)
	}
	return nil
}

// ResponseContent 回复正文，开头是对成员的 mention 标记
func ResponseContent(memberID int64, text string) string {
	return fmt.Sprintf("«@m-%d» %s", memberID, text)
}
