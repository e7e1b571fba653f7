package models

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType 触发器类型
type TriggerType int

const (
	TriggerBlacklist TriggerType = iota
	TriggerCommand
	TriggerSpam
	TriggerJoin
)

func (t TriggerType) String() string {
	switch t {
	case TriggerBlacklist:
		return "blacklist"
	case TriggerCommand:
		return "command"
	case TriggerSpam:
		return "spam"
	case TriggerJoin:
		return "join"
	default:
		return "unknown"
	}
}

// ActionType 触发后执行的动作类型
type ActionType int

const (
	ActionKick ActionType = iota
	ActionBan
	ActionAddRole
	ActionRemoveRole
	ActionBlockMessage
	ActionDeleteMessage
	ActionRespond
)

// ActionTypes 列出全部已声明的动作类型
var ActionTypes = []ActionType{
	ActionKick,
	ActionBan,
	ActionAddRole,
	ActionRemoveRole,
	ActionBlockMessage,
	ActionDeleteMessage,
	ActionRespond,
}

func (a ActionType) String() string {
	switch a {
	case ActionKick:
		return "kick"
	case ActionBan:
		return "ban"
	case ActionAddRole:
		return "add_role"
	case ActionRemoveRole:
		return "remove_role"
	case ActionBlockMessage:
		return "block_message"
	case ActionDeleteMessage:
		return "delete_message"
	case ActionRespond:
		return "respond"
	default:
		return "unknown"
	}
}

// Blocking 阻断类动作只影响同步的放行/拦截结果，不会被异步派发
func (a ActionType) Blocking() bool {
	return a == ActionDeleteMessage || a == ActionBlockMessage
}

// Trigger 自动审核触发器
type Trigger struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	GuildID       int64       `gorm:"not null;index" json:"guild_id"`
	Name          string      `gorm:"type:varchar(64)" json:"name"`
	Type          TriggerType `gorm:"not null" json:"type"`
	TriggerWords  string      `gorm:"type:text" json:"trigger_words"` // 逗号分隔，含义取决于 Type
	MemberAddedBy int64       `gorm:"not null" json:"member_added_by"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (Trigger) TableName() string {
	return "automod_triggers"
}

// Action 挂在触发器上的处置动作，受 Strikes 阈值控制
type Action struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TriggerID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"trigger_id"`
	GuildID          int64      `gorm:"not null;index" json:"guild_id"`
	ActionType       ActionType `gorm:"not null" json:"action_type"`
	RoleID           *int64     `json:"role_id,omitempty"`
	Message          string     `gorm:"type:text" json:"message"`
	Expires          *time.Time `json:"expires,omitempty"`
	Strikes          int        `gorm:"not null;default:1" json:"strikes"`
	UseGlobalStrikes bool       `gorm:"not null;default:false" json:"use_global_strikes"`
	MemberAddedBy    int64      `gorm:"not null" json:"member_added_by"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (Action) TableName() string {
	return "automod_actions"
}

// AutomodLog 触发记录（strike），只追加不修改
type AutomodLog struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GuildID       int64     `gorm:"not null;index:idx_automod_logs_guild_member" json:"guild_id"`
	TriggerID     uuid.UUID `gorm:"type:uuid;not null;index:idx_automod_logs_trigger_member" json:"trigger_id"`
	MemberID      int64     `gorm:"not null;index:idx_automod_logs_guild_member;index:idx_automod_logs_trigger_member" json:"member_id"`
	MessageID     *int64    `json:"message_id,omitempty"` // 加入事件没有消息
	TimeTriggered time.Time `gorm:"not null" json:"time_triggered"`
}

func (AutomodLog) TableName() string {
	return "automod_logs"
}
