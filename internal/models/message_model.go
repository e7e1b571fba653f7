package models

import "time"

// Mention 消息中的 @ 提及
type Mention struct {
	TargetID int64  `json:"target_id"`
	Type     string `json:"type"` // member, role, channel
}

const MentionMember = "member"

// Message 消息模型。GuildID 为空表示私信
type Message struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	GuildID        *int64    `gorm:"index" json:"guild_id,omitempty"`
	ChannelID      int64     `gorm:"not null;index" json:"channel_id"`
	SenderID       int64     `gorm:"not null;index" json:"sender_id"`
	AuthorMemberID *int64    `json:"author_member_id,omitempty"`
	Content        string    `gorm:"not null" json:"content"`
	Mentions       []Mention `gorm:"serializer:json" json:"mentions,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
