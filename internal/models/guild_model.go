package models

import "time"

// Guild 社区（服务器）。自动审核规则以 Guild 为作用域
type Guild struct {
	ID int64 `gorm:"primaryKey" json:"id"`

	OwnerID int64  `gorm:"not null" json:"owner_id"`
	Topic   string `gorm:"type:varchar(255)" json:"topic"`

	// DefaultChannelID 系统消息（例如加入事件的自动回复）投递的频道
	DefaultChannelID *int64 `json:"default_channel_id,omitempty"`

	Channels []Channel     `gorm:"foreignKey:GuildID" json:"-"`
	Members  []GuildMember `gorm:"foreignKey:GuildID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (Guild) TableName() string {
	return "guilds"
}

// Channel Guild 下的文字频道
type Channel struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	GuildID   int64     `gorm:"not null;index" json:"guild_id"`
	Name      string    `gorm:"type:varchar(100)" json:"name"`
	Position  int       `gorm:"default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

func (Channel) TableName() string {
	return "channels"
}
