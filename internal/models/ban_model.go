package models

import "time"

// Ban 封禁记录，ExpiresAt 为空表示永久
type Ban struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	GuildID   int64      `gorm:"not null;index" json:"guild_id"`
	TargetID  int64      `gorm:"not null;index" json:"target_id"`
	IssuerID  int64      `gorm:"not null" json:"issuer_id"`
	Reason    string     `gorm:"type:text" json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (Ban) TableName() string {
	return "bans"
}
