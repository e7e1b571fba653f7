package models

import "time"

// GuildMember 用户在某个 Guild 中的成员身份，(guild_id, user_id) 唯一
type GuildMember struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	GuildID   int64     `gorm:"not null;uniqueIndex:idx_guild_user" json:"guild_id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_guild_user" json:"user_id"`
	Nickname  string    `gorm:"type:varchar(64)" json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
}

func (GuildMember) TableName() string {
	return "members"
}

// Role 角色，Permissions 为权限位图
type Role struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	GuildID     int64     `gorm:"not null;index" json:"guild_id"`
	Name        string    `gorm:"type:varchar(64)" json:"name"`
	Permissions uint64    `gorm:"not null;default:0" json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Role) TableName() string {
	return "roles"
}

// MemberRole 成员与角色的中间表
type MemberRole struct {
	GuildMemberID int64 `gorm:"primaryKey" json:"guild_member_id"`
	RoleID        int64 `gorm:"primaryKey" json:"role_id"`
}

func (MemberRole) TableName() string {
	return "member_roles"
}
