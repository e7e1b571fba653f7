package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/automod/internal/models"
)

type GuildRepository struct {
	db *gorm.DB
}

func NewGuildRepository(db *gorm.DB) *GuildRepository {
	return &GuildRepository{db: db}
}

// CreateGuild 创建 Guild 并将所有者添加为成员
// 实现逻辑：开启事务，创建 Guild 记录，然后把 owner 写入 members 表
func (r *GuildRepository) CreateGuild(ctx context.Context, guild *models.Guild, owner *models.GuildMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(guild).Error; err != nil {
			return err
		}
		owner.GuildID = guild.ID
		owner.UserID = guild.OwnerID
		return tx.Create(owner).Error
	})
}

// GetGuild 根据 ID 获取 Guild
func (r *GuildRepository) GetGuild(ctx context.Context, id int64) (*models.Guild, error) {
	var guild models.Guild
	if err := r.db.WithContext(ctx).First(&guild, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &guild, nil
}

// CreateChannel 创建频道
func (r *GuildRepository) CreateChannel(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

// GetChannel 获取 Guild 下的频道，频道不属于该 Guild 时返回 ErrNotFound
func (r *GuildRepository) GetChannel(ctx context.Context, guildID, channelID int64) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).Where("id = ? AND guild_id = ?", channelID, guildID).First(&channel).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &channel, nil
}

// GetDefaultChannel 获取 Guild 的默认频道
// 实现逻辑：优先使用 Guild 配置的 default_channel_id，否则取排序最靠前的频道；没有频道返回 nil
func (r *GuildRepository) GetDefaultChannel(ctx context.Context, guildID int64) (*models.Channel, error) {
	guild, err := r.GetGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	var channel models.Channel
	if guild.DefaultChannelID != nil {
		err := db.Where("id = ? AND guild_id = ?", *guild.DefaultChannelID, guildID).First(&channel).Error
		if err == nil {
			return &channel, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	err = db.Where("guild_id = ?", guildID).Order("position asc, id asc").First(&channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// AddMember 添加成员
func (r *GuildRepository) AddMember(ctx context.Context, member *models.GuildMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// GetMember 根据成员 ID 获取成员
func (r *GuildRepository) GetMember(ctx context.Context, memberID int64) (*models.GuildMember, error) {
	var member models.GuildMember
	if err := r.db.WithContext(ctx).First(&member, memberID).Error; err != nil {
		return nil, notFound(err)
	}
	return &member, nil
}

// GetMemberByUser 根据 (guild_id, user_id) 获取成员
func (r *GuildRepository) GetMemberByUser(ctx context.Context, guildID, userID int64) (*models.GuildMember, error) {
	var member models.GuildMember
	err := r.db.WithContext(ctx).Where("guild_id = ? AND user_id = ?", guildID, userID).First(&member).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &member, nil
}

// RemoveMember 移除成员及其角色关联
func (r *GuildRepository) RemoveMember(ctx context.Context, memberID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return removeMember(tx, memberID)
	})
}

func removeMember(tx *gorm.DB, memberID int64) error {
	if err := tx.Where("guild_member_id = ?", memberID).Delete(&models.MemberRole{}).Error; err != nil {
		return err
	}
	res := tx.Delete(&models.GuildMember{}, memberID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRole 创建角色
func (r *GuildRepository) CreateRole(ctx context.Context, role *models.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

// AddMemberRole 给成员授予角色，已拥有时不报错
// 实现逻辑：成员和角色都必须属于 guildID，否则返回 ErrNotFound
func (r *GuildRepository) AddMemberRole(ctx context.Context, guildID, memberID, roleID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := belongsToGuild(tx, guildID, memberID, roleID); err != nil {
			return err
		}
		link := models.MemberRole{GuildMemberID: memberID, RoleID: roleID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	})
}

// RemoveMemberRole 撤销成员的角色，未拥有时不报错
func (r *GuildRepository) RemoveMemberRole(ctx context.Context, guildID, memberID, roleID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := belongsToGuild(tx, guildID, memberID, roleID); err != nil {
			return err
		}
		return tx.Where("guild_member_id = ? AND role_id = ?", memberID, roleID).Delete(&models.MemberRole{}).Error
	})
}

func belongsToGuild(tx *gorm.DB, guildID, memberID, roleID int64) error {
	var count int64
	if err := tx.Model(&models.GuildMember{}).Where("id = ? AND guild_id = ?", memberID, guildID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	if err := tx.Model(&models.Role{}).Where("id = ? AND guild_id = ?", roleID, guildID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// MemberPermissions 返回成员所有角色的权限位图
func (r *GuildRepository) MemberPermissions(ctx context.Context, memberID int64) ([]uint64, error) {
	var perms []uint64
	err := r.db.WithContext(ctx).Model(&models.Role{}).
		Joins("JOIN member_roles ON member_roles.role_id = roles.id").
		Where("member_roles.guild_member_id = ?", memberID).
		Pluck("roles.permissions", &perms).Error
	return perms, err
}

// CreateBan 写入封禁记录，并在同一事务中移除被封禁用户的成员身份
func (r *GuildRepository) CreateBan(ctx context.Context, ban *models.Ban) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ban).Error; err != nil {
			return err
		}
		var member models.GuildMember
		err := tx.Where("guild_id = ? AND user_id = ?", ban.GuildID, ban.TargetID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return removeMember(tx, member.ID)
	})
}

// IsBanned 用户在 Guild 中是否存在未过期的封禁
func (r *GuildRepository) IsBanned(ctx context.Context, guildID, userID int64, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Ban{}).
		Where("guild_id = ? AND target_id = ?", guildID, userID).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&count).Error
	return count > 0, err
}
