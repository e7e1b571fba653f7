package services

import (
	"context"
	"errors"
	"time"

	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
)

// JoinHandler 成员加入后的回调，生产环境为自动审核引擎
type JoinHandler interface {
	HandleMemberJoin(ctx context.Context, member *models.GuildMember)
}

type GuildService struct {
	GuildRepo *repositories.GuildRepository
	ids       IDGenerator
	joins     JoinHandler
}

func NewGuildService(guildRepo *repositories.GuildRepository, ids IDGenerator, joins JoinHandler) *GuildService {
	return &GuildService{GuildRepo: guildRepo, ids: ids, joins: joins}
}

type CreateGuildRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// CreateGuild 创建一个新的 Guild
// 实现逻辑：生成 Guild 与所有者成员的 ID，事务内写入 Guild 和所有者的成员记录
func (s *GuildService) CreateGuild(ctx context.Context, ownerID int64, req *CreateGuildRequest) (*models.Guild, error) {
	guildID, err := s.ids.NextID()
	if err != nil {
		return nil, err
	}
	memberID, err := s.ids.NextID()
	if err != nil {
		return nil, err
	}
	guild := &models.Guild{ID: guildID, OwnerID: ownerID, Topic: req.Topic}
	owner := &models.GuildMember{ID: memberID}
	if err := s.GuildRepo.CreateGuild(ctx, guild, owner); err != nil {
		return nil, err
	}
	return guild, nil
}

type CreateChannelRequest struct {
	Name     string `json:"name" binding:"required"`
	Position int    `json:"position"`
}

// CreateChannel 在 Guild 下创建频道
func (s *GuildService) CreateChannel(ctx context.Context, guildID int64, req *CreateChannelRequest) (*models.Channel, error) {
	if _, err := s.getGuild(ctx, guildID); err != nil {
		return nil, err
	}
	id, err := s.ids.NextID()
	if err != nil {
		return nil, err
	}
	channel := &models.Channel{ID: id, GuildID: guildID, Name: req.Name, Position: req.Position}
	if err := s.GuildRepo.CreateChannel(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Permissions uint64 `json:"permissions"`
}

// CreateRole 在 Guild 下创建角色
func (s *GuildService) CreateRole(ctx context.Context, guildID int64, req *CreateRoleRequest) (*models.Role, error) {
	if _, err := s.getGuild(ctx, guildID); err != nil {
		return nil, err
	}
	id, err := s.ids.NextID()
	if err != nil {
		return nil, err
	}
	role := &models.Role{ID: id, GuildID: guildID, Name: req.Name, Permissions: req.Permissions}
	if err := s.GuildRepo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// JoinGuild 用户加入 Guild
// 实现逻辑：检查 Guild 存在、用户未被封禁且尚未加入，写入成员记录后触发加入回调
func (s *GuildService) JoinGuild(ctx context.Context, guildID, userID int64) (*models.GuildMember, error) {
	if _, err := s.getGuild(ctx, guildID); err != nil {
		return nil, err
	}

	banned, err := s.GuildRepo.IsBanned(ctx, guildID, userID, time.Now())
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, ErrUserBanned
	}

	_, err = s.GuildRepo.GetMemberByUser(ctx, guildID, userID)
	if err == nil {
		return nil, ErrAlreadyMember
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, err
	}
	member := &models.GuildMember{ID: id, GuildID: guildID, UserID: userID}
	if err := s.GuildRepo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	if s.joins != nil {
		s.joins.HandleMemberJoin(ctx, member)
	}
	return member, nil
}

// GetDefaultChannel 获取系统消息使用的频道，Guild 没有频道时返回 (nil, nil)
func (s *GuildService) GetDefaultChannel(ctx context.Context, guildID int64) (*models.Channel, error) {
	channel, err := s.GuildRepo.GetDefaultChannel(ctx, guildID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrGuildNotFound
	}
	return channel, err
}

// GetMemberByUser 获取用户在 Guild 中的成员身份
func (s *GuildService) GetMemberByUser(ctx context.Context, guildID, userID int64) (*models.GuildMember, error) {
	member, err := s.GuildRepo.GetMemberByUser(ctx, guildID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotMember
	}
	return member, err
}

func (s *GuildService) getGuild(ctx context.Context, guildID int64) (*models.Guild, error) {
	guild, err := s.GuildRepo.GetGuild(ctx, guildID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrGuildNotFound
	}
	return guild, err
}
