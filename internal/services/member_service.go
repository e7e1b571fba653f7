package services

import (
	"context"
	"errors"

	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
)

// MemberService 成员与角色管理，供自动审核的踢出、角色类动作使用
type MemberService struct {
	guildRepo *repositories.GuildRepository
}

func NewMemberService(guildRepo *repositories.GuildRepository) *MemberService {
	return &MemberService{guildRepo: guildRepo}
}

// GetMember 成员不存在时返回 (nil, nil)
func (s *MemberService) GetMember(ctx context.Context, memberID int64) (*models.GuildMember, error) {
	member, err := s.guildRepo.GetMember(ctx, memberID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	return member, err
}

// RemoveMember 把成员移出 Guild
func (s *MemberService) RemoveMember(ctx context.Context, memberID int64) error {
	err := s.guildRepo.RemoveMember(ctx, memberID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUserNotMember
	}
	return err
}

func (s *MemberService) AddRole(ctx context.Context, guildID, memberID, roleID int64) error {
	return s.guildRepo.AddMemberRole(ctx, guildID, memberID, roleID)
}

func (s *MemberService) RemoveRole(ctx context.Context, guildID, memberID, roleID int64) error {
	return s.guildRepo.RemoveMemberRole(ctx, guildID, memberID, roleID)
}
