package services

import (
	"context"
	"errors"

	"github.com/bits-and-blooms/bitset"

	"github.com/Gopher0727/automod/internal/automod"
	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
)

const (
	CapabilityManageAutomod = "manage_automod"
	CapabilityManageGuild   = "manage_guild"
	CapabilityKickMembers   = "kick_members"
	CapabilityBanMembers    = "ban_members"
)

// capabilityBits 能力名到权限位的映射，未登记的能力一律视为不具备
var capabilityBits = map[string]uint{
	automod.CapabilityBypassAutomod: models.PermissionBypassAutomod,
	CapabilityManageAutomod:         models.PermissionManageAutomod,
	CapabilityManageGuild:           models.PermissionManageGuild,
	CapabilityKickMembers:           models.PermissionKickMembers,
	CapabilityBanMembers:            models.PermissionBanMembers,
}

// PermissionService 根据成员角色的权限位判断能力
type PermissionService struct {
	guildRepo *repositories.GuildRepository
}

func NewPermissionService(guildRepo *repositories.GuildRepository) *PermissionService {
	return &PermissionService{guildRepo: guildRepo}
}

// HasCapability 判断成员是否具备某项能力
// 实现逻辑：Guild 所有者具备全部能力；否则合并成员全部角色的权限位，Administrator 位蕴含全部能力
func (s *PermissionService) HasCapability(ctx context.Context, member *models.GuildMember, capability string) (bool, error) {
	bit, ok := capabilityBits[capability]
	if !ok || member == nil {
		return false, nil
	}

	guild, err := s.guildRepo.GetGuild(ctx, member.GuildID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, ErrGuildNotFound
	}
	if err != nil {
		return false, err
	}
	if guild.OwnerID == member.UserID {
		return true, nil
	}

	perms, err := s.guildRepo.MemberPermissions(ctx, member.ID)
	if err != nil {
		return false, err
	}
	granted := effectivePermissions(perms)
	return granted.Test(models.PermissionAdministrator) || granted.Test(bit), nil
}

// effectivePermissions 合并多个角色的权限位
func effectivePermissions(perms []uint64) *bitset.BitSet {
	granted := bitset.New(64)
	for _, p := range perms {
		granted.InPlaceUnion(bitset.From([]uint64{p}))
	}
	return granted
}
