package services

import (
	"context"
	"time"

	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
)

// BanService 封禁服务
type BanService struct {
	guildRepo *repositories.GuildRepository
	ids       IDGenerator
}

func NewBanService(guildRepo *repositories.GuildRepository, ids IDGenerator) *BanService {
	return &BanService{guildRepo: guildRepo, ids: ids}
}

// CreateBan 以 issuer 的身份封禁用户
// 实现逻辑：发起人必须是同一 Guild 的成员；生成 ID 后写入封禁记录并移除被封禁者的成员身份
func (s *BanService) CreateBan(ctx context.Context, ban *models.Ban, issuer *models.GuildMember) error {
	if issuer == nil || issuer.GuildID != ban.GuildID {
		return ErrIssuerNotMember
	}
	if ban.ID == 0 {
		id, err := s.ids.NextID()
		if err != nil {
			return err
		}
		ban.ID = id
	}
	ban.IssuerID = issuer.UserID
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = time.Now()
	}
	return s.guildRepo.CreateBan(ctx, ban)
}

// IsBanned 用户当前是否处于封禁中
func (s *BanService) IsBanned(ctx context.Context, guildID, userID int64) (bool, error) {
	return s.guildRepo.IsBanned(ctx, guildID, userID, time.Now())
}
