package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/automod/internal/automod"
	"github.com/Gopher0727/automod/internal/repositories"
)

// ScopeProvider 为每个自动审核动作创建一组独立的服务
// 每个 Scope 使用绑定动作上下文的新 gorm 会话，动作之间不共享会话状态
type ScopeProvider struct {
	db     *gorm.DB
	recent RecentRecorder
	ids    IDGenerator
	logger *zap.Logger
}

func NewScopeProvider(db *gorm.DB, recent RecentRecorder, ids IDGenerator, logger *zap.Logger) *ScopeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeProvider{db: db, recent: recent, ids: ids, logger: logger}
}

func (p *ScopeProvider) Scope(ctx context.Context) (*automod.Scope, error) {
	session := p.db.Session(&gorm.Session{NewDB: true, Context: ctx})
	guildRepo := repositories.NewGuildRepository(session)
	messageRepo := repositories.NewMessageRepository(session)

	return automod.NewScope(
		NewMemberService(guildRepo),
		NewBanService(guildRepo, p.ids),
		NewMessageService(messageRepo, guildRepo, p.recent, nil, p.ids, p.logger),
		NewGuildService(guildRepo, p.ids, nil),
		nil,
	), nil
}
