package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
)

const (
	maxContentLength = 5000
	maxHistoryLimit  = 100
)

// MessageScanner 消息发送前的审核，返回 false 表示拦截
type MessageScanner interface {
	ScanMessage(ctx context.Context, msg *models.Message, member *models.GuildMember) bool
}

// RecentRecorder 记录频道最近的消息，供刷屏检测使用
type RecentRecorder interface {
	Push(ctx context.Context, msg *models.Message) error
}

// MessageService 消息服务
type MessageService struct {
	messageRepo *repositories.MessageRepository
	guildRepo   *repositories.GuildRepository
	recent      RecentRecorder
	scanner     MessageScanner
	ids         IDGenerator
	logger      *zap.Logger
}

// NewMessageService 创建消息服务实例，recent 与 scanner 可以为 nil
func NewMessageService(
	messageRepo *repositories.MessageRepository,
	guildRepo *repositories.GuildRepository,
	recent RecentRecorder,
	scanner MessageScanner,
	ids IDGenerator,
	logger *zap.Logger,
) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		messageRepo: messageRepo,
		guildRepo:   guildRepo,
		recent:      recent,
		scanner:     scanner,
		ids:         ids,
		logger:      logger,
	}
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	ChannelID int64  `json:"channel_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

// SendMessage 成员在 Guild 频道发送消息
// 实现逻辑：校验内容、频道归属与成员身份，先经过自动审核，放行后落库并写入频道最近消息窗口
func (s *MessageService) SendMessage(ctx context.Context, guildID, userID int64, req *SendMessageRequest) (*models.Message, error) {
	if strings.TrimSpace(req.Content) == "" || len(req.Content) > maxContentLength {
		return nil, ErrInvalidContent
	}

	member, err := s.guildRepo.GetMemberByUser(ctx, guildID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotMember
	}
	if err != nil {
		return nil, err
	}

	if err := s.checkChannel(ctx, guildID, req.ChannelID); err != nil {
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, err
	}
	memberID := member.ID
	msg := &models.Message{
		ID:             id,
		GuildID:        &guildID,
		ChannelID:      req.ChannelID,
		SenderID:       userID,
		AuthorMemberID: &memberID,
		Content:        req.Content,
		CreatedAt:      time.Now(),
	}

	if s.scanner != nil && !s.scanner.ScanMessage(ctx, msg, member) {
		return nil, ErrMessageBlocked
	}
	if err := s.store(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListChannelMessages 成员查看频道最近的消息（含系统回复），按时间倒序
func (s *MessageService) ListChannelMessages(ctx context.Context, guildID, userID, channelID int64, limit int) ([]models.Message, error) {
	if _, err := s.guildRepo.GetMemberByUser(ctx, guildID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotMember
		}
		return nil, err
	}
	if err := s.checkChannel(ctx, guildID, channelID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.messageRepo.GetChannelMessages(ctx, channelID, limit)
}

func (s *MessageService) checkChannel(ctx context.Context, guildID, channelID int64) error {
	_, err := s.guildRepo.GetChannel(ctx, guildID, channelID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrChannelNotFound
	}
	return err
}

// PostMessage 直接发布一条消息，不经过审核
// 自动审核的回复走这里，发送者为系统账号
func (s *MessageService) PostMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == 0 {
		id, err := s.ids.NextID()
		if err != nil {
			return err
		}
		msg.ID = id
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return s.store(ctx, msg)
}

func (s *MessageService) store(ctx context.Context, msg *models.Message) error {
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return err
	}
	if s.recent == nil {
		return nil
	}
	// 窗口只影响刷屏检测，写失败不影响消息本身
	if err := s.recent.Push(ctx, msg); err != nil {
		s.logger.Warn("push message to recent window", zap.Int64("message_id", msg.ID), zap.Error(err))
	}
	return nil
}
