package services

import "errors"

var (
	ErrGuildNotFound   = errors.New("服务器不存在")
	ErrUserNotMember   = errors.New("用户不是该服务器成员")
	ErrAlreadyMember   = errors.New("用户已经是该服务器成员")
	ErrUserBanned      = errors.New("用户已被该服务器封禁")
	ErrIssuerNotMember = errors.New("封禁发起人不是该服务器成员")
	ErrMessageBlocked  = errors.New("消息被自动审核拦截")
	ErrInvalidContent  = errors.New("消息内容无效")
	ErrChannelNotFound = errors.New("频道不存在")
)

// IDGenerator 生成全局唯一的 int64 ID，生产环境为 snowflake
type IDGenerator interface {
	NextID() (int64, error)
}
