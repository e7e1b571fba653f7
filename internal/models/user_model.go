package models

// SystemUserID 系统保留账号，自动审核的回复都以它的身份发出。
// 该账号发出的消息不会被扫描，避免自动回复再次触发规则形成死循环。
// 负数不会与自增主键或 snowflake ID 冲突。
const SystemUserID int64 = -1

// IsSystemUser 判断是否为系统保留账号
func IsSystemUser(userID int64) bool {
	return userID == SystemUserID
}
