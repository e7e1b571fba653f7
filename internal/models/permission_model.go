package models

// 角色权限位，Role.Permissions 的第 N 位对应下列权限
const (
	PermissionAdministrator uint = iota // 拥有全部权限
	PermissionManageGuild
	PermissionManageAutomod
	PermissionBypassAutomod
	PermissionKickMembers
	PermissionBanMembers
)
