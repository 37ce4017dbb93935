package models

import "gorm.io/gorm"

const (
	RoleContributor = "contributor" // 可以写入（创建、修改、删除箱子）
	RoleViewer      = "viewer"      // 只能读取（浏览箱子）
)

type User struct {
	gorm.Model

	// 基础信息
	Username string `gorm:"column:username;uniqueIndex"` // 邮箱用户名，全局唯一
	Role     string `gorm:"column:role"`                 // 角色： contributor 或 viewer
	Approved bool   `gorm:"column:approved"`             // 是否已由管理员批准，未批准的账号不能登录

	// 登录与授权认证相关
	Password string `gorm:"column:password"` // 密码，使用 argon2id 储存
}
