package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Gopher0727/automod/config"
	"github.com/Gopher0727/automod/internal/models"
)

// InitPostgres 初始化 PostgreSQL 连接并迁移表结构
func InitPostgres(cfg *config.PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 获取底层 sql.DB 对象以设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取 sql.DB 失败: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 自动迁移全部模型，测试中的 sqlite 也走这里
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Guild{},
		&models.Channel{},
		&models.GuildMember{},
		&models.Role{},
		&models.MemberRole{},
		&models.Message{},
		&models.Ban{},
		&models.Trigger{},
		&models.Action{},
		&models.AutomodLog{},
	)
	if err != nil {
		return fmt.Errorf("模型迁移失败: %w", err)
	}
	return nil
}

// BuildDSN 构建PostgreSQL DSN
func BuildDSN(cfg *config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)
}
