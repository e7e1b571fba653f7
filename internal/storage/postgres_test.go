package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Gopher0727/automod/config"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(&config.PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "automod"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=automod sslmode=disable", dsn)
}

func TestMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, table := range []string{"guilds", "channels", "members", "roles", "member_roles", "messages", "bans", "automod_triggers", "automod_actions", "automod_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	// 重复迁移是幂等的
	require.NoError(t, Migrate(db))
}
