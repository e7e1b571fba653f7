package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Gopher0727/automod/internal/models"
	"github.com/Gopher0727/automod/internal/repositories"
	"github.com/Gopher0727/automod/internal/storage"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, storage.Migrate(db))
	return db
}

type seqIDs struct{ next atomic.Int64 }

func (s *seqIDs) NextID() (int64, error) {
	return s.next.Add(1) + 1000, nil
}

type recordedPushes struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (r *recordedPushes) Push(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, *msg)
	return nil
}

type fixture struct {
	db      *gorm.DB
	guilds  *repositories.GuildRepository
	ids     *seqIDs
	guild   *models.Guild
	ownerID int64
}

// newFixture 创建一个 Guild（所有者 user 100）
func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	f := &fixture{db: db, guilds: repositories.NewGuildRepository(db), ids: &seqIDs{}, ownerID: 100}
	svc := NewGuildService(f.guilds, f.ids, nil)
	guild, err := svc.CreateGuild(context.Background(), f.ownerID, &CreateGuildRequest{Topic: "t"})
	require.NoError(t, err)
	f.guild = guild
	return f
}
