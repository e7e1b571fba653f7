package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[server]
port = 9090
mode = "debug"

[postgres]
host = "db"
port = "5432"
user = "automod"
dbname = "automod"

[kafka]
brokers = ["kafka-1:9092", "kafka-2:9092"]
consumer_group = "automod-nodes"

[automod]
spam_threshold = 7
action_timeout = "2s"
`

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("reads file values and keeps defaults for the rest", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, sampleConfig))
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Server.Mode)
		assert.Equal(t, "db", cfg.Postgres.Host)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, "automod.changes", cfg.Kafka.Topic)
		assert.Equal(t, "automod-nodes", cfg.Kafka.ConsumerGroup)
		assert.Equal(t, 7, cfg.Automod.SpamThreshold)
		assert.Equal(t, 2*time.Second, cfg.Automod.ActionTimeout)
		assert.Equal(t, 10*time.Second, cfg.Automod.SpamWindow)
		assert.Equal(t, 50, cfg.Automod.MaxPageSize)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("AUTOMOD_SERVER_PORT", "7070")

		cfg, err := LoadConfig(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.Automod.SpamThreshold)
	assert.Equal(t, 10*time.Second, cfg.Automod.SpamWindow)
	assert.Equal(t, 16, cfg.WorkerPool.Size)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 120, cfg.RateLimit.MessagesPerMinute)
	assert.True(t, cfg.RateLimit.FailOpen)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}
