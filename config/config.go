package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	WorkerPool WorkerPoolConfig `mapstructure:"worker_pool"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Automod    AutomodConfig    `mapstructure:"automod"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	NodeID          int64         `mapstructure:"node_id"` // snowflake worker id
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`          // 规则变更通知
	ConsumerGroup  string   `mapstructure:"consumer_group"` // 为空时不订阅其他节点的变更
	MaxRetries     int      `mapstructure:"max_retries"`
	RetryBackoffMs int      `mapstructure:"retry_backoff_ms"`
}

type WorkerPoolConfig struct {
	Size      int `mapstructure:"size"`
	QueueSize int `mapstructure:"queue_size"`
}

// LoggingConfig holds logger settings: level (debug|info|warn|error|fatal),
// format (json|text), output (stdout|file).
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// AutomodConfig 自动审核引擎参数
type AutomodConfig struct {
	SpamWindow    time.Duration `mapstructure:"spam_window"`    // 刷屏检测的时间窗口
	SpamThreshold int           `mapstructure:"spam_threshold"` // 窗口内达到多少条即视为刷屏
	WindowSize    int           `mapstructure:"window_size"`    // 每个频道缓存的最近消息条数
	WindowTTL     time.Duration `mapstructure:"window_ttl"`     // 频道无新消息多久后丢弃窗口
	ActionTimeout time.Duration `mapstructure:"action_timeout"` // 单个动作的执行超时
	MaxPageSize   int           `mapstructure:"max_page_size"`
}

// RateLimitConfig 管理接口与发消息接口的限流（按用户，每分钟），0 表示不限流
type RateLimitConfig struct {
	MessagesPerMinute int  `mapstructure:"messages_per_minute"`
	AdminPerMinute    int  `mapstructure:"admin_per_minute"`
	FailOpen          bool `mapstructure:"fail_open"` // Redis 不可用时放行
}

const envPrefix = "AUTOMOD"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.node_id", 1)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("worker_pool.size", 16)
	v.SetDefault("worker_pool.queue_size", 1024)
	v.SetDefault("kafka.topic", "automod.changes")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff_ms", 100)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("automod.spam_window", 10*time.Second)
	v.SetDefault("automod.spam_threshold", 5)
	v.SetDefault("automod.window_size", 50)
	v.SetDefault("automod.window_ttl", time.Minute)
	v.SetDefault("automod.action_timeout", 5*time.Second)
	v.SetDefault("automod.max_page_size", 50)
	v.SetDefault("rate_limit.messages_per_minute", 120)
	v.SetDefault("rate_limit.admin_per_minute", 60)
	v.SetDefault("rate_limit.fail_open", true)
}

// Default 返回只包含默认值的配置，测试和没有配置文件的场景使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	// 默认值都是合法的，这里不会失败
	_ = v.Unmarshal(&config)
	return &config
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 将配置反序列化到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &config, nil
}
