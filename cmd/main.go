package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/automod/config"
	"github.com/Gopher0727/automod/internal/automod"
	"github.com/Gopher0727/automod/internal/handlers"
	"github.com/Gopher0727/automod/internal/pkg/kafka"
	redispkg "github.com/Gopher0727/automod/internal/pkg/redis"
	"github.com/Gopher0727/automod/internal/repositories"
	"github.com/Gopher0727/automod/internal/routers"
	"github.com/Gopher0727/automod/internal/services"
	"github.com/Gopher0727/automod/internal/storage"
	"github.com/Gopher0727/automod/internal/utils"
	logger "github.com/Gopher0727/automod/middleware/log"
	"github.com/Gopher0727/automod/utils/ratelimit"
	"github.com/Gopher0727/automod/utils/snowflake"
)

func main() {
	configPath := flag.String("config", "./config.toml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLogger.Close()
	lg := appLogger.Component("main")

	// 初始化 PostgreSQL
	db, err := storage.InitPostgres(&cfg.Postgres)
	if err != nil {
		lg.Fatal("postgres 初始化失败", zap.Error(err))
	}
	if err := storage.Migrate(db); err != nil {
		lg.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 初始化 Redis
	redisClient, err := redispkg.NewClient(&cfg.Redis)
	if err != nil {
		lg.Fatal("redis 初始化失败", zap.Error(err))
	}
	defer redisClient.Close()
	window := redisClient.MessageWindow(&cfg.Automod, appLogger.Component("window"))

	// 初始化 Kafka Producer，不可用时规则变更不再广播，其余功能正常
	var notifier automod.Notifier
	producer, err := kafka.NewProducer(&cfg.Kafka)
	if err != nil {
		lg.Warn("Kafka 生产者初始化失败，规则变更通知已关闭", zap.Error(err))
	} else {
		defer producer.Close()
		changes := kafka.NewChangeNotifier(producer, cfg.Kafka.Topic, cfg.Server.NodeID, cfg.Kafka.MaxRetries, appLogger.Component("notifier"))
		defer changes.Close()
		notifier = changes
	}

	ids, err := snowflake.NewGenerator(cfg.Server.NodeID)
	if err != nil {
		lg.Fatal("snowflake 初始化失败", zap.Error(err))
	}

	// 处置动作在协程池中异步执行
	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appLogger.Component("pool"))
	pool.Start()
	defer pool.Stop()

	// 初始化仓储层
	guildRepo := repositories.NewGuildRepository(db)
	ledger := repositories.NewAutomodLogRepository(db)
	permissions := services.NewPermissionService(guildRepo)

	engine := automod.NewEngine(automod.Options{
		Rules:         repositories.NewAutomodRepository(db),
		Ledger:        ledger,
		Permissions:   permissions,
		Window:        window,
		Scopes:        services.NewScopeProvider(db, window, ids, appLogger.Component("scope")),
		Notifier:      notifier,
		Executor:      pool,
		Matcher:       automod.NewMatcher(cfg.Automod.SpamWindow, cfg.Automod.SpamThreshold),
		Logger:        appLogger.Component("automod"),
		ActionTimeout: cfg.Automod.ActionTimeout,
		MaxPageSize:   cfg.Automod.MaxPageSize,
	})

	// 订阅其他节点的规则变更；每个节点独立成组，确保收到全部事件
	if cfg.Kafka.ConsumerGroup != "" {
		groupID := fmt.Sprintf("%s-%d", cfg.Kafka.ConsumerGroup, cfg.Server.NodeID)
		handler := kafka.NewInvalidationHandler(engine.Cache(), cfg.Server.NodeID, appLogger.Component("invalidation"))
		consumer, err := kafka.NewConsumer(&cfg.Kafka, groupID, []string{cfg.Kafka.Topic}, handler, appLogger.Component("consumer"))
		if err != nil {
			lg.Warn("Kafka 消费者初始化失败，跨节点缓存失效已关闭", zap.Error(err))
		} else {
			consumer.Start(context.Background())
			defer func() {
				if err := consumer.Stop(); err != nil {
					lg.Warn("关闭 Kafka 消费者失败", zap.Error(err))
				}
			}()
		}
	}

	// 初始化服务层
	guildService := services.NewGuildService(guildRepo, ids, engine)
	memberService := services.NewMemberService(guildRepo)
	messageService := services.NewMessageService(
		repositories.NewMessageRepository(db), guildRepo, window, engine, ids, appLogger.Component("messages"),
	)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	routers.SetupRoutes(r, routers.Deps{
		Guilds:      handlers.NewGuildHandler(guildService, memberService),
		Messages:    handlers.NewMessageHandler(messageService),
		Automod:     handlers.NewAutomodHandler(engine, ledger),
		Members:     guildService,
		Permissions: permissions,
		Limiter:     ratelimit.NewLimiter(redisClient.GetClient(), appLogger.Component("ratelimit"), cfg.RateLimit.FailOpen),
		RateLimit:   cfg.RateLimit,
		Logger:      appLogger.Component("http"),
		Health: func(c *gin.Context) error {
			if err := redisClient.Ping(c.Request.Context()); err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(c.Request.Context())
		},
	})

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		lg.Info("正在启动服务器", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("启动服务器失败", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("正在关闭服务器")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("关闭服务器失败", zap.Error(err))
	}
}
