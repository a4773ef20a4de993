package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	chatapp "chat_core_service/internal/chat/app"
	"chat_core_service/internal/chat/repository"
	"chat_core_service/internal/chat/router"
	memberapp "chat_core_service/internal/member/app"
	memberrepo "chat_core_service/internal/member/repository"
	"chat_core_service/pkg/config"
	"chat_core_service/pkg/database"
	"chat_core_service/pkg/logger"
	testtool "chat_core_service/pkg/test_tool"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.ChatCore](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	testtool.StartPprof()

	// 1. PostgreSQL: chat 資料表走 gorm, member 查詢走 pgx pool
	sqlParams := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	conn := database.Connection{
		ConnectStr:    sqlParams,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	}

	db, err := database.NewGormConnection(conn)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to postgreSQL database after retries",
			zap.String("address", fmt.Sprintf("[%s]", sqlParams)),
			zap.Error(err),
		)
	}

	pool, err := database.NewDatabaseConnection(conn)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to postgreSQL database after retries",
			zap.String("address", fmt.Sprintf("[%s]", sqlParams)),
			zap.Error(err),
		)
	}
	defer pool.Close()

	// 2. Redis (Pub/Sub)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 3. Kafka 事件流, 沒設定 broker 就只走 redis
	notifier := repository.NewRedisKafkaNotifier(redisClient, nil)
	if len(cfg.Kafka.Brokers) > 0 {
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect kafka err : %v", err))
		}
		defer writer.Close()
		notifier = repository.NewRedisKafkaNotifier(redisClient, writer)
	}

	// 4. 初始化 Store / Repository
	store := repository.NewGormStore(db)
	if err := store.AutoMigrate(); err != nil {
		logger.Log.Fatal(fmt.Sprintf("migrate chat tables err : %v", err))
	}
	repos := store.Repos()
	identity := memberapp.NewIdentityUseCase(memberrepo.NewMemberRepository(pool))

	// 5. 初始化 UseCases
	groupUC := chatapp.NewGroupUseCase(repos, store, identity, notifier)
	conversationUC := chatapp.NewConversationUseCase(repos, store, identity, notifier, groupUC)
	messageUC := chatapp.NewMessageUseCase(repos, identity, notifier)
	readTrackerUC := chatapp.NewReadTrackerUseCase(repos, store)
	handler := chatapp.NewChatHTTPHandler(conversationUC, groupUC, messageUC, readTrackerUC)

	// 6. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	r.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	router.RegisterRoutes(r, handler)

	port := ":" + cfg.Port
	log.Printf("Chat Core Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
