package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tush00nka/phonechat/internal/config"
	"tush00nka/phonechat/internal/handler"
	"tush00nka/phonechat/internal/middleware"
	"tush00nka/phonechat/internal/pkg/auth"
	"tush00nka/phonechat/internal/pkg/sms"
	"tush00nka/phonechat/internal/pkg/storage"
	"tush00nka/phonechat/internal/pkg/tg"
	"tush00nka/phonechat/internal/queue"
	"tush00nka/phonechat/internal/repository"
	"tush00nka/phonechat/internal/repository/memory"
	"tush00nka/phonechat/internal/service"
	"tush00nka/phonechat/internal/ws"
)

const presenceTTL = 2 * time.Minute

type repositories struct {
	users         repository.UserRepository
	messages      repository.MessageRepository
	verifications repository.VerificationRepository
	db            *sql.DB
}

func Run(cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(cfg)
	if err != nil {
		log.Fatal(err)
	}

	rdb, err := storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("Redis unavailable, continuing without it: %v", err)
		rdb = nil
	}

	var presence repository.PresenceRepository
	if rdb != nil {
		presence = repository.NewPresenceRepository(rdb, presenceTTL)
	}

	hub := ws.NewHub(presence)
	defer hub.Shutdown()

	var events service.EventPublisher = hub
	if rdb != nil {
		broker := repository.NewEventBroker(rdb)
		go func() {
			if err := broker.Run(ctx, hub.Dispatch); err != nil {
				log.Printf("Event broker stopped: %v", err)
			}
		}()
		events = broker
	}

	provider, err := newSMSProvider(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	mediaStorage, uploadDir, err := newMediaStorage(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	tokens := auth.NewTokenManager(cfg.JWTKey, cfg.TokenTTL)
	authService := service.NewAuthService(repos.users, repos.verifications, provider, tokens, service.AuthOptions{
		CodeTTL:  cfg.CodeTTL,
		HashCost: cfg.CodeHashCost,
	})
	userService := service.NewUserService(repos.users, repos.messages, presence)
	messageService := service.NewMessageService(repos.messages, repos.users, events)
	uploadService := service.NewUploadService(mediaStorage)

	authenticator := middleware.NewAuthenticator(authService)
	trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies())
	if err != nil {
		log.Fatal(err)
	}
	limiter := middleware.RateLimit(rdb, middleware.RateLimitOptions{
		Enabled:        cfg.RateLimitEnabled,
		Capacity:       cfg.RateLimitCapacity,
		Refill:         cfg.RateLimitRefill,
		Prefix:         "send-code",
		TrustedProxies: trusted,
	})
	phoneLimiter := middleware.NewLimiter(rdb, middleware.RateLimitOptions{
		Enabled:  cfg.RateLimitEnabled,
		Capacity: cfg.PhoneLimitCapacity,
		Refill:   cfg.RateLimitRefill,
		Prefix:   "send-code-phone",
	})

	var pinger handler.Pinger
	if repos.db != nil {
		pinger = repos.db
	}

	server := NewServer(
		ServerOptions{AllowedOrigins: cfg.AllowedOrigins(), UploadDir: uploadDir},
		handler.NewHealthHandler(pinger, rdb, uploadService, hub),
		handler.NewAuthHandler(authService, authenticator, handler.AuthHandlerOptions{
			SecureCookie: cfg.IsProduction(),
			TokenTTL:     cfg.TokenTTL,
			RateLimit:    limiter,
			PhoneLimit:   phoneLimiter,
		}),
		handler.NewUserHandler(userService, authenticator),
		handler.NewMessageHandler(messageService, authenticator),
		handler.NewChatHandler(messageService, authenticator),
		handler.NewUploadHandler(uploadService, authenticator),
		handler.NewWSHandler(hub, ws.NewUpgrader(cfg.AllowedOrigins(), !cfg.IsProduction()), authenticator),
	)

	if err := server.Run(ctx, cfg.ServerPort); err != nil {
		log.Fatal(err)
	}

	closeRedis(rdb)
}

func openRepositories(cfg *config.Config) (*repositories, error) {
	if cfg.DBDriver == "memory" {
		log.Println("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			users:         store.Users(),
			messages:      store.Messages(),
			verifications: store.Verifications(),
		}, nil
	}

	db, err := repository.NewDB(cfg.DBDriver, cfg.DSN(), !cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	return &repositories{
		users:         repository.NewUserRepository(db),
		messages:      repository.NewMessageRepository(db),
		verifications: repository.NewVerificationRepository(db),
		db:            sqlDB,
	}, nil
}

func newSMSProvider(ctx context.Context, cfg *config.Config) (sms.Provider, error) {
	switch cfg.SMSProvider {
	case "telegram":
		return newTelegramProvider(ctx, cfg)
	case "queue":
		if cfg.SMSQueueConsume {
			deliver, err := newDeliveryProvider(ctx, cfg)
			if err != nil {
				return nil, err
			}
			go queue.NewConsumer(cfg.AMQPURL, cfg.SMSQueue, deliver).Run(ctx)
			log.Printf("Consuming SMS jobs from %s", cfg.SMSQueue)
		}
		return sms.NewQueueProvider(cfg.AMQPURL, cfg.SMSQueue), nil
	default:
		return sms.NewLogProvider(), nil
	}
}

func newDeliveryProvider(ctx context.Context, cfg *config.Config) (sms.Provider, error) {
	if cfg.SMSQueueDeliver == "telegram" {
		return newTelegramProvider(ctx, cfg)
	}
	return sms.NewLogProvider(), nil
}

func newTelegramProvider(ctx context.Context, cfg *config.Config) (sms.Provider, error) {
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required for telegram delivery")
	}
	adapter, err := tg.NewTelegramAdapter(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to start telegram bot: %w", err)
	}
	go adapter.Run(ctx)
	return adapter, nil
}

func newMediaStorage(ctx context.Context, cfg *config.Config) (service.Storage, string, error) {
	if cfg.S3Enabled() {
		s3Storage, err := service.NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		return s3Storage, "", nil
	}

	local, err := service.NewLocalStorage(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}

func closeRedis(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		log.Printf("Failed to close redis: %v", err)
	}
}
