package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"IntentChain/internal/api"
	"IntentChain/internal/classify"
	"IntentChain/internal/classify/openai"
	"IntentChain/internal/config"
	"IntentChain/internal/conversation"
	"IntentChain/internal/events"
	"IntentChain/internal/executor"
	"IntentChain/internal/history"
	"IntentChain/internal/intent"
	"IntentChain/internal/ledger"
	"IntentChain/internal/resolve"
	"IntentChain/internal/session"
	"IntentChain/pkg/logger"
)

// main 是 IntentChain 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("intentchaind 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env 存放操作员凭证，缺失时回退到进程环境变量。
	_ = godotenv.Load()

	configPath := os.Getenv("INTENTCHAIN_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "intentchain.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	directory, err := intent.LoadDirectory(cfg.Directory.Path)
	if err != nil {
		return err
	}

	gateway := ledger.NewGateway()
	if err := gateway.Initialize(ledger.Config{
		Network:        cfg.Ledger.Network,
		OperatorID:     os.Getenv(cfg.Ledger.OperatorIDEnv),
		OperatorKey:    os.Getenv(cfg.Ledger.OperatorKeyEnv),
		ReceiptTimeout: time.Duration(cfg.Ledger.ReceiptTimeoutSeconds) * time.Second,
		SwapRouter:     cfg.Ledger.SwapRouter,
	}); err != nil {
		return err
	}
	defer func() { _ = gateway.Close() }()

	classifier, err := createClassifier(cfg)
	if err != nil {
		return err
	}

	sessions, err := createSessionStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sessions.Close() }()

	historyRepo, err := createHistoryRepo(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = historyRepo.Close() }()

	publisher, err := createPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	validator := intent.NewValidator(directory)
	resolver := resolve.New(validator, resolve.WithMaxRounds(cfg.Sessions.MaxRounds))
	exec := executor.New(gateway, directory)
	orch := conversation.New(classifier, validator, resolver, sessions, exec, historyRepo, publisher)

	server := api.NewServer(cfg.Server.Address, orch, exec, gateway, directory, historyRepo)
	logger.L().Info("intentchaind 启动",
		slog.String("address", cfg.Server.Address),
		slog.String("network", cfg.Ledger.Network),
		slog.String("operator", gateway.Operator()),
	)
	return server.Start(ctx)
}

func createClassifier(cfg *config.Config) (classify.Classifier, error) {
	switch cfg.Classifier.Provider {
	case "", "openai":
		apiKey := cfg.Classifier.OpenAI.APIKey
		if apiKey == "" && cfg.Classifier.OpenAI.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.Classifier.OpenAI.APIKeyEnv)
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.Classifier.OpenAI.BaseURL,
			Model:   cfg.Classifier.OpenAI.Model,
			Timeout: time.Duration(cfg.Classifier.OpenAI.TimeoutSeconds) * time.Second,
		})
	default:
		return nil, errors.New("不支持的分类服务: " + cfg.Classifier.Provider)
	}
}

func createSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Sessions.Driver {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStore(session.RedisStoreConfig{
			Address:   cfg.Sessions.Redis.Address,
			Password:  cfg.Sessions.Redis.Password,
			DB:        cfg.Sessions.Redis.DB,
			KeyPrefix: cfg.Sessions.Redis.KeyPrefix,
			TTL:       time.Duration(cfg.Sessions.Redis.TTLSeconds) * time.Second,
		})
	default:
		return nil, errors.New("不支持的会话存储: " + cfg.Sessions.Driver)
	}
}

func createHistoryRepo(cfg *config.Config) (history.Repository, error) {
	switch cfg.History.Driver {
	case "", "file":
		return history.NewFileRepository(cfg.Runtime.DataDir)
	case "mysql":
		return history.NewSQLRepository(cfg.History.DSN)
	default:
		return nil, errors.New("不支持的历史存储: " + cfg.History.Driver)
	}
}

func createPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "", "none":
		return events.NopPublisher{}, nil
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:      cfg.Events.RabbitMQ.URL,
			Exchange: cfg.Events.RabbitMQ.Exchange,
		})
	default:
		return nil, errors.New("不支持的事件发布端: " + cfg.Events.Driver)
	}
}
