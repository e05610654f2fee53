package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"vecbridge/internal/ai"
	appsvc "vecbridge/internal/app"
	"vecbridge/internal/cache"
	"vecbridge/internal/chunker"
	"vecbridge/internal/config"
	"vecbridge/internal/model"
	mysqlClient "vecbridge/internal/platform/mysql"
	rabbitmqClient "vecbridge/internal/platform/rabbitmq"
	redisClient "vecbridge/internal/platform/redis"
	"vecbridge/internal/repository"
	"vecbridge/internal/vectorstore"
	"vecbridge/internal/worker"
)

type App struct {
	Config *config.Config
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Auth      *appsvc.AuthService
	Ingest    *appsvc.IngestService
	Retrieval *appsvc.RetrievalService

	ReingestWorker *worker.ReingestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.Document{}, &model.Chunk{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(mysqlDB)
	docRepo := repository.NewDocumentRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)

	aiClient := ai.NewClient(ai.Config{
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		EmbeddingModel:  cfg.Provider.EmbeddingModel,
		EmbeddingDim:    cfg.Provider.EmbeddingDim,
		CompletionModel: cfg.Provider.CompletionModel,
		MaxInputChars:   cfg.Provider.MaxInputChars,
		EmbedTimeout:    cfg.EmbedTimeout(),
		CompleteTimeout: cfg.CompleteTimeout(),
		MaxRetries:      cfg.Provider.MaxRetries,
		RetryBase:       time.Duration(cfg.Provider.RetryBaseMillis) * time.Millisecond,
	})

	splitter, err := chunker.New(cfg.Chunking.MaxChunkSize, cfg.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("build chunker failed: %w", err)
	}

	metric, err := vectorstore.ParseMetric(cfg.Retrieval.Metric)
	if err != nil {
		return nil, err
	}
	searcher := vectorstore.NewSearcher(chunkRepo, metric, cfg.Provider.EmbeddingModel)

	embCache := cache.NewEmbeddingCache(redisCli, time.Duration(cfg.Redis.EmbeddingTTLSeconds)*time.Second)
	publisher := rabbitmqClient.NewReingestPublisher(mqConn, cfg.RabbitMQ.ReingestQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	ingestService := appsvc.NewIngestService(
		docRepo,
		chunkRepo,
		aiClient,
		embCache,
		publisher,
		splitter,
		cfg.Provider.EmbedBatchSize,
	)
	retrievalService := appsvc.NewRetrievalService(
		docRepo,
		searcher,
		aiClient,
		aiClient,
		cfg.Retrieval.DefaultTopK,
		cfg.Retrieval.MaxTopK,
		cfg.Retrieval.MaxContextChars,
	)

	reingestWorker := worker.NewReingestWorker(mqConn, func(ctx context.Context, tenantID uint, externalID string) error {
		_, err := ingestService.Resume(ctx, tenantID, externalID)
		return err
	}, cfg.RabbitMQ.ReingestQueue)
	if err := reingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start reingest worker failed: %w", err)
	}

	scheduleStaleDocuments(ctx, docRepo, publisher, cfg.Provider.EmbeddingModel)

	return &App{
		Config:         cfg,
		MySQL:          mysqlDB,
		Redis:          redisCli,
		MQConn:         mqConn,
		Auth:           authService,
		Ingest:         ingestService,
		Retrieval:      retrievalService,
		ReingestWorker: reingestWorker,
		StartedAt:      time.Now(),
	}, nil
}

// scheduleStaleDocuments queues a re-embedding job for every document whose
// chunks were produced by a model other than the configured one. Runs once at
// startup; failures are logged, not fatal.
func scheduleStaleDocuments(ctx context.Context, docRepo *repository.DocumentRepository, publisher *rabbitmqClient.ReingestPublisher, currentModel string) {
	ids, err := docRepo.StaleDocumentIDs(ctx, currentModel)
	if err != nil {
		log.Printf("scan stale documents failed: %v", err)
		return
	}
	for _, id := range ids {
		doc, err := docRepo.GetByID(ctx, id)
		if err != nil || doc == nil {
			continue
		}
		if err := publisher.ScheduleReingest(ctx, doc.ExternalID, doc.TenantID); err != nil {
			log.Printf("schedule stale document %s failed: %v", doc.ExternalID, err)
		}
	}
	if len(ids) > 0 {
		log.Printf("scheduled %d stale document(s) for re-embedding", len(ids))
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.ReingestWorker != nil {
		a.ReingestWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
