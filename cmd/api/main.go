package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-ats-backend/config"
	_ "go-ats-backend/docs" // Important for Swagger
	v1 "go-ats-backend/internal/delivery/http/v1"
	"go-ats-backend/internal/domain"
	"go-ats-backend/internal/repository/postgres"
	"go-ats-backend/internal/usecase"
	"go-ats-backend/pkg/database"
	"go-ats-backend/pkg/logger"
	"go-ats-backend/pkg/redis"
	"go-ats-backend/pkg/security/antivirus"
	"go-ats-backend/pkg/storage"
	"go-ats-backend/pkg/validation"

	goredis "github.com/redis/go-redis/v9"
)

// @title           Applicant Tracking System API
// @version         1.0
// @description     Candidate intake and listing for the applicant tracking system.
// @host            localhost:3010
// @BasePath        /api
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Logger
	logger.Init(cfg.LogLevel)
	logger.Log.Info("Starting ATS backend", "port", cfg.Port, "storage", cfg.StorageDriver)

	ctx := context.Background()

	// 3. Setup Database
	dbPool, err := database.NewPostgresConnection(ctx, cfg.DBUrl)
	if err != nil {
		logger.Log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Setup Repositories
	candidateRepo := postgres.NewCandidateRepository(dbPool)

	// 5. Setup CV Storage
	cvStorage, err := newCVStorage(ctx, cfg)
	if err != nil {
		logger.Log.Error("Failed to set up CV storage", "error", err)
		os.Exit(1)
	}

	// 6. Setup Redis (optional)
	redisClient := connectRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// 7. Setup CV Scanner (optional)
	var scanner antivirus.Scanner
	healthChecks := map[string]usecase.HealthCheck{
		"database": dbPool.Ping,
	}
	if cfg.ClamAVAddress != "" {
		clamav := antivirus.NewClamAVScanner(cfg.ClamAVAddress, 30*time.Second)
		scanner = clamav
		healthChecks["clamav"] = clamav.Ping
		logger.Log.Info("CV malware scanning enabled", "address", cfg.ClamAVAddress)
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	// 8. Setup UseCases
	candidateUC := usecase.NewCandidateUsecase(candidateRepo, cvStorage, validation.New())
	healthUC := usecase.NewHealthUsecase(healthChecks)

	// 9. Setup Router
	router := v1.NewRouter(v1.RouterDeps{
		CandidateUC: candidateUC,
		HealthUC:    healthUC,
		Scanner:     scanner,
		Config:      cfg,
		Redis:       redisClient,
	})

	// 10. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Listen failed", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}

	logger.Log.Info("Server exiting")
}

func newCVStorage(ctx context.Context, cfg *config.Config) (domain.FileStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverLocal:
		local := storage.NewLocalStorage(cfg.UploadDir)
		if err := local.EnsureDir(); err != nil {
			return nil, err
		}
		return local, nil
	case config.StorageDriverS3:
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Provider:        storage.S3Provider(cfg.S3Provider),
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return storage.NewS3Storage(client, cfg.S3Bucket, "cvs"), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

// connectRedis returns nil when Redis is not configured or unreachable;
// rate limiting then falls back to in-memory counters.
func connectRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	client, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, Password: cfg.RedisPassword})
	if err != nil {
		logger.Log.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
		return nil
	}
	logger.Log.Info("Connected to Redis")
	return client
}
