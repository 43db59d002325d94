package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"lexcase-backend/config"
	"lexcase-backend/handlers"
	"lexcase-backend/logger"
	"lexcase-backend/repository"
)

func main() {
	// Load .env file from project root (relative to cmd/server/)
	// Try current directory first, then project root
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg := config.Load()

	zapLogger, err := logger.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.Server.APITokenHash == "" {
		zapLogger.Fatal("API_TOKEN_HASH is not set; generate one with cmd/hash-token")
	}

	db, err := initPostgres(cfg.Server.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to initialize Postgres", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("Postgres connection established")

	recordRepo := repository.NewRecordRepository(db)
	recordHandler := handlers.NewRecordHandler(recordRepo, zapLogger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(handlers.BearerAuth(cfg.Server.APITokenHash))
	recordHandler.Register(api)

	zapLogger.Info("Server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}

func initPostgres(connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
