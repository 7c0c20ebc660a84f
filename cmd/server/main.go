package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"character-chat/internal/api"
	"character-chat/internal/config"
	"character-chat/internal/db"
	"character-chat/internal/gateway"
	"character-chat/internal/narrator"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	logger.Info("database migrated", zap.String("path", cfg.DBPath))

	observer := gateway.ZapObserver{Logger: logger}
	texts := gateway.NewTextGateway(cfg.TextEndpoints, gateway.WithTextObserver(observer))
	images := gateway.NewImageGateway(cfg.ImageEndpoints, gateway.WithImageObserver(observer))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	turns := narrator.New(texts, cfg.Narrator, rng, logger)

	router := api.NewRouter(database, turns, texts, images, cfg.StaticDir, logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("server shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Fatal("server forced to shutdown", zap.Error(err))
		}

		close(done)
	}()

	logger.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("static_dir", cfg.StaticDir))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed to start", zap.Error(err))
	}

	<-done
	logger.Info("server stopped")
}
