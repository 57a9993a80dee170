package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/biz"
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/llm"
	"github.com/lk2023060901/competitor-scout-backend/internal/analysis/service"
	"github.com/lk2023060901/competitor-scout-backend/internal/conf"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"
	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/sse"
	"github.com/lk2023060901/competitor-scout-backend/internal/server"
	"github.com/lk2023060901/competitor-scout-backend/internal/websearch/provider"

	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize search provider
	providerConfig, err := config.Search.ProviderConfig()
	if err != nil {
		log.Fatal("invalid search configuration", zap.Error(err))
	}

	searcher, err := provider.NewFactory().Create(providerConfig)
	if err != nil {
		log.Fatal("failed to create search provider", zap.Error(err))
	}
	log.Info("search provider ready", zap.String("provider", string(searcher.GetID())))

	// Initialize chat client
	chatClient, err := llm.NewClient(&config.LLM)
	if err != nil {
		log.Fatal("failed to create llm client", zap.Error(err))
	}

	// Initialize analysis pipeline and services
	pipeline := biz.NewPipeline(searcher, chatClient, config.Analysis, log.Named("pipeline"))
	hub := sse.NewHub()
	analysisService := service.NewAnalysisService(pipeline, hub, log.Named("analysis"))

	// Initialize HTTP server
	httpServer := server.NewHTTPServer(config, log, analysisService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
