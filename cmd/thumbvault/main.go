package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"thumbvault/internal/bot"
	"thumbvault/internal/capture"
	"thumbvault/internal/config"
	"thumbvault/internal/export"
	"thumbvault/internal/server"
	"thumbvault/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"badgerdb_path": cfg.BadgerDBPath,
		"listen_addr":   cfg.ListenAddr,
		"export_dir":    cfg.ExportDir,
	}).Info("Configuration loaded")

	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()

	collector := capture.NewRodCollector(log)
	exporter := export.NewPipeline(cfg.ExportDir, log)
	api := server.New(repo, collector, exporter, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The Telegram surface is optional; without a token only the HTTP
	// API runs.
	if cfg.TelegramBotToken != "" {
		botHandler, err := bot.NewHandler(cfg.TelegramBotToken, repo, collector, log)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram bot handler: %v", err)
		}
		go botHandler.Start(ctx)
	}

	log.Info("thumbvault is running. Press Ctrl+C to exit.")

	if err := api.Run(ctx, cfg.ListenAddr); err != nil {
		log.WithError(err).Error("HTTP server exited with error")
	}

	log.Info("thumbvault shut down gracefully.")
}
