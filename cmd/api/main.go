package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sentinelmesh/console/internal/config"
	"github.com/sentinelmesh/console/internal/database"
	"github.com/sentinelmesh/console/internal/logger"
	"github.com/sentinelmesh/console/internal/server"
	"github.com/sentinelmesh/console/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Log to both stdout and a rotating file.
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fatalf("ensure log directory: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "console.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(!cfg.IsProduction(), io.MultiWriter(os.Stdout, rotator))

	logger.WithFields(map[string]interface{}{
		"version": version.Full(),
		"env":     cfg.Environment,
	}).Infof("starting %s", version.Name)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	srv, err := server.New(db, cfg)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(map[string]interface{}{"port": cfg.HTTPPort}).Info("listening")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
