package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"go-ats-backend/config"
	"go-ats-backend/migrations"
	"go-ats-backend/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Log.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	applied, err := migrations.Apply(ctx, db)
	if err != nil {
		logger.Log.Error("Migration failed", "applied", applied, "error", err)
		os.Exit(1)
	}

	if len(applied) == 0 {
		logger.Log.Info("Schema is up to date")
		return
	}
	logger.Log.Info("Migrations applied", "files", applied)
}
