package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/noah-isme/coop-registration-api/migrations"
	"github.com/noah-isme/coop-registration-api/pkg/config"
	"github.com/noah-isme/coop-registration-api/pkg/database"
	"github.com/noah-isme/coop-registration-api/pkg/logger"
)

var gooseRun = goose.Run // mockable

const usage = "usage: migrate <up|down|status|version|redo|reset|up-to VERSION|down-to VERSION>"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	if err := migrate(db.DB, os.Args[1], os.Args[2:]); err != nil {
		logr.Sugar().Fatalw("migration failed", "command", os.Args[1], "error", err)
	}
	logr.Sugar().Infow("migration finished", "command", os.Args[1])
}

func migrate(db *sql.DB, command string, args []string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseRun(command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
