package main

import (
	"context"
	"flag"
	"log"

	"milk-delivery/internal/config"
	"milk-delivery/internal/db"
	"milk-delivery/internal/logger"
	"milk-delivery/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration instead of applying")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if cfg.DB.DSN == "" {
		logg.Fatal("MILK_DB_DSN is required")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		logg.Fatalw("connect db", "error", err)
	}
	defer pool.Close()

	if *down {
		if err := migrate.Rollback(ctx, pool); err != nil {
			logg.Fatalw("roll back migration", "error", err)
		}
	} else if err := migrate.Apply(ctx, pool); err != nil {
		logg.Fatalw("apply migrations", "error", err)
	}

	version, dirty, err := migrate.Version(ctx, pool)
	if err != nil {
		logg.Fatalw("read schema version", "error", err)
	}
	logg.Infow("migrations done", "version", version, "dirty", dirty, "down", *down)
}
