package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"milk-delivery/internal/config"
	"milk-delivery/internal/db"
	"milk-delivery/internal/logger"
	agentrepo "milk-delivery/internal/repository/agent"
	assignmentrepo "milk-delivery/internal/repository/assignment"
	customerrepo "milk-delivery/internal/repository/customer"
	"milk-delivery/internal/seed"
	"milk-delivery/internal/service/session"
)

func main() {
	var (
		filePath string
		tokenTTL time.Duration
	)
	flag.StringVar(&filePath, "file", "", "YAML dataset to seed (defaults to the built-in demo dataset)")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of the printed seller token")
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

	ds, err := loadDataset(filePath)
	if err != nil {
		logg.Fatalw("load dataset", "file", filePath, "error", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		logg.Fatalw("connect db", "error", err)
	}
	defer pool.Close()

	res, err := seed.Apply(ctx, seed.Writers{
		Customers:   customerrepo.NewPostgres(pool, logg),
		Agents:      agentrepo.NewPostgres(pool, logg),
		Assignments: assignmentrepo.NewPostgres(pool, logg),
	}, ds, logg)
	if err != nil {
		logg.Fatalw("seed apply", "error", err)
	}
	logg.Infow("seed applied",
		"owner_id", ds.OwnerID,
		"customers", res.Customers,
		"agents", res.Agents,
		"assignments", res.Assignments,
		"skipped", res.Skipped,
	)

	if cfg.Store.JWTSecret == "" {
		return
	}
	token, err := session.New(session.Options{JWTSecret: cfg.Store.JWTSecret}).MintOwnerToken(ds.OwnerID, tokenTTL)
	if err != nil {
		logg.Fatalw("mint seller token", "error", err)
	}
	fmt.Printf("Seller token for %s (valid %s):\n%s\n", ds.OwnerID, tokenTTL, token)
}

func loadDataset(path string) (seed.Dataset, error) {
	if path == "" {
		return seed.Demo()
	}
	f, err := os.Open(path)
	if err != nil {
		return seed.Dataset{}, err
	}
	defer f.Close()
	return seed.Load(f)
}
