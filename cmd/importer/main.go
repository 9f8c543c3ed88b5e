package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"milk-delivery/internal/config"
	"milk-delivery/internal/db"
	"milk-delivery/internal/importer"
	"milk-delivery/internal/logger"
	agentrepo "milk-delivery/internal/repository/agent"
	customerrepo "milk-delivery/internal/repository/customer"
)

type runner interface {
	Run(ctx context.Context) (int, error)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var ownerID, filePath string

	root := &cobra.Command{
		Use:          "importer",
		Short:        "Import a seller's customer or delivery agent register from CSV",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if _, err := uuid.Parse(ownerID); err != nil {
				return fmt.Errorf("--owner must be a uuid: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&ownerID, "owner", "", "Owning seller account id")
	root.PersistentFlags().StringVar(&filePath, "file", "", "Path to the CSV file")
	_ = root.MarkPersistentFlagRequired("owner")
	_ = root.MarkPersistentFlagRequired("file")

	root.AddCommand(&cobra.Command{
		Use:   "customers",
		Short: "Upsert customers (name, phone, address, product, rate, plan, plan_type)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return importFile(cmd, filePath, "customers", func(pool *pgxpool.Pool, r io.Reader, log *zap.SugaredLogger) runner {
				return importer.NewCustomerImporter(r, customerrepo.NewPostgres(pool, log), ownerID)
			})
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "agents",
		Short: "Upsert delivery agents (name, phone, area, login_id)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return importFile(cmd, filePath, "agents", func(pool *pgxpool.Pool, r io.Reader, log *zap.SugaredLogger) runner {
				return importer.NewAgentImporter(r, agentrepo.NewPostgres(pool, log), ownerID)
			})
		},
	})
	return root
}

func importFile(cmd *cobra.Command, path, what string, build func(*pgxpool.Pool, io.Reader, *zap.SugaredLogger) runner) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("MILK_DB_DSN is required")
	}
	logg, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logg.Sync() }()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	ctx := cmd.Context()
	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()

	start := time.Now()
	count, err := build(pool, f, logg).Run(ctx)
	if err != nil {
		logg.Errorw("import failed", "what", what, "imported", count, "error", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s in %s\n", count, what, time.Since(start).Truncate(time.Millisecond))
	return nil
}
