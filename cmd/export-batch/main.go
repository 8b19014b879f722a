package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/stage-exporter/internal/common"
	"github.com/joseph-ayodele/stage-exporter/internal/core"
	"github.com/joseph-ayodele/stage-exporter/internal/entity"
	repo "github.com/joseph-ayodele/stage-exporter/internal/repository"
	"github.com/joseph-ayodele/stage-exporter/internal/storage"
	"github.com/joseph-ayodele/stage-exporter/internal/transfer"
	"github.com/joseph-ayodele/stage-exporter/internal/warehouse"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	_ = godotenv.Load()

	// Parse CLI flags
	var (
		inmem = flag.Bool("inmem", false, "use in-memory SQLite for staging and warehouse, local dirs for destinations")
		batch = flag.Int("batch", 0, "override BATCH_SIZE for this cycle")
		seed  = flag.Int("seed", 0, "seed N demo work items before the cycle (inmem only)")
	)
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := common.LoadConfig()
	if *batch > 0 {
		cfg.Batch.Size = *batch
	}
	if err := cfg.Validate(*inmem); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *seed > 0 && !*inmem {
		printError("Error: --seed requires --inmem\n")
		os.Exit(1)
	}

	// Staging database
	var (
		db  *repo.DB
		err error
	)
	if *inmem {
		db, err = repo.OpenSQLite(ctx, logger)
	} else {
		db, err = repo.Open(ctx, repo.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
	}
	if err != nil {
		logger.Error("failed to open staging database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("staging database health check failed", "error", err)
		os.Exit(1)
	}

	itemsRepo := repo.NewWorkItemRepository(db, logger)
	statusRepo := repo.NewStatusRepository(db, logger)

	// Warehouse connection. In local mode the staging database doubles as
	// the warehouse so seeded queries have something to select from.
	warehouseDB := db
	if !*inmem {
		warehouseDB, err = repo.Open(ctx, repo.Config{
			DSN:             cfg.Warehouse.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open warehouse connection", "error", err)
			os.Exit(1)
		}
		defer warehouseDB.Close(logger)
	}
	runner := warehouse.NewSQLRunner(warehouseDB.SQL, cfg.Warehouse.QueryTimeout, logger)

	// Destinations
	var (
		store  storage.ObjectStore
		remote transfer.Remote
	)
	if *inmem {
		store, err = storage.NewFSStore(filepath.Join(cfg.Batch.ArtifactDir, "objects"))
		if err == nil {
			remote, err = transfer.NewFSRemote(filepath.Join(cfg.Batch.ArtifactDir, "remote"))
		}
	} else {
		store, err = storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       cfg.Storage.Bucket,
			Region:       cfg.Storage.Region,
			AccessKey:    cfg.Storage.AccessKey,
			SecretKey:    cfg.Storage.SecretKey,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.UsePathStyle,
		}, logger)
		if err == nil {
			remote, err = transfer.NewSFTPRemote(transfer.SFTPConfig{
				Addr:        cfg.SFTP.Addr,
				User:        cfg.SFTP.User,
				Password:    cfg.SFTP.Password,
				KeyFile:     cfg.SFTP.KeyFile,
				RemoteDir:   cfg.SFTP.RemoteDir,
				DialTimeout: cfg.SFTP.DialTimeout,
			}, logger)
		}
	}
	if err != nil {
		logger.Error("failed to set up destinations", "error", err)
		os.Exit(1)
	}

	if *seed > 0 {
		if err := seedDemoItems(ctx, db, itemsRepo, *seed); err != nil {
			logger.Error("failed to seed demo items", "error", err)
			os.Exit(1)
		}
		logger.Info("seeded demo work items", "count", *seed)
	}

	processor := core.NewProcessor(logger, runner, store, remote, statusRepo, cfg.Batch.ArtifactDir, cfg.Storage.KeyPrefix)
	dispatcher := core.NewDispatcher(logger, itemsRepo, processor, cfg.Batch.Size, cfg.Batch.ItemTimeout, cfg.Batch.LeaseTTL)

	summary, err := dispatcher.RunCycle(ctx)
	if err != nil {
		logger.Error("batch cycle aborted", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Batch cycle complete!\n")
	fmt.Printf("- Claimed: %d\n", summary.Claimed)
	fmt.Printf("- Succeeded: %d\n", summary.Succeeded)
	fmt.Printf("- Failed: %d\n", summary.Failed)
	fmt.Printf("- Reclaimed leases: %d\n", summary.Reclaimed)

	if summary.Failed > 0 {
		os.Exit(2)
	}
}

// seedDemoItems creates a small warehouse table and N work items selecting
// from it, so a local cycle has real rows to export.
func seedDemoItems(ctx context.Context, db *repo.DB, items repo.WorkItemRepository, n int) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS demo_events (id INTEGER PRIMARY KEY, name TEXT, amount REAL)`,
		`INSERT INTO demo_events (name, amount) VALUES ('alpha', 1.5), ('beta', 2.25), ('gamma', 3.0)`,
	}
	for _, s := range stmts {
		if _, err := db.SQL.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		item := &entity.WorkItem{
			FileName:    fmt.Sprintf("demo-%02d.csv", i+1),
			SourceQuery: `SELECT id, name, amount FROM demo_events ORDER BY id`,
		}
		if err := items.Insert(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
