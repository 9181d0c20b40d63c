package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/samirrijal/safemap/internal/pkg/config"
	"github.com/samirrijal/safemap/internal/pkg/logging"
)

const schemaTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNN_name.sql files")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-dir migrations] <up|down|status>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load("safemap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	all, err := loadMigrations(os.DirFS(*dir))
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schemaTable); err != nil {
		log.Fatalf("schema_migrations: %v", err)
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		log.Fatalf("schema_migrations: %v", err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = up(ctx, pool, pending(all, applied))
	case "down":
		err = down(ctx, pool, all, applied)
	case "status":
		status(all, applied)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[int]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[int(v)] = true
	}
	return applied, nil
}

// up applies each migration and records it in the same transaction.
func up(ctx context.Context, pool *pgxpool.Pool, todo []migration) error {
	if len(todo) == 0 {
		slog.Info("schema up to date")
		return nil
	}
	for _, m := range todo {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply %03d_%s: %w", m.Version, m.Name, err)
		}
		slog.Info("migration applied", "version", m.Version, "name", m.Name)
	}
	slog.Info("all migrations applied", "count", len(todo))
	return nil
}

// down reverts the latest applied migration.
func down(ctx context.Context, pool *pgxpool.Pool, all []migration, applied map[int]bool) error {
	m, ok := latestApplied(all, applied)
	if !ok {
		slog.Info("nothing to revert")
		return nil
	}
	if m.Down == "" {
		return fmt.Errorf("migration %03d_%s has no down file", m.Version, m.Name)
	}
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.Down); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("revert %03d_%s: %w", m.Version, m.Name, err)
	}
	slog.Info("migration reverted", "version", m.Version, "name", m.Name)
	return nil
}

func status(all []migration, applied map[int]bool) {
	for _, m := range all {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%03d  %-24s %s\n", m.Version, m.Name, state)
	}
}
