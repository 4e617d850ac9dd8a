package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"lora-studio-backend/internal/config"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/store"
)

// OpenTables opens the record store backend selected by cfg.StoreDriver.
// The returned close function releases the underlying connection.
func OpenTables(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store.Tables, func() error, error) {
	schema := store.NewSchema(cfg.TablePrefix)

	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := NewMigrator(db, log).Run(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		tables := store.NewTables(
			NewPostgresTable(db, schema.Accounts),
			NewPostgresTable(db, schema.Models),
			NewPostgresTable(db, schema.TrainingImages),
			NewPostgresTable(db, schema.GeneratedImages),
			db.PingContext,
		)
		return tables, db.Close, nil

	case config.StoreSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		tables := store.NewTables(
			NewGormTable(db, schema.Accounts),
			NewGormTable(db, schema.Models),
			NewGormTable(db, schema.TrainingImages),
			NewGormTable(db, schema.GeneratedImages),
			sqlDB.PingContext,
		)
		return tables, sqlDB.Close, nil

	case config.StoreMemory, "":
		log.Warn("using in-memory record store; data will not survive a restart")
		return store.NewMemoryTables(schema), func() error { return nil }, nil
	}

	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
