package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/rl1809/wms-approval/internal/adapter/catalog"
	"github.com/rl1809/wms-approval/internal/adapter/storage"
	"github.com/rl1809/wms-approval/internal/config"
	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

// backend bundles the store with the reference data it is paired with.
type backend struct {
	store     port.Store
	catalog   port.Catalog
	locations port.LocationRegistry
	close     func() error
}

func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	static, err := catalog.FromConfig(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == config.DriverMemory {
		store := storage.NewMemoryStore()
		now := time.Now()
		for _, p := range cfg.Catalog.Products {
			store.PutStock(domain.Stock{
				ProductID:    p.ID,
				CurrentStock: p.InitialStock,
				SafetyStock:  cfg.Approval.SafetyStock,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		logger.Info("using in-memory store", zap.Int("products", len(cfg.Catalog.Products)))
		return &backend{store: store, catalog: static, locations: static}, nil
	}

	// Initialize MySQL
	dsn, err := cfg.Storage.MySQLDSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.Storage.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Storage.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}
	logger.Info("connected to mysql")

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	mysqlCatalog := storage.NewMySQLCatalog(db)
	if err := seedMySQL(ctx, cfg, adapter, mysqlCatalog, static); err != nil {
		db.Close()
		return nil, err
	}

	return &backend{store: adapter, catalog: mysqlCatalog, locations: mysqlCatalog, close: db.Close}, nil
}

// seedMySQL upserts the configured catalog and creates missing stock rows.
// Existing stock rows are never overwritten.
func seedMySQL(ctx context.Context, cfg *config.Config, store port.Store, dst *storage.MySQLCatalog, src *catalog.Static) error {
	products, err := src.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := dst.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, l := range src.Locations() {
		if err := dst.UpsertLocation(ctx, l); err != nil {
			return err
		}
	}

	return store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		now := time.Now()
		for _, p := range cfg.Catalog.Products {
			err := tx.InsertStockIfAbsent(ctx, domain.Stock{
				ProductID:    p.ID,
				CurrentStock: p.InitialStock,
				SafetyStock:  cfg.Approval.SafetyStock,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			if err != nil {
				return fmt.Errorf("seed stock %d: %w", p.ID, err)
			}
		}
		return nil
	})
}
