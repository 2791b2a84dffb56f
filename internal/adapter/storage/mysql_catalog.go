package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/wms-approval/internal/core/domain"
)

// MySQLCatalog serves products and warehouse locations from the product and
// warehouse_location tables.
type MySQLCatalog struct {
	db *sql.DB
}

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

func (c *MySQLCatalog) FindProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	found := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, sku, name, unit, price FROM product WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		found[p.ID] = p
	}
	return found, rows.Err()
}

func (c *MySQLCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, sku, name, unit, price FROM product ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (c *MySQLCatalog) FindLocations(ctx context.Context, ids []int64) (map[int64]domain.Location, error) {
	found := make(map[int64]domain.Location, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, code, name, active FROM warehouse_location WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &l.Active); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		found[l.ID] = l
	}
	return found, rows.Err()
}

// UpsertProduct and UpsertLocation seed reference data from configuration.
func (c *MySQLCatalog) UpsertProduct(ctx context.Context, p domain.Product) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO product (id, sku, name, unit, price) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE sku = VALUES(sku), name = VALUES(name), unit = VALUES(unit), price = VALUES(price)`,
		p.ID, p.SKU, p.Name, p.Unit, p.Price,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (c *MySQLCatalog) UpsertLocation(ctx context.Context, l domain.Location) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO warehouse_location (id, code, name, active) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE code = VALUES(code), name = VALUES(name), active = VALUES(active)`,
		l.ID, l.Code, l.Name, l.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

func scanProduct(row scanner) (domain.Product, error) {
	var (
		p     domain.Product
		price decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &price); err != nil {
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	p.Price = price
	return p, nil
}
