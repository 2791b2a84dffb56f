package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS product (
		id         BIGINT PRIMARY KEY,
		sku        VARCHAR(64) NOT NULL,
		name       VARCHAR(255) NOT NULL,
		unit       VARCHAR(32) NOT NULL DEFAULT '',
		price      DECIMAL(20, 6) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse_location (
		id         BIGINT PRIMARY KEY,
		code       VARCHAR(64) NOT NULL,
		name       VARCHAR(255) NOT NULL DEFAULT '',
		active     BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS product_stock (
		product_id    BIGINT PRIMARY KEY,
		current_stock INT NOT NULL DEFAULT 0,
		safety_stock  INT NOT NULL DEFAULT 0,
		locked_stock  INT NOT NULL DEFAULT 0,
		location_id   BIGINT NULL,
		version       INT NOT NULL DEFAULT 0,
		created_at    DATETIME(6) NOT NULL,
		updated_at    DATETIME(6) NOT NULL,
		CONSTRAINT chk_current_stock CHECK (current_stock >= 0),
		CONSTRAINT chk_locked_stock CHECK (locked_stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS approval_flow (
		id            VARCHAR(36) PRIMARY KEY,
		applicant_id  VARCHAR(64) NOT NULL,
		approver_id   VARCHAR(64) NOT NULL,
		business_type VARCHAR(32) NOT NULL,
		status        VARCHAR(32) NOT NULL,
		created_at    DATETIME(6) NOT NULL,
		updated_at    DATETIME(6) NOT NULL,
		INDEX idx_flow_approver_status (approver_id, status)
	)`,
	`CREATE TABLE IF NOT EXISTS approval_node (
		flow_id     VARCHAR(36) NOT NULL,
		seq         INT NOT NULL,
		approver_id VARCHAR(64) NOT NULL,
		result      VARCHAR(32) NOT NULL,
		comment     VARCHAR(1024) NULL,
		decided_at  DATETIME(6) NULL,
		PRIMARY KEY (flow_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_application (
		id           VARCHAR(36) PRIMARY KEY,
		type         VARCHAR(8) NOT NULL,
		applicant_id VARCHAR(64) NOT NULL,
		reason       VARCHAR(1024) NOT NULL DEFAULT '',
		status       VARCHAR(32) NOT NULL,
		flow_id      VARCHAR(36) NOT NULL,
		created_at   DATETIME(6) NOT NULL,
		updated_at   DATETIME(6) NOT NULL,
		INDEX idx_inventory_status (status)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_item (
		application_id VARCHAR(36) NOT NULL,
		seq            INT NOT NULL,
		product_id     BIGINT NOT NULL,
		requested_qty  INT NOT NULL,
		actual_qty     INT NULL,
		location_id    BIGINT NULL,
		PRIMARY KEY (application_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS procurement_application (
		id           VARCHAR(36) PRIMARY KEY,
		applicant_id VARCHAR(64) NOT NULL,
		title        VARCHAR(255) NOT NULL,
		total_amount DECIMAL(14, 2) NOT NULL,
		status       VARCHAR(32) NOT NULL,
		flow_id      VARCHAR(36) NOT NULL,
		created_at   DATETIME(6) NOT NULL,
		updated_at   DATETIME(6) NOT NULL,
		INDEX idx_procurement_applicant (applicant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS procurement_item (
		application_id VARCHAR(36) NOT NULL,
		seq            INT NOT NULL,
		product_id     BIGINT NOT NULL,
		quantity       INT NOT NULL,
		expected_price DECIMAL(20, 6) NOT NULL,
		PRIMARY KEY (application_id, seq)
	)`,
}

// upgrades widen columns of tables created by earlier releases. MODIFY is a
// no-op when the column already has the target type.
var upgrades = []string{
	`ALTER TABLE product MODIFY price DECIMAL(20, 6) NULL`,
	`ALTER TABLE procurement_item MODIFY expected_price DECIMAL(20, 6) NOT NULL`,
}

// Migrate creates the tables the adapter reads and writes. It is idempotent.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range append(schema, upgrades...) {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
