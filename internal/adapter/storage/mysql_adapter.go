package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/wms-approval/internal/core/domain"
	"github.com/rl1809/wms-approval/internal/port"
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// MySQLAdapter is the production Store. Rows read inside a transaction are
// locked with SELECT ... FOR UPDATE until commit.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &mysqlTx{tx: tx}); err != nil {
		return wrapLockContention(err)
	}
	if err := tx.Commit(); err != nil {
		return wrapLockContention(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (m *MySQLAdapter) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, current_stock, safety_stock, locked_stock, location_id, version, created_at, updated_at
		FROM product_stock ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, *s)
	}
	return stocks, rows.Err()
}

func (m *MySQLAdapter) FindInventoryApplication(ctx context.Context, id string) (*domain.InventoryApplication, error) {
	return loadInventoryApplication(ctx, m.db, id, false)
}

func (m *MySQLAdapter) ListInventoryApplications(ctx context.Context, typ domain.InventoryType, statuses []domain.InventoryApplicationStatus) ([]domain.InventoryApplication, error) {
	query := `SELECT id FROM inventory_application WHERE 1 = 1`
	var args []any
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY created_at, id`

	ids, err := queryIDs(ctx, m.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory applications: %w", err)
	}

	apps := make([]domain.InventoryApplication, 0, len(ids))
	for _, id := range ids {
		app, err := loadInventoryApplication(ctx, m.db, id, false)
		if err != nil {
			return nil, err
		}
		if app != nil {
			apps = append(apps, *app)
		}
	}
	return apps, nil
}

func (m *MySQLAdapter) FindProcurementApplication(ctx context.Context, id string) (*domain.ProcurementApplication, error) {
	return loadProcurementApplication(ctx, m.db, id, false)
}

func (m *MySQLAdapter) ListProcurementApplications(ctx context.Context, applicant string, statuses []domain.ProcurementStatus) ([]domain.ProcurementApplication, error) {
	query := `SELECT id FROM procurement_application WHERE 1 = 1`
	var args []any
	if applicant != "" {
		query += ` AND applicant_id = ?`
		args = append(args, applicant)
	}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY created_at, id`

	ids, err := queryIDs(ctx, m.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query procurement applications: %w", err)
	}

	apps := make([]domain.ProcurementApplication, 0, len(ids))
	for _, id := range ids {
		app, err := loadProcurementApplication(ctx, m.db, id, false)
		if err != nil {
			return nil, err
		}
		if app != nil {
			apps = append(apps, *app)
		}
	}
	return apps, nil
}

func (m *MySQLAdapter) FindFlow(ctx context.Context, id string) (*domain.ApprovalFlow, error) {
	return loadFlow(ctx, m.db, id, false)
}

func (m *MySQLAdapter) ListFlowsByApprover(ctx context.Context, approver string, statuses []domain.ApprovalStatus) ([]domain.ApprovalFlow, error) {
	query := `SELECT id FROM approval_flow WHERE approver_id = ?`
	args := []any{approver}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY created_at, id`

	ids, err := queryIDs(ctx, m.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flows: %w", err)
	}

	flows := make([]domain.ApprovalFlow, 0, len(ids))
	for _, id := range ids {
		flow, err := loadFlow(ctx, m.db, id, false)
		if err != nil {
			return nil, err
		}
		if flow != nil {
			flows = append(flows, *flow)
		}
	}
	return flows, nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) GetStock(ctx context.Context, productID int64) (*domain.Stock, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT product_id, current_stock, safety_stock, locked_stock, location_id, version, created_at, updated_at
		FROM product_stock WHERE product_id = ? FOR UPDATE`, productID)

	s, err := scanStock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (t *mysqlTx) InsertStockIfAbsent(ctx context.Context, stock domain.Stock) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO product_stock (product_id, current_stock, safety_stock, locked_stock, location_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON DUPLICATE KEY UPDATE product_id = product_id`,
		stock.ProductID, stock.CurrentStock, stock.SafetyStock, stock.LockedStock,
		nullInt64(stock.LocationID), stock.CreatedAt, stock.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stock: %w", err)
	}
	return nil
}

func (t *mysqlTx) UpdateStock(ctx context.Context, stock domain.Stock) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE product_stock
		SET current_stock = ?, safety_stock = ?, locked_stock = ?, location_id = ?,
		    version = version + 1, updated_at = ?
		WHERE product_id = ? AND version = ?`,
		stock.CurrentStock, stock.SafetyStock, stock.LockedStock, nullInt64(stock.LocationID),
		stock.UpdatedAt, stock.ProductID, stock.Version,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}
	return nil
}

func (t *mysqlTx) InsertFlow(ctx context.Context, flow *domain.ApprovalFlow) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO approval_flow (id, applicant_id, approver_id, business_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		flow.ID, flow.Applicant, flow.Approver, string(flow.BusinessType), string(flow.Status),
		flow.CreatedAt, flow.UpdatedAt,
	)
	if err != nil {
		return wrapDuplicate("insert approval flow", err)
	}

	for seq, node := range flow.Nodes {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO approval_node (flow_id, seq, approver_id, result, comment, decided_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			flow.ID, seq, node.Approver, string(node.Result), nullString(node.Comment), nullTime(node.DecidedAt),
		)
		if err != nil {
			return fmt.Errorf("insert approval node: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) GetFlow(ctx context.Context, id string) (*domain.ApprovalFlow, error) {
	return loadFlow(ctx, t.tx, id, true)
}

func (t *mysqlTx) UpdateFlow(ctx context.Context, flow *domain.ApprovalFlow) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE approval_flow SET approver_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		flow.Approver, string(flow.Status), flow.UpdatedAt, flow.ID,
	)
	if err != nil {
		return fmt.Errorf("update approval flow: %w", err)
	}

	for seq, node := range flow.Nodes {
		_, err := t.tx.ExecContext(ctx, `
			UPDATE approval_node SET approver_id = ?, result = ?, comment = ?, decided_at = ?
			WHERE flow_id = ? AND seq = ?`,
			node.Approver, string(node.Result), nullString(node.Comment), nullTime(node.DecidedAt),
			flow.ID, seq,
		)
		if err != nil {
			return fmt.Errorf("update approval node: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) InsertInventoryApplication(ctx context.Context, app *domain.InventoryApplication) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventory_application (id, type, applicant_id, reason, status, flow_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, string(app.Type), app.Applicant, app.Reason, string(app.Status), app.FlowID,
		app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return wrapDuplicate("insert inventory application", err)
	}

	for seq, item := range app.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO inventory_item (application_id, seq, product_id, requested_qty, actual_qty, location_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			app.ID, seq, item.ProductID, item.RequestedQty, nullInt(item.ActualQty), nullInt64(item.LocationID),
		)
		if err != nil {
			return fmt.Errorf("insert inventory item: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) GetInventoryApplication(ctx context.Context, id string) (*domain.InventoryApplication, error) {
	return loadInventoryApplication(ctx, t.tx, id, true)
}

func (t *mysqlTx) UpdateInventoryApplication(ctx context.Context, app *domain.InventoryApplication) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE inventory_application SET status = ?, updated_at = ? WHERE id = ?`,
		string(app.Status), app.UpdatedAt, app.ID,
	)
	if err != nil {
		return fmt.Errorf("update inventory application: %w", err)
	}

	for seq, item := range app.Items {
		_, err := t.tx.ExecContext(ctx, `
			UPDATE inventory_item SET actual_qty = ?, location_id = ?
			WHERE application_id = ? AND seq = ?`,
			nullInt(item.ActualQty), nullInt64(item.LocationID), app.ID, seq,
		)
		if err != nil {
			return fmt.Errorf("update inventory item: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) InsertProcurementApplication(ctx context.Context, app *domain.ProcurementApplication) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO procurement_application (id, applicant_id, title, total_amount, status, flow_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.Applicant, app.Title, app.TotalAmount, string(app.Status), app.FlowID,
		app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return wrapDuplicate("insert procurement application", err)
	}

	for seq, item := range app.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO procurement_item (application_id, seq, product_id, quantity, expected_price)
			VALUES (?, ?, ?, ?, ?)`,
			app.ID, seq, item.ProductID, item.Quantity, item.ExpectedPrice,
		)
		if err != nil {
			return fmt.Errorf("insert procurement item: %w", err)
		}
	}
	return nil
}

func (t *mysqlTx) GetProcurementApplication(ctx context.Context, id string) (*domain.ProcurementApplication, error) {
	return loadProcurementApplication(ctx, t.tx, id, true)
}

func (t *mysqlTx) UpdateProcurementApplication(ctx context.Context, app *domain.ProcurementApplication) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE procurement_application SET status = ?, updated_at = ? WHERE id = ?`,
		string(app.Status), app.UpdatedAt, app.ID,
	)
	if err != nil {
		return fmt.Errorf("update procurement application: %w", err)
	}
	return nil
}

func scanStock(row scanner) (*domain.Stock, error) {
	var (
		s        domain.Stock
		location sql.NullInt64
	)
	err := row.Scan(&s.ProductID, &s.CurrentStock, &s.SafetyStock, &s.LockedStock, &location,
		&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan stock: %w", err)
	}
	s.LocationID = int64Ptr(location)
	return &s, nil
}

func loadFlow(ctx context.Context, q queryer, id string, forUpdate bool) (*domain.ApprovalFlow, error) {
	query := `
		SELECT id, applicant_id, approver_id, business_type, status, created_at, updated_at
		FROM approval_flow WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		flow         domain.ApprovalFlow
		businessType string
		status       string
	)
	err := q.QueryRowContext(ctx, query, id).Scan(&flow.ID, &flow.Applicant, &flow.Approver,
		&businessType, &status, &flow.CreatedAt, &flow.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query approval flow: %w", err)
	}
	flow.BusinessType = domain.BusinessType(businessType)
	flow.Status = domain.ApprovalStatus(status)

	rows, err := q.QueryContext(ctx, `
		SELECT approver_id, result, comment, decided_at
		FROM approval_node WHERE flow_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query approval nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			node      domain.ApprovalNode
			result    string
			comment   sql.NullString
			decidedAt sql.NullTime
		)
		if err := rows.Scan(&node.Approver, &result, &comment, &decidedAt); err != nil {
			return nil, fmt.Errorf("scan approval node: %w", err)
		}
		node.Result = domain.ApprovalResult(result)
		node.Comment = comment.String
		if decidedAt.Valid {
			t := decidedAt.Time
			node.DecidedAt = &t
		}
		flow.Nodes = append(flow.Nodes, node)
	}
	return &flow, rows.Err()
}

func loadInventoryApplication(ctx context.Context, q queryer, id string, forUpdate bool) (*domain.InventoryApplication, error) {
	query := `
		SELECT id, type, applicant_id, reason, status, flow_id, created_at, updated_at
		FROM inventory_application WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		app    domain.InventoryApplication
		typ    string
		status string
	)
	err := q.QueryRowContext(ctx, query, id).Scan(&app.ID, &typ, &app.Applicant, &app.Reason,
		&status, &app.FlowID, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory application: %w", err)
	}
	app.Type = domain.InventoryType(typ)
	app.Status = domain.InventoryApplicationStatus(status)

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, requested_qty, actual_qty, location_id
		FROM inventory_item WHERE application_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query inventory items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item     domain.InventoryItem
			actual   sql.NullInt64
			location sql.NullInt64
		)
		if err := rows.Scan(&item.ProductID, &item.RequestedQty, &actual, &location); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		if actual.Valid {
			qty := int(actual.Int64)
			item.ActualQty = &qty
		}
		item.LocationID = int64Ptr(location)
		app.Items = append(app.Items, item)
	}
	return &app, rows.Err()
}

func loadProcurementApplication(ctx context.Context, q queryer, id string, forUpdate bool) (*domain.ProcurementApplication, error) {
	query := `
		SELECT id, applicant_id, title, total_amount, status, flow_id, created_at, updated_at
		FROM procurement_application WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		app    domain.ProcurementApplication
		status string
	)
	err := q.QueryRowContext(ctx, query, id).Scan(&app.ID, &app.Applicant, &app.Title, &app.TotalAmount,
		&status, &app.FlowID, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query procurement application: %w", err)
	}
	app.Status = domain.ProcurementStatus(status)

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity, expected_price
		FROM procurement_item WHERE application_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query procurement items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.ProcurementItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.ExpectedPrice); err != nil {
			return nil, fmt.Errorf("scan procurement item: %w", err)
		}
		app.Items = append(app.Items, item)
	}
	return &app, rows.Err()
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func wrapDuplicate(op string, err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrConflict, mysqlErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// wrapLockContention types InnoDB deadlock victims and lock wait timeouts.
// Both roll the whole transaction back.
func wrapLockContention(err error) error {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}
	switch mysqlErr.Number {
	case mysqlDeadlock, mysqlLockWaitTimeout:
		return fmt.Errorf("%w: %w", port.ErrLockContention, err)
	}
	return err
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}
