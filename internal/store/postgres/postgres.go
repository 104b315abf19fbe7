package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/store"
	"mejapos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListMenuItems(ctx context.Context) ([]domain.MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, category, price_cents, active
		FROM menu_items
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0, 64)
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.Code, &item.Name, &item.Category, &item.PriceCents, &item.Active); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if item.Code == "" || item.Name == "" || item.Category == "" || item.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	item.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO menu_items (code, name, category, price_cents, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
	`, item.Code, item.Name, item.Category, item.PriceCents, item.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) GetMenuItemByCode(ctx context.Context, code string) (*domain.MenuItem, error) {
	var item domain.MenuItem
	err := s.db.QueryRowContext(ctx, `
		SELECT code, name, category, price_cents, active
		FROM menu_items
		WHERE code = $1
	`, code).Scan(&item.Code, &item.Name, &item.Category, &item.PriceCents, &item.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if item.Code == "" || item.Name == "" || item.Category == "" || item.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE menu_items
		SET name = $2, category = $3, price_cents = $4, active = $5, updated_at = now()
		WHERE code = $1
	`, item.Code, item.Name, item.Category, item.PriceCents, item.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := item
	return &updated, nil
}

func (s *Store) GetMenuItemsByCodes(ctx context.Context, codes []string) (map[string]domain.MenuItem, error) {
	result := make(map[string]domain.MenuItem, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, category, price_cents, active
		FROM menu_items
		WHERE active = true AND code = ANY($1)
	`, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.Code, &item.Name, &item.Category, &item.PriceCents, &item.Active); err != nil {
			return nil, err
		}
		result[item.Code] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.BranchID) == "" || strings.TrimSpace(shift.TerminalID) == "" || strings.TrimSpace(shift.CashierName) == "" {
		return nil, store.ErrInvalidInput
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.ClosedAt = nil
	shift.ClosingCashCents = nil

	// A partial unique index on (branch_id, terminal_id) WHERE status = 'open'
	// turns a double-open into a unique violation.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (
			id, branch_id, terminal_id, cashier_name, opening_cash_cents,
			closing_cash_cents, status, opened_at, closed_at
		)
		VALUES ($1,$2,$3,$4,$5,NULL,$6,$7,NULL)
	`, shift.ID, shift.BranchID, shift.TerminalID, shift.CashierName, shift.OpeningCashCents,
		shift.Status, shift.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := shift
	return &saved, nil
}

func (s *Store) CloseActiveShift(ctx context.Context, branchID string, terminalID string, closingCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	if strings.TrimSpace(branchID) == "" || strings.TrimSpace(terminalID) == "" {
		return nil, store.ErrInvalidInput
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	var shift domain.Shift
	var closingCash sql.NullInt64
	var closedAtNull sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE shifts
		SET status = 'closed', closing_cash_cents = $3, closed_at = $4
		WHERE branch_id = $1 AND terminal_id = $2 AND status = 'open'
		RETURNING id, branch_id, terminal_id, cashier_name, opening_cash_cents,
			closing_cash_cents, status, opened_at, closed_at
	`, branchID, terminalID, closingCashCents, closedAt).Scan(
		&shift.ID,
		&shift.BranchID,
		&shift.TerminalID,
		&shift.CashierName,
		&shift.OpeningCashCents,
		&closingCash,
		&shift.Status,
		&shift.OpenedAt,
		&closedAtNull,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	if closingCash.Valid {
		cash := closingCash.Int64
		shift.ClosingCashCents = &cash
	}
	if closedAtNull.Valid {
		at := closedAtNull.Time.UTC()
		shift.ClosedAt = &at
	}
	return &shift, nil
}

func (s *Store) GetActiveShift(ctx context.Context, branchID string, terminalID string) (*domain.Shift, error) {
	return s.findShift(ctx, `
		SELECT id, branch_id, terminal_id, cashier_name, opening_cash_cents,
			closing_cash_cents, status, opened_at, closed_at
		FROM shifts
		WHERE branch_id = $1 AND terminal_id = $2 AND status = 'open'
		ORDER BY opened_at DESC
		LIMIT 1
	`, branchID, terminalID)
}

func (s *Store) GetShiftByID(ctx context.Context, shiftID string) (*domain.Shift, error) {
	return s.findShift(ctx, `
		SELECT id, branch_id, terminal_id, cashier_name, opening_cash_cents,
			closing_cash_cents, status, opened_at, closed_at
		FROM shifts
		WHERE id = $1
	`, shiftID)
}

func (s *Store) findShift(ctx context.Context, query string, args ...any) (*domain.Shift, error) {
	var shift domain.Shift
	var closingCash sql.NullInt64
	var closedAtNull sql.NullTime
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&shift.ID,
		&shift.BranchID,
		&shift.TerminalID,
		&shift.CashierName,
		&shift.OpeningCashCents,
		&closingCash,
		&shift.Status,
		&shift.OpenedAt,
		&closedAtNull,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	if closingCash.Valid {
		cash := closingCash.Int64
		shift.ClosingCashCents = &cash
	}
	if closedAtNull.Valid {
		at := closedAtNull.Time.UTC()
		shift.ClosedAt = &at
	}
	return &shift, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ShiftID == "" || len(order.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusOpen
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO orders (
			id, shift_id, branch_id, table_label, status, subtotal_cents, tax_cents,
			service_charge_cents, discount_type, discount_value, total_cents, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, order.ID, order.ShiftID, order.BranchID, nullIfEmpty(order.TableLabel), order.Status,
		order.SubtotalCents, order.TaxCents, order.ServiceChargeCents, order.DiscountType,
		order.DiscountValue, order.TotalCents, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, line := range order.Lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, menu_code, name, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, order.ID, line.MenuCode, line.Name, line.Qty, line.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := scanOrderRow(s.db.QueryRowContext(ctx, `
		SELECT id, shift_id, branch_id, COALESCE(table_label,''), status, subtotal_cents,
			tax_cents, service_charge_cents, discount_type, discount_value, total_cents,
			created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID))
	if err != nil {
		return nil, err
	}

	if err := s.attachOrderDetails(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status string, at time.Time) (*domain.Order, error) {
	order, err := scanOrderRow(s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, shift_id, branch_id, COALESCE(table_label,''), status, subtotal_cents,
			tax_cents, service_charge_cents, discount_type, discount_value, total_cents,
			created_at, updated_at
	`, orderID, status, at))
	if err != nil {
		return nil, err
	}

	if err := s.attachOrderDetails(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) AppendPayments(ctx context.Context, orderID string, payments []domain.Payment, status string, at time.Time) (*domain.Order, error) {
	if len(payments) == 0 {
		return nil, store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var currentStatus string
	err = pgTx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&currentStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, payment := range payments {
		if payment.ID == "" {
			payment.ID = xid.New("pay")
		}
		if payment.ReceivedAt.IsZero() {
			payment.ReceivedAt = at
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO payments (id, order_id, method, amount_cents, reference, received_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, payment.ID, orderID, payment.Method, payment.AmountCents, nullIfEmpty(payment.Reference), payment.ReceivedAt)
		if err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, orderID, status, at)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetOrderByID(ctx, orderID)
}

func (s *Store) ListOrdersByShift(ctx context.Context, shiftID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shift_id, branch_id, COALESCE(table_label,''), status, subtotal_cents,
			tax_cents, service_charge_cents, discount_type, discount_value, total_cents,
			created_at, updated_at
		FROM orders
		WHERE shift_id = $1
		ORDER BY created_at ASC, id ASC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0, 64)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID, &order.ShiftID, &order.BranchID, &order.TableLabel, &order.Status,
			&order.SubtotalCents, &order.TaxCents, &order.ServiceChargeCents, &order.DiscountType,
			&order.DiscountValue, &order.TotalCents, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		order.CreatedAt = order.CreatedAt.UTC()
		order.UpdatedAt = order.UpdatedAt.UTC()
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachOrderDetails(ctx, orders); err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, *order)
	}
	return result, nil
}

func scanOrderRow(row *sql.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID, &order.ShiftID, &order.BranchID, &order.TableLabel, &order.Status,
		&order.SubtotalCents, &order.TaxCents, &order.ServiceChargeCents, &order.DiscountType,
		&order.DiscountValue, &order.TotalCents, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return &order, nil
}

// attachOrderDetails loads lines and payments for the given orders in two
// queries instead of 2N.
func (s *Store) attachOrderDetails(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		order.Lines = nil
		order.Payments = nil
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	lineRows, err := s.db.QueryContext(ctx, `
		SELECT order_id, menu_code, name, qty, unit_price_cents
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return err
	}
	for lineRows.Next() {
		var orderID string
		var line domain.OrderLine
		if err := lineRows.Scan(&orderID, &line.MenuCode, &line.Name, &line.Qty, &line.UnitPriceCents); err != nil {
			_ = lineRows.Close()
			return err
		}
		if order, ok := byID[orderID]; ok {
			order.Lines = append(order.Lines, line)
		}
	}
	if err := lineRows.Err(); err != nil {
		_ = lineRows.Close()
		return err
	}
	_ = lineRows.Close()

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, method, amount_cents, COALESCE(reference,''), received_at
		FROM payments
		WHERE order_id = ANY($1)
		ORDER BY received_at ASC, id ASC
	`, ids)
	if err != nil {
		return err
	}
	for paymentRows.Next() {
		var payment domain.Payment
		if err := paymentRows.Scan(&payment.ID, &payment.OrderID, &payment.Method, &payment.AmountCents, &payment.Reference, &payment.ReceivedAt); err != nil {
			_ = paymentRows.Close()
			return err
		}
		payment.ReceivedAt = payment.ReceivedAt.UTC()
		if order, ok := byID[payment.OrderID]; ok {
			order.Payments = append(order.Payments, payment)
		}
	}
	if err := paymentRows.Err(); err != nil {
		_ = paymentRows.Close()
		return err
	}
	_ = paymentRows.Close()

	return nil
}

func (s *Store) CreateRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error) {
	if refund.OrderID == "" || refund.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if refund.ID == "" {
		refund.ID = xid.New("refund")
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refunds (id, order_id, amount_cents, reason, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, refund.ID, refund.OrderID, refund.AmountCents, refund.Reason, refund.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := refund
	return &created, nil
}

func (s *Store) SumRefundsByOrder(ctx context.Context, orderID string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents),0)::bigint
		FROM refunds
		WHERE order_id = $1
	`, orderID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListRefundsForOrders(ctx context.Context, orderIDs []string) ([]domain.Refund, error) {
	refunds := make([]domain.Refund, 0, 16)
	if len(orderIDs) == 0 {
		return refunds, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, amount_cents, reason, created_at
		FROM refunds
		WHERE order_id = ANY($1)
		ORDER BY created_at ASC, id ASC
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var refund domain.Refund
		if err := rows.Scan(&refund.ID, &refund.OrderID, &refund.AmountCents, &refund.Reason, &refund.CreatedAt); err != nil {
			return nil, err
		}
		refund.CreatedAt = refund.CreatedAt.UTC()
		refunds = append(refunds, refund)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refunds, nil
}

func (s *Store) CreateCashTransaction(ctx context.Context, tx domain.CashTransaction) (*domain.CashTransaction, error) {
	if tx.ShiftID == "" || tx.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if tx.Type != domain.CashTxTypeIn && tx.Type != domain.CashTxTypeOut {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New("cashtx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_transactions (id, shift_id, type, amount_cents, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, tx.ID, tx.ShiftID, tx.Type, tx.AmountCents, tx.Note, tx.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	created := tx
	return &created, nil
}

func (s *Store) ListCashTransactionsByShift(ctx context.Context, shiftID string) ([]domain.CashTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shift_id, type, amount_cents, note, created_at
		FROM cash_transactions
		WHERE shift_id = $1
		ORDER BY created_at ASC, id ASC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.CashTransaction, 0, 16)
	for rows.Next() {
		var tx domain.CashTransaction
		if err := rows.Scan(&tx.ID, &tx.ShiftID, &tx.Type, &tx.AmountCents, &tx.Note, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BranchID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE branch_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, branchID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
