// Package memory provides an in-memory Repository used for development,
// demos and tests. Data does not survive a restart.
package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/store"
	"mejapos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	menuItemsByCode map[string]domain.MenuItem
	shiftsByID      map[string]domain.Shift
	activeShiftKey  map[string]string
	ordersByID      map[string]*domain.Order
	orderIDsByShift map[string][]string
	refundsByID     map[string]domain.Refund
	cashTxsByShift  map[string][]domain.CashTransaction
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	menu := []domain.MenuItem{
		{Code: "NASI-GORENG", Name: "Nasi Goreng Spesial", Category: "main", PriceCents: 3800000, Active: true},
		{Code: "MIE-AYAM", Name: "Mie Ayam Bakso", Category: "main", PriceCents: 3200000, Active: true},
		{Code: "AYAM-BAKAR", Name: "Ayam Bakar Madu", Category: "main", PriceCents: 4500000, Active: true},
		{Code: "SATE-AYAM", Name: "Sate Ayam 10 Tusuk", Category: "main", PriceCents: 3500000, Active: true},
		{Code: "GADO-GADO", Name: "Gado-Gado", Category: "main", PriceCents: 2800000, Active: true},
		{Code: "ES-TEH", Name: "Es Teh Manis", Category: "beverage", PriceCents: 800000, Active: true},
		{Code: "ES-JERUK", Name: "Es Jeruk", Category: "beverage", PriceCents: 1000000, Active: true},
		{Code: "KOPI-SUSU", Name: "Kopi Susu Gula Aren", Category: "beverage", PriceCents: 2200000, Active: true},
		{Code: "AIR-MINERAL", Name: "Air Mineral 600ml", Category: "beverage", PriceCents: 600000, Active: true},
		{Code: "PISANG-GORENG", Name: "Pisang Goreng Keju", Category: "dessert", PriceCents: 1800000, Active: true},
		{Code: "ES-CAMPUR", Name: "Es Campur", Category: "dessert", PriceCents: 2000000, Active: true},
		{Code: "KERUPUK", Name: "Kerupuk Udang", Category: "side", PriceCents: 500000, Active: true},
	}

	menuMap := make(map[string]domain.MenuItem, len(menu))
	for _, item := range menu {
		menuMap[item.Code] = item
	}

	return &Store{
		menuItemsByCode: menuMap,
		shiftsByID:      make(map[string]domain.Shift),
		activeShiftKey:  make(map[string]string),
		ordersByID:      make(map[string]*domain.Order),
		orderIDsByShift: make(map[string][]string),
		refundsByID:     make(map[string]domain.Refund),
		cashTxsByShift:  make(map[string][]domain.CashTransaction),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListMenuItems(_ context.Context) ([]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.MenuItem, 0, len(s.menuItemsByCode))
	for _, item := range s.menuItemsByCode {
		if !item.Active {
			continue
		}
		items = append(items, item)
	}

	slices.SortFunc(items, func(a, b domain.MenuItem) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return items, nil
}

func (s *Store) CreateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Code == "" || item.Name == "" || item.Category == "" || item.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.menuItemsByCode[item.Code]; exists {
		return nil, store.ErrConflict
	}

	item.Active = true
	s.menuItemsByCode[item.Code] = item
	created := item
	return &created, nil
}

func (s *Store) GetMenuItemByCode(_ context.Context, code string) (*domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.menuItemsByCode[code]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) UpdateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Code == "" || item.Name == "" || item.Category == "" || item.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.menuItemsByCode[item.Code]; !exists {
		return nil, store.ErrNotFound
	}

	s.menuItemsByCode[item.Code] = item
	updated := item
	return &updated, nil
}

func (s *Store) GetMenuItemsByCodes(_ context.Context, codes []string) (map[string]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.MenuItem, len(codes))
	for _, code := range codes {
		if item, ok := s.menuItemsByCode[code]; ok && item.Active {
			result[code] = item
		}
	}
	return result, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.BranchID) == "" || strings.TrimSpace(shift.TerminalID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := shiftMapKey(shift.BranchID, shift.TerminalID)
	if _, exists := s.activeShiftKey[key]; exists {
		return nil, store.ErrConflict
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

	s.shiftsByID[shift.ID] = shift
	s.activeShiftKey[key] = shift.ID
	copyShift := shift
	return &copyShift, nil
}

func (s *Store) CloseActiveShift(_ context.Context, branchID string, terminalID string, closingCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	if strings.TrimSpace(branchID) == "" || strings.TrimSpace(terminalID) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := shiftMapKey(branchID, terminalID)
	shiftID, exists := s.activeShiftKey[key]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNotFound
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusClosed
	shift.ClosingCashCents = &closingCashCents
	shift.ClosedAt = &closedAt

	delete(s.activeShiftKey, key)
	s.shiftsByID[shiftID] = shift
	copyShift := shift
	return &copyShift, nil
}

func (s *Store) GetActiveShift(_ context.Context, branchID string, terminalID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := shiftMapKey(branchID, terminalID)
	shiftID, exists := s.activeShiftKey[key]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNotFound
	}
	copyShift := shift
	return &copyShift, nil
}

func (s *Store) GetShiftByID(_ context.Context, shiftID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, exists := s.shiftsByID[shiftID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyShift := shift
	return &copyShift, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ShiftID == "" || len(order.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.shiftsByID[order.ShiftID]; !exists {
		return nil, store.ErrNotFound
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

	copyOrder := cloneOrder(&order)
	s.ordersByID[order.ID] = copyOrder
	s.orderIDsByShift[order.ShiftID] = append(s.orderIDsByShift[order.ShiftID], order.ID)
	return cloneOrder(copyOrder), nil
}

func (s *Store) GetOrderByID(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[orderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID string, status string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.ordersByID[orderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = at
	return cloneOrder(order), nil
}

func (s *Store) AppendPayments(_ context.Context, orderID string, payments []domain.Payment, status string, at time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(payments) == 0 {
		return nil, store.ErrInvalidInput
	}
	order, exists := s.ordersByID[orderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	order.Payments = append(order.Payments, payments...)
	order.Status = status
	order.UpdatedAt = at
	return cloneOrder(order), nil
}

func (s *Store) ListOrdersByShift(_ context.Context, shiftID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.orderIDsByShift[shiftID]
	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if order, exists := s.ordersByID[id]; exists {
			orders = append(orders, *cloneOrder(order))
		}
	}
	return orders, nil
}

func (s *Store) CreateRefund(_ context.Context, refund domain.Refund) (*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if refund.OrderID == "" || refund.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.ordersByID[refund.OrderID]; !exists {
		return nil, store.ErrNotFound
	}
	if refund.ID == "" {
		refund.ID = xid.New("refund")
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = time.Now().UTC()
	}

	s.refundsByID[refund.ID] = refund
	created := refund
	return &created, nil
}

func (s *Store) SumRefundsByOrder(_ context.Context, orderID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, refund := range s.refundsByID {
		if refund.OrderID != orderID {
			continue
		}
		total += refund.AmountCents
	}
	return total, nil
}

func (s *Store) ListRefundsForOrders(_ context.Context, orderIDs []string) ([]domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		idSet[id] = struct{}{}
	}

	result := make([]domain.Refund, 0, 16)
	for _, refund := range s.refundsByID {
		if _, ok := idSet[refund.OrderID]; !ok {
			continue
		}
		result = append(result, refund)
	}

	slices.SortFunc(result, func(a, b domain.Refund) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateCashTransaction(_ context.Context, tx domain.CashTransaction) (*domain.CashTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ShiftID == "" || tx.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if tx.Type != domain.CashTxTypeIn && tx.Type != domain.CashTxTypeOut {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.shiftsByID[tx.ShiftID]; !exists {
		return nil, store.ErrNotFound
	}
	if tx.ID == "" {
		tx.ID = xid.New("cashtx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	s.cashTxsByShift[tx.ShiftID] = append(s.cashTxsByShift[tx.ShiftID], tx)
	created := tx
	return &created, nil
}

func (s *Store) ListCashTransactionsByShift(_ context.Context, shiftID string) ([]domain.CashTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.cashTxsByShift[shiftID]
	result := make([]domain.CashTransaction, len(txs))
	copy(result, txs)
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func shiftMapKey(branchID string, terminalID string) string {
	return branchID + "::" + terminalID
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneOrder(src *domain.Order) *domain.Order {
	if src == nil {
		return nil
	}
	dup := *src
	lines := make([]domain.OrderLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	payments := make([]domain.Payment, len(src.Payments))
	copy(payments, src.Payments)
	dup.Payments = payments
	return &dup
}
