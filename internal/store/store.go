package store

import (
	"context"
	"errors"
	"time"

	"mejapos/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type Repository interface {
	ListMenuItems(ctx context.Context) ([]domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	GetMenuItemByCode(ctx context.Context, code string) (*domain.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	GetMenuItemsByCodes(ctx context.Context, codes []string) (map[string]domain.MenuItem, error)

	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	CloseActiveShift(ctx context.Context, branchID string, terminalID string, closingCashCents int64, closedAt time.Time) (*domain.Shift, error)
	GetActiveShift(ctx context.Context, branchID string, terminalID string) (*domain.Shift, error)
	GetShiftByID(ctx context.Context, shiftID string) (*domain.Shift, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status string, at time.Time) (*domain.Order, error)
	AppendPayments(ctx context.Context, orderID string, payments []domain.Payment, status string, at time.Time) (*domain.Order, error)
	ListOrdersByShift(ctx context.Context, shiftID string) ([]domain.Order, error)

	CreateRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error)
	SumRefundsByOrder(ctx context.Context, orderID string) (int64, error)
	ListRefundsForOrders(ctx context.Context, orderIDs []string) ([]domain.Refund, error)

	CreateCashTransaction(ctx context.Context, tx domain.CashTransaction) (*domain.CashTransaction, error)
	ListCashTransactionsByShift(ctx context.Context, shiftID string) ([]domain.CashTransaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
