package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"mejapos/backend/internal/domain"
)

func domainShift(branchID string, terminalID string) domain.Shift {
	return domain.Shift{
		BranchID:         branchID,
		TerminalID:       terminalID,
		CashierName:      "Kasir IT",
		OpeningCashCents: 5000000,
	}
}

func orderForShift(shiftID string, branchID string, menuCode string, at time.Time) domain.Order {
	return domain.Order{
		ShiftID:       shiftID,
		BranchID:      branchID,
		TableLabel:    "T1",
		Status:        "open",
		SubtotalCents: 2200000,
		DiscountType:  "none",
		TotalCents:    2200000,
		Lines: []domain.OrderLine{
			{MenuCode: menuCode, Name: "Kopi IT", Qty: 1, UnitPriceCents: 2200000},
		},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func paymentsFor(orderID string, totalCents int64, at time.Time) []domain.Payment {
	return []domain.Payment{
		{OrderID: orderID, Method: "cash", AmountCents: totalCents / 2, ReceivedAt: at},
		{OrderID: orderID, Method: "qris", AmountCents: totalCents - totalCents/2, Reference: "QR-IT-1", ReceivedAt: at},
	}
}

func refundFor(orderID string, amountCents int64, at time.Time) domain.Refund {
	return domain.Refund{
		OrderID:     orderID,
		AmountCents: amountCents,
		Reason:      "integration test refund",
		CreatedAt:   at,
	}
}

func TestShiftOrderRefundRoundTrip(t *testing.T) {
	databaseURL := os.Getenv("MEJAPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set MEJAPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	branchID := fmt.Sprintf("branch-it-%d", stamp)
	terminalID := "T-IT-1"
	menuCode := fmt.Sprintf("IT-KOPI-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM refunds WHERE order_id IN (SELECT id FROM orders WHERE branch_id = $1)`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE order_id IN (SELECT id FROM orders WHERE branch_id = $1)`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id IN (SELECT id FROM orders WHERE branch_id = $1)`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE branch_id = $1`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_transactions WHERE shift_id IN (SELECT id FROM shifts WHERE branch_id = $1)`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shifts WHERE branch_id = $1`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM menu_items WHERE code = $1`, menuCode)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO menu_items (code, name, category, price_cents, active, created_at, updated_at)
		VALUES ($1, 'Kopi IT', 'beverage', 2200000, true, now(), now())
	`, menuCode); err != nil {
		t.Fatalf("insert menu item: %v", err)
	}

	shift, err := s.CreateShift(ctx, domainShift(branchID, terminalID))
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}

	if _, err := s.CreateShift(ctx, domainShift(branchID, terminalID)); err == nil {
		t.Fatalf("expected second open shift on same terminal to conflict")
	}

	now := time.Now().UTC()
	order, err := s.CreateOrder(ctx, orderForShift(shift.ID, branchID, menuCode, now))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	paid, err := s.AppendPayments(ctx, order.ID, paymentsFor(order.ID, 2200000, now), "paid", now)
	if err != nil {
		t.Fatalf("append payments: %v", err)
	}
	if paid.Status != "paid" || len(paid.Payments) != 2 {
		t.Fatalf("expected paid order with 2 payments, got %s/%d", paid.Status, len(paid.Payments))
	}

	if _, err := s.CreateRefund(ctx, refundFor(order.ID, 1000000, now)); err != nil {
		t.Fatalf("create refund: %v", err)
	}
	total, err := s.SumRefundsByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("sum refunds: %v", err)
	}
	if total != 1000000 {
		t.Fatalf("expected refund sum 1000000, got %d", total)
	}

	closed, err := s.CloseActiveShift(ctx, branchID, terminalID, 7500000, now)
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.ClosedAt == nil || closed.ClosingCashCents == nil || *closed.ClosingCashCents != 7500000 {
		t.Fatalf("expected closed shift with closing cash recorded")
	}

	orders, err := s.ListOrdersByShift(ctx, shift.ID)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 || len(orders[0].Payments) != 2 || len(orders[0].Lines) != 1 {
		t.Fatalf("expected one fully hydrated order, got %+v", orders)
	}
}
