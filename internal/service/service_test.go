package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/store"
	"mejapos/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, nil, time.Hour, "main-branch")
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     "admin",
	})
}

func openTestShift(t *testing.T, svc *Service, openingCash int64) domain.Shift {
	t.Helper()
	resp, err := svc.OpenShift(context.Background(), domain.ShiftOpenRequest{
		BranchID:         "main-branch",
		TerminalID:       "terminal-a1",
		CashierName:      "Kasir A",
		OpeningCashCents: openingCash,
	})
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}
	return resp.Shift
}

func placePaidOrder(t *testing.T, svc *Service, items []domain.OrderItemRequest, payments ...domain.PaymentRequest) domain.Order {
	t.Helper()
	placed, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		TerminalID: "terminal-a1",
		TableLabel: "T1",
		Items:      items,
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if len(payments) == 0 {
		payments = []domain.PaymentRequest{{Method: "cash", AmountCents: placed.Order.TotalCents}}
	}
	paid, err := svc.PayOrder(context.Background(), domain.OrderPayRequest{
		OrderID:  placed.Order.ID,
		Payments: payments,
	})
	if err != nil {
		t.Fatalf("pay order failed: %v", err)
	}
	return paid.Order
}

func TestPlaceOrderRequiresActiveShift(t *testing.T) {
	svc := newTestService()

	_, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		TerminalID: "terminal-a1",
		Items: []domain.OrderItemRequest{
			{MenuCode: "NASI-GORENG", Qty: 1},
		},
	})
	if err == nil {
		t.Fatalf("expected place order to fail when no shift is open")
	}
}

func TestPlaceOrderComputesTotalsFromMenuPrices(t *testing.T) {
	svc := newTestService()
	openTestShift(t, svc, 250000)

	resp, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		TerminalID: "terminal-a1",
		Items: []domain.OrderItemRequest{
			{MenuCode: "nasi-goreng", Qty: 2},
			{MenuCode: "ES-TEH", Qty: 2},
		},
		DiscountType:         domain.DiscountTypePercentage,
		DiscountValue:        10,
		ServiceChargePercent: 5,
		TaxRatePercent:       10,
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	order := resp.Order
	if order.SubtotalCents != 9200000 {
		t.Fatalf("expected subtotal 9200000, got %d", order.SubtotalCents)
	}
	// base = 9200000 - 920000 = 8280000
	if order.ServiceChargeCents != 414000 {
		t.Fatalf("expected service charge 414000, got %d", order.ServiceChargeCents)
	}
	if order.TaxCents != 869400 {
		t.Fatalf("expected tax 869400, got %d", order.TaxCents)
	}
	if order.TotalCents != 9563400 {
		t.Fatalf("expected total 9563400, got %d", order.TotalCents)
	}
	if order.Status != domain.OrderStatusOpen {
		t.Fatalf("expected open order, got %s", order.Status)
	}
}

func TestPlaceOrderRejectsUnknownMenuCode(t *testing.T) {
	svc := newTestService()
	openTestShift(t, svc, 250000)

	_, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		TerminalID: "terminal-a1",
		Items: []domain.OrderItemRequest{
			{MenuCode: "DOES-NOT-EXIST", Qty: 1},
		},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestPayOrderRejectsMismatchedAmount(t *testing.T) {
	svc := newTestService()
	openTestShift(t, svc, 250000)

	placed, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		TerminalID: "terminal-a1",
		Items: []domain.OrderItemRequest{
			{MenuCode: "KERUPUK", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	_, err = svc.PayOrder(context.Background(), domain.OrderPayRequest{
		OrderID: placed.Order.ID,
		Payments: []domain.PaymentRequest{
			{Method: "cash", AmountCents: placed.Order.TotalCents - 1},
		},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for underpayment, got %v", err)
	}
}

func TestPayOrderSplitAcrossMethodsSettlesOrder(t *testing.T) {
	svc := newTestService()
	openTestShift(t, svc, 250000)

	placed, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		TerminalID: "terminal-a1",
		Items: []domain.OrderItemRequest{
			{MenuCode: "AYAM-BAKAR", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	total := placed.Order.TotalCents

	paid, err := svc.PayOrder(context.Background(), domain.OrderPayRequest{
		OrderID: placed.Order.ID,
		Payments: []domain.PaymentRequest{
			{Method: "cash", AmountCents: total / 2},
			{Method: "qris", AmountCents: total - total/2, Reference: "QR-001"},
		},
	})
	if err != nil {
		t.Fatalf("pay order failed: %v", err)
	}
	if paid.Order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid status, got %s", paid.Order.Status)
	}
	if len(paid.Order.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(paid.Order.Payments))
	}
}

func TestPayOrderRequiresReferenceForNonCash(t *testing.T) {
	svc := newTestService()
	openTestShift(t, svc, 250000)

	placed, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		TerminalID: "terminal-a1",
		Items: []domain.OrderItemRequest{
			{MenuCode: "ES-TEH", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	_, err = svc.PayOrder(context.Background(), domain.OrderPayRequest{
		OrderID: placed.Order.ID,
		Payments: []domain.PaymentRequest{
			{Method: "card", AmountCents: placed.Order.TotalCents},
		},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing reference, got %v", err)
	}
}

func TestVoidOrderRequiresAdmin(t *testing.T) {
	svc := newTestService()
	openTestShift(t, svc, 250000)
	order := placePaidOrder(t, svc, []domain.OrderItemRequest{{MenuCode: "ES-TEH", Qty: 1}})

	cashierCtx := WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
	if _, err := svc.VoidOrder(cashierCtx, order.ID, "wrong table"); err == nil {
		t.Fatalf("expected void to be rejected for cashier role")
	}

	voided, err := svc.VoidOrder(adminCtx(), order.ID, "wrong table")
	if err != nil {
		t.Fatalf("void failed for admin: %v", err)
	}
	if voided.Order.Status != domain.OrderStatusVoided {
		t.Fatalf("expected voided status, got %s", voided.Order.Status)
	}
}

func TestRefundLifecycleCapsCumulativeAmount(t *testing.T) {
	svc := newTestService()
	openTestShift(t, svc, 250000)
	order := placePaidOrder(t, svc, []domain.OrderItemRequest{{MenuCode: "SATE-AYAM", Qty: 1}})

	half := order.TotalCents / 2
	if _, err := svc.RefundOrder(adminCtx(), domain.RefundCreateRequest{
		OrderID:     order.ID,
		AmountCents: half,
		Reason:      "cold food",
	}); err != nil {
		t.Fatalf("first refund failed: %v", err)
	}

	after, err := svc.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if after.Order.Status != domain.OrderStatusRefunded {
		t.Fatalf("expected refunded status, got %s", after.Order.Status)
	}

	_, err = svc.RefundOrder(adminCtx(), domain.RefundCreateRequest{
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Reason:      "over refund",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected cumulative refund cap to reject, got %v", err)
	}
}

func TestHoldAndResumeOrder(t *testing.T) {
	svc := newTestService()
	openTestShift(t, svc, 250000)

	placed, err := svc.PlaceOrder(context.Background(), domain.OrderCreateRequest{
		TerminalID: "terminal-a1",
		Items: []domain.OrderItemRequest{
			{MenuCode: "GADO-GADO", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	held, err := svc.HoldOrder(context.Background(), placed.Order.ID)
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	if held.Order.Status != domain.OrderStatusHeld {
		t.Fatalf("expected held status, got %s", held.Order.Status)
	}

	resumed, err := svc.ResumeOrder(context.Background(), placed.Order.ID)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.Order.Status != domain.OrderStatusOpen {
		t.Fatalf("expected open status, got %s", resumed.Order.Status)
	}

	if _, err := svc.HoldOrder(context.Background(), held.Order.ID); err != nil {
		t.Fatalf("second hold failed: %v", err)
	}
	if _, err := svc.CancelOrder(context.Background(), held.Order.ID); err != nil {
		t.Fatalf("cancel of held order failed: %v", err)
	}
}

func TestRecordCashTransactionRequiresActiveShift(t *testing.T) {
	svc := newTestService()

	_, err := svc.RecordCashTransaction(context.Background(), domain.CashTransactionRequest{
		TerminalID:  "terminal-a1",
		Type:        domain.CashTxTypeIn,
		AmountCents: 100000,
	})
	if err == nil {
		t.Fatalf("expected cash transaction to fail when no shift is open")
	}
}

func TestComputeShiftReportUnknownShiftReturnsNil(t *testing.T) {
	svc := newTestService()

	report, err := svc.ComputeShiftReport(context.Background(), "shift-does-not-exist")
	if err != nil {
		t.Fatalf("expected nil error for unknown shift, got %v", err)
	}
	if report != nil {
		t.Fatalf("expected nil report for unknown shift")
	}
}

func TestComputeShiftReportEndToEnd(t *testing.T) {
	svc := newTestService()
	shift := openTestShift(t, svc, 5000000)

	order := placePaidOrder(t, svc, []domain.OrderItemRequest{{MenuCode: "KERUPUK", Qty: 1}})
	if order.TotalCents != 500000 {
		t.Fatalf("expected total 500000, got %d", order.TotalCents)
	}

	if _, err := svc.RecordCashTransaction(context.Background(), domain.CashTransactionRequest{
		TerminalID:  "terminal-a1",
		Type:        domain.CashTxTypeIn,
		AmountCents: 100000,
		Note:        "change top-up",
	}); err != nil {
		t.Fatalf("cash transaction failed: %v", err)
	}

	if _, err := svc.CloseShift(context.Background(), domain.ShiftCloseRequest{
		TerminalID:       "terminal-a1",
		ClosingCashCents: 5600000,
	}); err != nil {
		t.Fatalf("close shift failed: %v", err)
	}

	report, err := svc.ComputeShiftReport(context.Background(), shift.ID)
	if err != nil {
		t.Fatalf("compute report failed: %v", err)
	}
	if report == nil {
		t.Fatalf("expected report")
	}
	if report.GrossSalesCents != 500000 {
		t.Fatalf("expected gross sales 500000, got %d", report.GrossSalesCents)
	}
	if report.GrossCashPaymentsCents != 500000 {
		t.Fatalf("expected gross cash 500000, got %d", report.GrossCashPaymentsCents)
	}
	if report.ExpectedCashCents != 5600000 {
		t.Fatalf("expected cash 5600000, got %d", report.ExpectedCashCents)
	}
	if report.CashDifferenceCents == nil || *report.CashDifferenceCents != 0 {
		t.Fatalf("expected zero cash difference, got %v", report.CashDifferenceCents)
	}
}

type countingReportCache struct {
	mu      sync.Mutex
	entries map[string]*domain.ShiftReport
	sets    int
	hits    int
}

func newCountingReportCache() *countingReportCache {
	return &countingReportCache{entries: map[string]*domain.ShiftReport{}}
}

func (c *countingReportCache) Get(_ context.Context, shiftID string) (*domain.ShiftReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.entries[shiftID]
	if ok {
		c.hits++
	}
	return report, ok, nil
}

func (c *countingReportCache) Set(_ context.Context, shiftID string, report *domain.ShiftReport, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[shiftID] = report
	c.sets++
	return nil
}

func TestComputeShiftReportCachesClosedShiftsOnly(t *testing.T) {
	repo := memory.NewSeeded()
	reportCache := newCountingReportCache()
	svc := New(repo, reportCache, time.Hour, "main-branch")

	shift := openTestShift(t, svc, 250000)
	placePaidOrder(t, svc, []domain.OrderItemRequest{{MenuCode: "ES-TEH", Qty: 1}})

	if _, err := svc.ComputeShiftReport(context.Background(), shift.ID); err != nil {
		t.Fatalf("preview report failed: %v", err)
	}
	if reportCache.sets != 0 {
		t.Fatalf("expected no cache writes for open shift, got %d", reportCache.sets)
	}

	if _, err := svc.CloseShift(context.Background(), domain.ShiftCloseRequest{
		TerminalID:       "terminal-a1",
		ClosingCashCents: 300000,
	}); err != nil {
		t.Fatalf("close shift failed: %v", err)
	}

	if _, err := svc.ComputeShiftReport(context.Background(), shift.ID); err != nil {
		t.Fatalf("first closed report failed: %v", err)
	}
	if reportCache.sets != 1 {
		t.Fatalf("expected one cache write after close, got %d", reportCache.sets)
	}

	if _, err := svc.ComputeShiftReport(context.Background(), shift.ID); err != nil {
		t.Fatalf("second closed report failed: %v", err)
	}
	if reportCache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", reportCache.hits)
	}
	if reportCache.sets != 1 {
		t.Fatalf("expected no extra cache writes, got %d", reportCache.sets)
	}
}

func TestCreateMenuItemRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateMenuItem(context.Background(), domain.MenuItemCreateRequest{
		Code:       "SOTO-AYAM",
		Name:       "Soto Ayam",
		Category:   "main",
		PriceCents: 3000000,
	})
	if err == nil {
		t.Fatalf("expected menu create to be rejected without admin actor")
	}

	created, err := svc.CreateMenuItem(adminCtx(), domain.MenuItemCreateRequest{
		Code:       "soto-ayam",
		Name:       "Soto Ayam",
		Category:   "main",
		PriceCents: 3000000,
	})
	if err != nil {
		t.Fatalf("menu create failed for admin: %v", err)
	}
	if created.Code != "SOTO-AYAM" {
		t.Fatalf("expected normalized code SOTO-AYAM, got %s", created.Code)
	}
}
