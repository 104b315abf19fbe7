package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"mejapos/backend/internal/cache"
	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/report"
	"mejapos/backend/internal/store"
	"mejapos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	reports         cache.ShiftReportCache
	reportTTL       time.Duration
	defaultBranchID string
}

func New(repo store.Repository, reports cache.ShiftReportCache, reportTTL time.Duration, defaultBranchID string) *Service {
	if reports == nil {
		reports = cache.NoopShiftReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 72 * time.Hour
	}
	if defaultBranchID == "" {
		defaultBranchID = "main-branch"
	}

	return &Service{
		repo:            repo,
		reports:         reports,
		reportTTL:       reportTTL,
		defaultBranchID: defaultBranchID,
	}
}

func (s *Service) ListMenuItems(ctx context.Context) ([]domain.MenuItem, error) {
	return s.repo.ListMenuItems(ctx)
}

func (s *Service) CreateMenuItem(ctx context.Context, req domain.MenuItemCreateRequest) (domain.MenuItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.MenuItem{}, fmt.Errorf("admin role required")
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.Code == "" || req.Name == "" || req.Category == "" || req.PriceCents < 1 {
		return domain.MenuItem{}, store.ErrInvalidInput
	}

	item := domain.MenuItem{
		Code:       req.Code,
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Active:     true,
	}

	created, err := s.repo.CreateMenuItem(ctx, item)
	if err != nil {
		return domain.MenuItem{}, err
	}

	s.logAudit(ctx, s.defaultBranchID, "menu_create", "menu_item", created.Code, fmt.Sprintf("name=%s,price=%d", created.Name, created.PriceCents))
	return *created, nil
}

func (s *Service) UpdateMenuItem(ctx context.Context, code string, req domain.MenuItemUpdateRequest) (domain.MenuItem, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.MenuItem{}, fmt.Errorf("admin role required")
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.MenuItem{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetMenuItemByCode(ctx, code)
	if err != nil {
		return domain.MenuItem{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.MenuItem{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.MenuItem{}, store.ErrInvalidInput
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.MenuItem{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateMenuItem(ctx, updated)
	if err != nil {
		return domain.MenuItem{}, err
	}

	s.logAudit(ctx, s.defaultBranchID, "menu_update", "menu_item", saved.Code, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PriceCents))
	return *saved, nil
}

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftResponse, error) {
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	if req.TerminalID == "" || req.CashierName == "" {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}
	if req.OpeningCashCents < 0 {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	shift := domain.Shift{
		ID:               xid.New("shift"),
		BranchID:         req.BranchID,
		TerminalID:       req.TerminalID,
		CashierName:      req.CashierName,
		OpeningCashCents: req.OpeningCashCents,
		Status:           domain.ShiftStatusOpen,
		OpenedAt:         time.Now().UTC(),
	}
	saved, err := s.repo.CreateShift(ctx, shift)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.ShiftResponse{}, fmt.Errorf("shift already open")
		}
		return domain.ShiftResponse{}, err
	}

	s.logAudit(ctx, req.BranchID, "shift_open", "shift", saved.ID, req.CashierName)

	return domain.ShiftResponse{Shift: *saved}, nil
}

func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftResponse, error) {
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	if req.TerminalID == "" {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}
	if req.ClosingCashCents < 0 {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	closed, err := s.repo.CloseActiveShift(ctx, req.BranchID, req.TerminalID, req.ClosingCashCents, time.Now().UTC())
	if err != nil {
		return domain.ShiftResponse{}, err
	}
	s.logAudit(ctx, req.BranchID, "shift_close", "shift", closed.ID, fmt.Sprintf("closing_cash=%d", req.ClosingCashCents))

	return domain.ShiftResponse{Shift: *closed}, nil
}

func (s *Service) GetActiveShift(ctx context.Context, branchID string, terminalID string) (domain.ShiftResponse, error) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	if terminalID == "" {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	shift, err := s.repo.GetActiveShift(ctx, branchID, terminalID)
	if err != nil {
		return domain.ShiftResponse{}, err
	}

	return domain.ShiftResponse{Shift: *shift}, nil
}

func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderResponse, error) {
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	if req.TaxRatePercent < 0 || req.TaxRatePercent > 100 {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}
	if req.ServiceChargePercent < 0 || req.ServiceChargePercent > 100 {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}

	req.DiscountType = strings.ToLower(strings.TrimSpace(req.DiscountType))
	if req.DiscountType == "" {
		req.DiscountType = domain.DiscountTypeNone
	}
	switch req.DiscountType {
	case domain.DiscountTypeNone:
		req.DiscountValue = 0
	case domain.DiscountTypePercentage:
		if req.DiscountValue < 0 || req.DiscountValue > 100 {
			return domain.OrderResponse{}, store.ErrInvalidInput
		}
	case domain.DiscountTypeFixed:
		if req.DiscountValue < 0 {
			return domain.OrderResponse{}, store.ErrInvalidInput
		}
	default:
		return domain.OrderResponse{}, store.ErrInvalidInput
	}

	shift, err := s.GetActiveShift(ctx, req.BranchID, req.TerminalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OrderResponse{}, fmt.Errorf("active shift required")
		}
		return domain.OrderResponse{}, err
	}

	items := normalizeOrderItems(req.Items)
	if len(items) == 0 {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}

	codes := make([]string, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.MenuCode)
	}
	menu, err := s.repo.GetMenuItemsByCodes(ctx, codes)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	lines := make([]domain.OrderLine, 0, len(items))
	subtotal := int64(0)
	for _, item := range items {
		menuItem, exists := menu[item.MenuCode]
		if !exists {
			return domain.OrderResponse{}, store.ErrInvalidInput
		}
		lines = append(lines, domain.OrderLine{
			MenuCode:       menuItem.Code,
			Name:           menuItem.Name,
			Qty:            item.Qty,
			UnitPriceCents: menuItem.PriceCents,
		})
		subtotal += int64(item.Qty) * menuItem.PriceCents
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:            xid.New("ord"),
		ShiftID:       shift.Shift.ID,
		BranchID:      req.BranchID,
		TableLabel:    strings.TrimSpace(req.TableLabel),
		Status:        domain.OrderStatusOpen,
		SubtotalCents: subtotal,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Lines:         lines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	discount := report.DiscountAmountCents(order)
	if discount > subtotal {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}
	base := subtotal - discount
	order.ServiceChargeCents = int64(math.Round(float64(base) * req.ServiceChargePercent / 100))
	order.TaxCents = int64(math.Round(float64(base+order.ServiceChargeCents) * req.TaxRatePercent / 100))
	order.TotalCents = base + order.ServiceChargeCents + order.TaxCents

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	s.logAudit(ctx, req.BranchID, "order_place", "order", created.ID, fmt.Sprintf("total=%d,lines=%d,discount_type=%s", created.TotalCents, len(created.Lines), created.DiscountType))
	return domain.OrderResponse{Order: *created}, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.OrderResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *order}, nil
}

func (s *Service) ListShiftOrders(ctx context.Context, shiftID string) (domain.OrderListResponse, error) {
	shiftID = strings.TrimSpace(shiftID)
	if shiftID == "" {
		return domain.OrderListResponse{}, store.ErrInvalidInput
	}
	orders, err := s.repo.ListOrdersByShift(ctx, shiftID)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return domain.OrderListResponse{Orders: orders}, nil
}

// PayOrder settles an open or held order. The recorded payments must cover
// the total exactly; cash change is handled at the terminal and never
// stored. Payment methods are free-form identifiers; an unrecognized
// wallet is accepted here and left for the reconciliation report to
// classify as unsupported.
func (s *Service) PayOrder(ctx context.Context, req domain.OrderPayRequest) (domain.OrderResponse, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" || len(req.Payments) == 0 {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}

	order, err := s.repo.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if order.Status != domain.OrderStatusOpen && order.Status != domain.OrderStatusHeld {
		return domain.OrderResponse{}, fmt.Errorf("%w: order %s is %s", store.ErrConflict, order.ID, order.Status)
	}

	now := time.Now().UTC()
	payments := make([]domain.Payment, 0, len(req.Payments))
	paid := int64(0)
	for _, p := range req.Payments {
		method := strings.ToLower(strings.TrimSpace(p.Method))
		if method == "" || p.AmountCents < 1 {
			return domain.OrderResponse{}, store.ErrInvalidInput
		}
		if method != "cash" && strings.TrimSpace(p.Reference) == "" {
			return domain.OrderResponse{}, store.ErrInvalidInput
		}
		payments = append(payments, domain.Payment{
			ID:          xid.New("pay"),
			OrderID:     order.ID,
			Method:      method,
			AmountCents: p.AmountCents,
			Reference:   strings.TrimSpace(p.Reference),
			ReceivedAt:  now,
		})
		paid += p.AmountCents
	}
	if paid != order.TotalCents {
		return domain.OrderResponse{}, fmt.Errorf("%w: payments %d do not match total %d", store.ErrInvalidInput, paid, order.TotalCents)
	}

	settled, err := s.repo.AppendPayments(ctx, order.ID, payments, domain.OrderStatusPaid, now)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	s.logAudit(ctx, settled.BranchID, "order_pay", "order", settled.ID, fmt.Sprintf("total=%d,payments=%d", settled.TotalCents, len(payments)))
	return domain.OrderResponse{Order: *settled}, nil
}

func (s *Service) HoldOrder(ctx context.Context, orderID string) (domain.OrderResponse, error) {
	return s.transitionOrder(ctx, orderID, domain.OrderStatusHeld, "order_hold", domain.OrderStatusOpen)
}

func (s *Service) ResumeOrder(ctx context.Context, orderID string) (domain.OrderResponse, error) {
	return s.transitionOrder(ctx, orderID, domain.OrderStatusOpen, "order_resume", domain.OrderStatusHeld)
}

func (s *Service) CancelOrder(ctx context.Context, orderID string) (domain.OrderResponse, error) {
	return s.transitionOrder(ctx, orderID, domain.OrderStatusCancelled, "order_cancel", domain.OrderStatusOpen, domain.OrderStatusHeld)
}

// VoidOrder kills an already-settled order, admin only. Voided orders drop
// out of the reconciliation entirely, unlike refunded ones.
func (s *Service) VoidOrder(ctx context.Context, orderID string, reason string) (domain.OrderResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.OrderResponse{}, fmt.Errorf("admin role required")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "unspecified"
	}

	resp, err := s.transitionOrder(ctx, orderID, domain.OrderStatusVoided, "order_void", domain.OrderStatusPaid)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	s.logAudit(ctx, resp.Order.BranchID, "order_void_reason", "order", resp.Order.ID, reason)
	return resp, nil
}

func (s *Service) transitionOrder(ctx context.Context, orderID string, to string, action string, from ...string) (domain.OrderResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	allowed := false
	for _, status := range from {
		if order.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.OrderResponse{}, fmt.Errorf("%w: order %s is %s", store.ErrConflict, order.ID, order.Status)
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, to, time.Now().UTC())
	if err != nil {
		return domain.OrderResponse{}, err
	}

	s.logAudit(ctx, updated.BranchID, action, "order", updated.ID, fmt.Sprintf("from=%s,to=%s", order.Status, to))
	return domain.OrderResponse{Order: *updated}, nil
}

// RefundOrder records a partial or full refund against a settled order.
// Cumulative refunds may not exceed the order total. That invariant is
// enforced here, on the write path; the reconciliation report deliberately
// does not assume it and will surface violations as negative figures.
func (s *Service) RefundOrder(ctx context.Context, req domain.RefundCreateRequest) (domain.RefundResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.RefundResponse{}, fmt.Errorf("admin role required")
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" || req.AmountCents <= 0 {
		return domain.RefundResponse{}, store.ErrInvalidInput
	}

	order, err := s.repo.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return domain.RefundResponse{}, err
	}
	if order.Status != domain.OrderStatusPaid && order.Status != domain.OrderStatusRefunded {
		return domain.RefundResponse{}, fmt.Errorf("%w: order %s is %s", store.ErrConflict, order.ID, order.Status)
	}

	refundedSoFar, err := s.repo.SumRefundsByOrder(ctx, order.ID)
	if err != nil {
		return domain.RefundResponse{}, err
	}
	if refundedSoFar+req.AmountCents > order.TotalCents {
		return domain.RefundResponse{}, fmt.Errorf("%w: cumulative refund %d exceeds order total %d", store.ErrInvalidInput, refundedSoFar+req.AmountCents, order.TotalCents)
	}

	refund := domain.Refund{
		ID:          xid.New("refund"),
		OrderID:     order.ID,
		AmountCents: req.AmountCents,
		Reason:      strings.TrimSpace(req.Reason),
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.CreateRefund(ctx, refund)
	if err != nil {
		return domain.RefundResponse{}, err
	}

	if order.Status == domain.OrderStatusPaid {
		if _, err := s.repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusRefunded, refund.CreatedAt); err != nil {
			return domain.RefundResponse{}, err
		}
	}

	s.logAudit(ctx, order.BranchID, "order_refund", "order", order.ID, fmt.Sprintf("amount=%d,reason=%s", req.AmountCents, refund.Reason))
	return domain.RefundResponse{Refund: *created}, nil
}

func (s *Service) RecordCashTransaction(ctx context.Context, req domain.CashTransactionRequest) (domain.CashTransactionResponse, error) {
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Type != domain.CashTxTypeIn && req.Type != domain.CashTxTypeOut {
		return domain.CashTransactionResponse{}, store.ErrInvalidInput
	}
	if req.AmountCents < 1 {
		return domain.CashTransactionResponse{}, store.ErrInvalidInput
	}

	shift, err := s.GetActiveShift(ctx, req.BranchID, req.TerminalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CashTransactionResponse{}, fmt.Errorf("active shift required")
		}
		return domain.CashTransactionResponse{}, err
	}

	cashTx := domain.CashTransaction{
		ID:          xid.New("cashtx"),
		ShiftID:     shift.Shift.ID,
		Type:        req.Type,
		AmountCents: req.AmountCents,
		Note:        strings.TrimSpace(req.Note),
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.CreateCashTransaction(ctx, cashTx)
	if err != nil {
		return domain.CashTransactionResponse{}, err
	}

	s.logAudit(ctx, req.BranchID, "drawer_adjust", "cash_transaction", created.ID, fmt.Sprintf("type=%s,amount=%d", created.Type, created.AmountCents))
	return domain.CashTransactionResponse{CashTransaction: *created}, nil
}

// ComputeShiftReport loads a consistent ledger for the shift and folds it
// into the Z-report. A missing shift yields (nil, nil), a defined empty
// result, not an error. Any fetch failure aborts the whole computation;
// a partial report is never returned. Reports for closed shifts are served
// from cache when possible, since a closed shift is immutable.
func (s *Service) ComputeShiftReport(ctx context.Context, shiftID string) (*domain.ShiftReport, error) {
	shiftID = strings.TrimSpace(shiftID)
	if shiftID == "" {
		return nil, store.ErrInvalidInput
	}

	shift, err := s.repo.GetShiftByID(ctx, shiftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	closed := shift.ClosedAt != nil
	if closed {
		if cached, hit, cacheErr := s.reports.Get(ctx, shift.ID); cacheErr != nil {
			log.Printf("[service] WARN: report cache read failed shift=%s: %v", shift.ID, cacheErr)
		} else if hit {
			return cached, nil
		}
	}

	orders, err := s.repo.ListOrdersByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("load shift orders: %w", err)
	}

	orderIDs := make([]string, 0, len(orders))
	for _, order := range orders {
		orderIDs = append(orderIDs, order.ID)
	}
	refunds, err := s.repo.ListRefundsForOrders(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load shift refunds: %w", err)
	}

	cashTxs, err := s.repo.ListCashTransactionsByShift(ctx, shift.ID)
	if err != nil {
		return nil, fmt.Errorf("load shift cash transactions: %w", err)
	}

	rep := report.Compute(report.Ledger{
		Shift:            *shift,
		Orders:           orders,
		Refunds:          refunds,
		CashTransactions: cashTxs,
	})

	if closed {
		if cacheErr := s.reports.Set(ctx, shift.ID, &rep, s.reportTTL); cacheErr != nil {
			log.Printf("[service] WARN: report cache write failed shift=%s: %v", shift.ID, cacheErr)
		}
	}

	return &rep, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID string, date string, limit int) ([]domain.AuditLog, error) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, branchID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, branchID string, action string, entityType string, entityID string, detail string) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BranchID:      branchID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func normalizeOrderItems(items []domain.OrderItemRequest) []domain.OrderItemRequest {
	agg := make(map[string]int, len(items))
	ordered := make([]string, 0, len(items))
	for _, item := range items {
		code := strings.ToUpper(strings.TrimSpace(item.MenuCode))
		if code == "" || item.Qty < 1 {
			continue
		}
		if _, seen := agg[code]; !seen {
			ordered = append(ordered, code)
		}
		agg[code] += item.Qty
	}

	normalized := make([]domain.OrderItemRequest, 0, len(agg))
	for _, code := range ordered {
		normalized = append(normalized, domain.OrderItemRequest{MenuCode: code, Qty: agg[code]})
	}
	return normalized
}
