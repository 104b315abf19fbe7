package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/service"
	"mejapos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/menu", a.requireAuth(a.handleMenu, "cashier", "admin"))
	mux.HandleFunc("/api/v1/menu/", a.requireAuth(a.handleMenuActions, "admin"))

	mux.HandleFunc("/api/v1/shifts/open", a.requireAuth(a.handleShiftOpen, "cashier", "admin"))
	mux.HandleFunc("/api/v1/shifts/close", a.requireAuth(a.handleShiftClose, "cashier", "admin"))
	mux.HandleFunc("/api/v1/shifts/active", a.requireAuth(a.handleShiftActive, "cashier", "admin"))
	mux.HandleFunc("/api/v1/shifts/", a.requireAuth(a.handleShiftActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/orders", a.requireAuth(a.handleOrders, "cashier", "admin"))
	mux.HandleFunc("/api/v1/orders/", a.requireAuth(a.handleOrderActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/refunds", a.requireAuth(a.handleRefunds, "admin"))
	mux.HandleFunc("/api/v1/cash-transactions", a.requireAuth(a.handleCashTransactions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/reports/shift/", a.requireAuth(a.handleShiftReport, "cashier", "admin"))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "admin"))
	mux.HandleFunc("/api/v1/users/staff", a.requireAuth(a.handleStaff, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
// Login is excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods (POST/PUT/PATCH).
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleMenu(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.service.ListMenuItems(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		actor, ok := service.ActorFromContext(r.Context())
		if !ok || actor.Role != "admin" {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		var req domain.MenuItemCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		item, err := a.service.CreateMenuItem(r.Context(), req)
		if err != nil {
			writeError(w, statusForServiceError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMenuActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/menu/"
	code := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if code == "" {
		writeError(w, http.StatusBadRequest, errors.New("menu code required"))
		return
	}

	var req domain.MenuItemUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := a.service.UpdateMenuItem(r.Context(), code, req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"item": updated})
}

func (a *API) handleShiftOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.OpenShift(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CloseShift(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	branchID := r.URL.Query().Get("branch_id")
	terminalID := r.URL.Query().Get("terminal_id")
	resp, err := a.service.GetActiveShift(r.Context(), branchID, terminalID)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/shifts/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if !strings.HasSuffix(tail, "/orders") {
		writeError(w, http.StatusBadRequest, errors.New("unknown shift action"))
		return
	}
	shiftID := strings.Trim(strings.TrimSuffix(tail, "/orders"), "/")
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, errors.New("shift id required"))
		return
	}

	resp, err := a.service.ListShiftOrders(r.Context(), shiftID)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.OrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/orders/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("order id required"))
		return
	}

	if r.Method == http.MethodGet {
		resp, err := a.service.GetOrder(r.Context(), tail)
		if err != nil {
			writeError(w, statusForServiceError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	slash := strings.LastIndex(tail, "/")
	if slash < 1 {
		writeError(w, http.StatusBadRequest, errors.New("unknown order action"))
		return
	}
	orderID := tail[:slash]
	action := tail[slash+1:]

	var (
		resp domain.OrderResponse
		err  error
	)
	switch action {
	case "pay":
		var req domain.OrderPayRequest
		if decodeErr := decodeJSON(r, &req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		req.OrderID = orderID
		resp, err = a.service.PayOrder(r.Context(), req)
	case "hold":
		resp, err = a.service.HoldOrder(r.Context(), orderID)
	case "resume":
		resp, err = a.service.ResumeOrder(r.Context(), orderID)
	case "cancel":
		resp, err = a.service.CancelOrder(r.Context(), orderID)
	case "void":
		actor, ok := service.ActorFromContext(r.Context())
		if !ok || actor.Role != "admin" {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		if decodeErr := decodeJSON(r, &req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, decodeErr)
			return
		}
		resp, err = a.service.VoidOrder(r.Context(), orderID, req.Reason)
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown order action"))
		return
	}
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRefunds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RefundCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RefundOrder(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleCashTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CashTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RecordCashTransaction(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleShiftReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/reports/shift/"
	shiftID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, errors.New("shift id required"))
		return
	}

	report, err := a.service.ComputeShiftReport(r.Context(), shiftID)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, errors.New("shift not found"))
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"shift-report-%s.csv\"", report.ShiftID))
		_, _ = w.Write([]byte(shiftReportToCSV(*report)))
	case "pdf":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(shiftReportToPrintableHTML(*report)))
	default:
		writeJSON(w, http.StatusOK, domain.ShiftReportResponse{Report: *report})
	}
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	branchID := r.URL.Query().Get("branch_id")
	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), branchID, date, limit)
	if err != nil {
		writeError(w, statusForServiceError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleStaff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		staff := a.auth.ListStaff()
		writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
	case http.MethodPost:
		var req domain.StaffCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		user, err := a.auth.CreateStaff(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
	default:
		writeMethodNotAllowed(w)
	}
}

func statusForServiceError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case strings.Contains(strings.ToLower(err.Error()), "admin role required"):
		return http.StatusForbidden
	case strings.Contains(strings.ToLower(err.Error()), "active shift required"):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func shiftReportToCSV(report domain.ShiftReport) string {
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,shift_id,%s", report.ShiftID),
		fmt.Sprintf("summary,total_orders,%d", report.TotalOrders),
		fmt.Sprintf("summary,cancelled_orders,%d", report.CancelledOrders),
		fmt.Sprintf("sales,gross_sales_cents,%d", report.GrossSalesCents),
		fmt.Sprintf("sales,gross_net_sales_cents,%d", report.GrossNetSalesCents),
		fmt.Sprintf("sales,gross_tax_cents,%d", report.GrossTaxCents),
		fmt.Sprintf("sales,gross_service_charge_cents,%d", report.GrossServiceChargeCents),
		fmt.Sprintf("sales,total_discounts_cents,%d", report.TotalDiscountsCents),
		fmt.Sprintf("payments,gross_cash_payments_cents,%d", report.GrossCashPaymentsCents),
		fmt.Sprintf("payments,gross_card_payments_cents,%d", report.GrossCardPaymentsCents),
		fmt.Sprintf("payments,gross_mobile_payments_cents,%d", report.GrossMobilePaymentsCents),
		fmt.Sprintf("payments,net_cash_payments_cents,%d", report.NetCashPaymentsCents),
		fmt.Sprintf("payments,net_card_payments_cents,%d", report.NetCardPaymentsCents),
		fmt.Sprintf("payments,net_mobile_payments_cents,%d", report.NetMobilePaymentsCents),
		fmt.Sprintf("refunds,refund_count,%d", report.RefundCount),
		fmt.Sprintf("refunds,refunds_total_cents,%d", report.RefundsTotalCents),
		fmt.Sprintf("refunds,refund_subtotal_cents,%d", report.RefundSubtotalCents),
		fmt.Sprintf("refunds,refund_tax_cents,%d", report.RefundTaxCents),
		fmt.Sprintf("refunds,refund_service_charge_cents,%d", report.RefundServiceChargeCents),
		fmt.Sprintf("refunds,cash_refunds_cents,%d", report.CashRefundsCents),
		fmt.Sprintf("refunds,card_refunds_cents,%d", report.CardRefundsCents),
		fmt.Sprintf("refunds,mobile_refunds_cents,%d", report.MobileRefundsCents),
		fmt.Sprintf("adjusted,adjusted_sales_cents,%d", report.AdjustedSalesCents),
		fmt.Sprintf("adjusted,adjusted_net_sales_cents,%d", report.AdjustedNetSalesCents),
		fmt.Sprintf("adjusted,adjusted_tax_cents,%d", report.AdjustedTaxCents),
		fmt.Sprintf("adjusted,adjusted_service_charge_cents,%d", report.AdjustedServiceChargeCents),
		fmt.Sprintf("drawer,opening_cash_cents,%d", report.OpeningCashCents),
		fmt.Sprintf("drawer,cash_in_cents,%d", report.CashInCents),
		fmt.Sprintf("drawer,cash_out_cents,%d", report.CashOutCents),
		fmt.Sprintf("drawer,expected_cash_cents,%d", report.ExpectedCashCents),
	}
	if report.ClosingCashCents != nil {
		lines = append(lines, fmt.Sprintf("drawer,closing_cash_cents,%d", *report.ClosingCashCents))
	}
	if report.CashDifferenceCents != nil {
		lines = append(lines, fmt.Sprintf("drawer,cash_difference_cents,%d", *report.CashDifferenceCents))
	}
	return strings.Join(lines, "\n") + "\n"
}

// shiftReportHTMLTmpl is the html/template used to render printable shift reports.
// All user-controlled fields are auto-escaped by html/template to prevent XSS.
var shiftReportHTMLTmpl = template.Must(template.New("shift-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Shift Report {{.ShiftID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Shift Report {{.ShiftID}}</h2>
  <p>Opened: {{.OpenedAt.Format "2006-01-02 15:04"}}{{if .ClosedAt}} | Closed: {{.ClosedAt.Format "2006-01-02 15:04"}}{{end}}</p>
  <p>Orders: {{.TotalOrders}} (cancelled: {{.CancelledOrders}})</p>

  <h3>Sales</h3>
  <table>
    <tbody>
      <tr><td>Gross sales</td><td class="num">{{.GrossSalesCents}}</td></tr>
      <tr><td>Gross net sales</td><td class="num">{{.GrossNetSalesCents}}</td></tr>
      <tr><td>Tax</td><td class="num">{{.GrossTaxCents}}</td></tr>
      <tr><td>Service charge</td><td class="num">{{.GrossServiceChargeCents}}</td></tr>
      <tr><td>Discounts</td><td class="num">{{.TotalDiscountsCents}}</td></tr>
      <tr><td>Refunds ({{.RefundCount}})</td><td class="num">{{.RefundsTotalCents}}</td></tr>
      <tr><td>Adjusted sales</td><td class="num">{{.AdjustedSalesCents}}</td></tr>
      <tr><td>Adjusted net sales</td><td class="num">{{.AdjustedNetSalesCents}}</td></tr>
    </tbody>
  </table>

  <h3>Payments</h3>
  <table>
    <thead><tr><th>Bucket</th><th>Gross</th><th>Refunds</th><th>Net</th></tr></thead>
    <tbody>
      <tr><td>Cash</td><td class="num">{{.GrossCashPaymentsCents}}</td><td class="num">{{.CashRefundsCents}}</td><td class="num">{{.NetCashPaymentsCents}}</td></tr>
      <tr><td>Card</td><td class="num">{{.GrossCardPaymentsCents}}</td><td class="num">{{.CardRefundsCents}}</td><td class="num">{{.NetCardPaymentsCents}}</td></tr>
      <tr><td>Mobile</td><td class="num">{{.GrossMobilePaymentsCents}}</td><td class="num">{{.MobileRefundsCents}}</td><td class="num">{{.NetMobilePaymentsCents}}</td></tr>
    </tbody>
  </table>

  <h3>Drawer</h3>
  <table>
    <tbody>
      <tr><td>Opening cash</td><td class="num">{{.OpeningCashCents}}</td></tr>
      <tr><td>Cash in</td><td class="num">{{.CashInCents}}</td></tr>
      <tr><td>Cash out</td><td class="num">{{.CashOutCents}}</td></tr>
      <tr><td>Expected cash</td><td class="num">{{.ExpectedCashCents}}</td></tr>
      {{if .ClosingCashCents}}<tr><td>Closing cash</td><td class="num">{{.ClosingCashCents}}</td></tr>{{end}}
      {{if .CashDifferenceCents}}<tr><td>Difference</td><td class="num">{{.CashDifferenceCents}}</td></tr>{{end}}
    </tbody>
  </table>
</body>
</html>
`))

func shiftReportToPrintableHTML(report domain.ShiftReport) string {
	var buf bytes.Buffer
	if err := shiftReportHTMLTmpl.Execute(&buf, report); err != nil {
		// Fallback: return a plain-text error page rather than leaking internal details.
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
