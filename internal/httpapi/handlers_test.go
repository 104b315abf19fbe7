package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/service"
	"mejapos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, time.Hour, "main-branch")
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func fetchCSRFToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	return body["csrf_token"]
}

// doJSON issues an authenticated JSON request with a valid CSRF token attached
// to mutating methods.
func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, handler))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	// Fire 6 requests from the same "IP" (httptest uses RemoteAddr "192.0.2.1:1234").
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleMenu_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/menu", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleMenu_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/menu", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Items []domain.MenuItem `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Items) == 0 {
		t.Fatalf("expected seeded menu items")
	}
}

func TestShiftOrderPayReportFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/shifts/open", token, domain.ShiftOpenRequest{
		BranchID:         "main-branch",
		TerminalID:       "T1",
		CashierName:      "Sari",
		OpeningCashCents: 5000000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("open shift: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var shiftResp domain.ShiftResponse
	if err := json.NewDecoder(rec.Body).Decode(&shiftResp); err != nil {
		t.Fatalf("decode shift: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		BranchID:   "main-branch",
		TerminalID: "T1",
		Items: []domain.OrderItemRequest{
			{MenuCode: "KERUPUK", Qty: 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var orderResp domain.OrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&orderResp); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	order := orderResp.Order
	if order.TotalCents != 1000000 {
		t.Fatalf("expected total 1000000, got %d", order.TotalCents)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/"+order.ID+"/pay", token, domain.OrderPayRequest{
		Payments: []domain.PaymentRequest{
			{Method: "cash", AmountCents: order.TotalCents},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("pay order: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/shift/"+shiftResp.Shift.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("shift report: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var reportResp domain.ShiftReportResponse
	if err := json.NewDecoder(rec.Body).Decode(&reportResp); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if reportResp.Report.GrossCashPaymentsCents != 1000000 {
		t.Fatalf("expected gross cash 1000000, got %d", reportResp.Report.GrossCashPaymentsCents)
	}
	if reportResp.Report.ExpectedCashCents != 6000000 {
		t.Fatalf("expected drawer 6000000, got %d", reportResp.Report.ExpectedCashCents)
	}
}

func TestShiftReportCSVExport(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/shifts/open", token, domain.ShiftOpenRequest{
		BranchID:         "main-branch",
		TerminalID:       "T1",
		CashierName:      "Sari",
		OpeningCashCents: 2000000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("open shift: %d", rec.Code)
	}
	var shiftResp domain.ShiftResponse
	if err := json.NewDecoder(rec.Body).Decode(&shiftResp); err != nil {
		t.Fatalf("decode shift: %v", err)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/reports/shift/%s?format=csv", shiftResp.Shift.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv export: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "drawer,opening_cash_cents,2000000") {
		t.Fatalf("expected opening cash row in CSV, got:\n%s", rec.Body.String())
	}
}

func TestShiftReport_UnknownShiftReturns404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/shift/no-such-shift", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestVoidOrder_CashierForbidden(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/shifts/open", token, domain.ShiftOpenRequest{
		BranchID:         "main-branch",
		TerminalID:       "T1",
		CashierName:      "Sari",
		OpeningCashCents: 0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("open shift: %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		BranchID:   "main-branch",
		TerminalID: "T1",
		Items:      []domain.OrderItemRequest{{MenuCode: "ES-TEH", Qty: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order: %d", rec.Code)
	}
	var orderResp domain.OrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&orderResp); err != nil {
		t.Fatalf("decode order: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/"+orderResp.Order.ID+"/void", token, map[string]string{"reason": "wrong table"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier void, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRefunds_CashierForbidden(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/refunds", token, domain.RefundCreateRequest{
		OrderID:     "ord_x",
		AmountCents: 100,
		Reason:      "cold food",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestAuditLogs_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	cashierToken := loginAs(t, handler, "cashier", "cashier123")
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/audit-logs", cashierToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	adminToken := loginAs(t, handler, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/audit-logs", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/orders/ord_missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}
