package domain

import "time"

type MenuItem struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Active     bool   `json:"active"`
}

type MenuItemCreateRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
}

type MenuItemUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type Shift struct {
	ID               string     `json:"id"`
	BranchID         string     `json:"branch_id"`
	TerminalID       string     `json:"terminal_id"`
	CashierName      string     `json:"cashier_name"`
	OpeningCashCents int64      `json:"opening_cash_cents"`
	ClosingCashCents *int64     `json:"closing_cash_cents,omitempty"`
	Status           string     `json:"status"`
	OpenedAt         time.Time  `json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}

type ShiftOpenRequest struct {
	BranchID         string `json:"branch_id"`
	TerminalID       string `json:"terminal_id"`
	CashierName      string `json:"cashier_name"`
	OpeningCashCents int64  `json:"opening_cash_cents"`
}

type ShiftCloseRequest struct {
	BranchID         string `json:"branch_id"`
	TerminalID       string `json:"terminal_id"`
	ClosingCashCents int64  `json:"closing_cash_cents"`
	Notes            string `json:"notes"`
}

type ShiftResponse struct {
	Shift Shift `json:"shift"`
}

type OrderLine struct {
	MenuCode       string `json:"menu_code"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Payment belongs to exactly one order and is immutable once recorded.
// Method is the raw identifier the terminal sent (e.g. "cash", "card",
// "gopay"); bucketing into settlement channels happens at report time.
type Payment struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Method      string    `json:"method"`
	AmountCents int64     `json:"amount_cents"`
	Reference   string    `json:"reference,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

type Order struct {
	ID                 string      `json:"id"`
	ShiftID            string      `json:"shift_id"`
	BranchID           string      `json:"branch_id"`
	TableLabel         string      `json:"table_label,omitempty"`
	Status             string      `json:"status"`
	SubtotalCents      int64       `json:"subtotal_cents"`
	TaxCents           int64       `json:"tax_cents"`
	ServiceChargeCents int64       `json:"service_charge_cents"`
	DiscountType       string      `json:"discount_type"`
	DiscountValue      float64     `json:"discount_value"`
	TotalCents         int64       `json:"total_cents"`
	Lines              []OrderLine `json:"lines"`
	Payments           []Payment   `json:"payments"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type OrderItemRequest struct {
	MenuCode string `json:"menu_code"`
	Qty      int    `json:"qty"`
}

type OrderCreateRequest struct {
	BranchID             string             `json:"branch_id"`
	TerminalID           string             `json:"terminal_id"`
	TableLabel           string             `json:"table_label"`
	Items                []OrderItemRequest `json:"items"`
	DiscountType         string             `json:"discount_type"`
	DiscountValue        float64            `json:"discount_value"`
	TaxRatePercent       float64            `json:"tax_rate_percent"`
	ServiceChargePercent float64            `json:"service_charge_percent"`
}

type PaymentRequest struct {
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference,omitempty"`
}

type OrderPayRequest struct {
	OrderID  string           `json:"order_id"`
	Payments []PaymentRequest `json:"payments"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

// Refund references its order by id only; the original payment method is
// not recorded, which is why the report has to attribute refunds back to
// settlement buckets proportionally.
type Refund struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

type RefundCreateRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

type RefundResponse struct {
	Refund Refund `json:"refund"`
}

// CashTransaction is a manual drawer adjustment (petty cash in, bank drop
// out) unrelated to sales.
type CashTransaction struct {
	ID          string    `json:"id"`
	ShiftID     string    `json:"shift_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CashTransactionRequest struct {
	BranchID    string `json:"branch_id"`
	TerminalID  string `json:"terminal_id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

type CashTransactionResponse struct {
	CashTransaction CashTransaction `json:"cash_transaction"`
}

// ShiftReport is the end-of-shift reconciliation (Z-report) result. All
// monetary fields are int64 minor units. Adjusted and net figures are
// deliberately not clamped at zero: a negative figure flags a data
// inconsistency to the auditor instead of hiding it.
type ShiftReport struct {
	ShiftID          string     `json:"shift_id"`
	OpenedAt         time.Time  `json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	OpeningCashCents int64      `json:"opening_cash_cents"`
	ClosingCashCents *int64     `json:"closing_cash_cents,omitempty"`

	TotalOrders     int `json:"total_orders"`
	CancelledOrders int `json:"cancelled_orders"`
	RefundCount     int `json:"refund_count"`

	GrossSalesCents          int64 `json:"gross_sales_cents"`
	GrossNetSalesCents       int64 `json:"gross_net_sales_cents"`
	GrossTaxCents            int64 `json:"gross_tax_cents"`
	GrossServiceChargeCents  int64 `json:"gross_service_charge_cents"`
	TotalDiscountsCents      int64 `json:"total_discounts_cents"`
	GrossCashPaymentsCents   int64 `json:"gross_cash_payments_cents"`
	GrossCardPaymentsCents   int64 `json:"gross_card_payments_cents"`
	GrossMobilePaymentsCents int64 `json:"gross_mobile_payments_cents"`

	RefundsTotalCents        int64 `json:"refunds_total_cents"`
	RefundTaxCents           int64 `json:"refund_tax_cents"`
	RefundServiceChargeCents int64 `json:"refund_service_charge_cents"`
	RefundSubtotalCents      int64 `json:"refund_subtotal_cents"`
	CashRefundsCents         int64 `json:"cash_refunds_cents"`
	CardRefundsCents         int64 `json:"card_refunds_cents"`
	MobileRefundsCents       int64 `json:"mobile_refunds_cents"`

	AdjustedSalesCents         int64 `json:"adjusted_sales_cents"`
	AdjustedNetSalesCents      int64 `json:"adjusted_net_sales_cents"`
	AdjustedTaxCents           int64 `json:"adjusted_tax_cents"`
	AdjustedServiceChargeCents int64 `json:"adjusted_service_charge_cents"`
	NetCashPaymentsCents       int64 `json:"net_cash_payments_cents"`
	NetCardPaymentsCents       int64 `json:"net_card_payments_cents"`
	NetMobilePaymentsCents     int64 `json:"net_mobile_payments_cents"`

	CashInCents         int64  `json:"cash_in_cents"`
	CashOutCents        int64  `json:"cash_out_cents"`
	ExpectedCashCents   int64  `json:"expected_cash_cents"`
	CashDifferenceCents *int64 `json:"cash_difference_cents,omitempty"`
}

type ShiftReportResponse struct {
	Report ShiftReport `json:"report"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	OrderStatusOpen      = "open"
	OrderStatusHeld      = "held"
	OrderStatusPaid      = "paid"
	OrderStatusRefunded  = "refunded"
	OrderStatusCancelled = "cancelled"
	OrderStatusVoided    = "voided"
)

const (
	DiscountTypeNone       = "none"
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

const (
	CashTxTypeIn  = "cash_in"
	CashTxTypeOut = "cash_out"
)
