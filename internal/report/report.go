// Package report computes the end-of-shift reconciliation (Z-report).
//
// The computation is a single pass over an immutable Ledger snapshot and
// holds no state, so it is safe to call concurrently and is idempotent for
// a closed shift. Loading the snapshot is the caller's job (see
// service.ComputeShiftReport); nothing in this package touches a store.
package report

import (
	"math"

	"mejapos/backend/internal/domain"
)

// Bucket is one of the three canonical settlement channels a raw payment
// method maps to. Methods outside the allow-list map to BucketNone and are
// excluded from every bucketed aggregate.
type Bucket string

const (
	BucketCash   Bucket = "cash"
	BucketCard   Bucket = "card"
	BucketMobile Bucket = "mobile"
	BucketNone   Bucket = ""
)

// mobileWallets is the fixed allow-list of mobile-wallet method identifiers.
// This is configuration, not inference: a new wallet must be added here
// explicitly before its payments count toward the mobile bucket.
var mobileWallets = map[string]struct{}{
	"qris":      {},
	"gopay":     {},
	"ovo":       {},
	"dana":      {},
	"shopeepay": {},
}

// BucketForMethod maps a raw payment-method identifier to its settlement
// bucket, or BucketNone for anything outside the allow-list.
func BucketForMethod(method string) Bucket {
	switch method {
	case "cash":
		return BucketCash
	case "card":
		return BucketCard
	}
	if _, ok := mobileWallets[method]; ok {
		return BucketMobile
	}
	return BucketNone
}

// Ledger is the consistent snapshot the report is computed from: one shift,
// its orders with nested payments, the refunds referencing those orders,
// and the shift's manual drawer movements. All four reads should come from
// one point in time; mixing snapshot times (a refund visible while its
// parent order is not) skews attribution.
type Ledger struct {
	Shift            domain.Shift
	Orders           []domain.Order
	Refunds          []domain.Refund
	CashTransactions []domain.CashTransaction
}

// Counted reports whether an order participates in the reconciliation.
// Only fiscally completed sales do; open, held, cancelled and voided orders
// are excluded entirely.
func Counted(order domain.Order) bool {
	return order.Status == domain.OrderStatusPaid || order.Status == domain.OrderStatusRefunded
}

// DiscountAmountCents computes the effective discount of an order from its
// discount type. A percentage discount is relative to the subtotal; a fixed
// discount is the stored value itself, already in minor units.
func DiscountAmountCents(order domain.Order) int64 {
	switch order.DiscountType {
	case domain.DiscountTypePercentage:
		return int64(math.Round(float64(order.SubtotalCents) * order.DiscountValue / 100))
	case domain.DiscountTypeFixed:
		return int64(math.Round(order.DiscountValue))
	default:
		return 0
	}
}

// Compute folds the ledger into a ShiftReport. It never fails: data
// inconsistencies (over-refunds, refunds against buckets that received less
// than the refunded amount) surface as negative adjusted/net figures rather
// than errors, so an auditor sees them instead of a silently corrected zero.
func Compute(ledger Ledger) domain.ShiftReport {
	shift := ledger.Shift

	rep := domain.ShiftReport{
		ShiftID:          shift.ID,
		OpenedAt:         shift.OpenedAt,
		ClosedAt:         shift.ClosedAt,
		OpeningCashCents: shift.OpeningCashCents,
		ClosingCashCents: shift.ClosingCashCents,
		TotalOrders:      len(ledger.Orders),
	}

	countedByID := make(map[string]domain.Order, len(ledger.Orders))
	for _, order := range ledger.Orders {
		switch order.Status {
		case domain.OrderStatusCancelled, domain.OrderStatusVoided:
			rep.CancelledOrders++
			continue
		}
		if !Counted(order) {
			continue
		}
		countedByID[order.ID] = order

		rep.GrossSalesCents += order.TotalCents
		rep.GrossNetSalesCents += order.SubtotalCents
		rep.GrossTaxCents += order.TaxCents
		rep.GrossServiceChargeCents += order.ServiceChargeCents
		rep.TotalDiscountsCents += DiscountAmountCents(order)

		for _, payment := range order.Payments {
			switch BucketForMethod(payment.Method) {
			case BucketCash:
				rep.GrossCashPaymentsCents += payment.AmountCents
			case BucketCard:
				rep.GrossCardPaymentsCents += payment.AmountCents
			case BucketMobile:
				rep.GrossMobilePaymentsCents += payment.AmountCents
			}
			// Unsupported methods still count toward gross sales via the
			// order total; they are only invisible to the bucket sums.
		}
	}

	for _, refund := range ledger.Refunds {
		order, ok := countedByID[refund.OrderID]
		if !ok {
			// Orphan refund: parent order missing or not counted. Skipped
			// entirely, by policy, rather than guessed at.
			continue
		}

		rep.RefundCount++
		rep.RefundsTotalCents += refund.AmountCents
		allocateRefund(&rep, order, refund.AmountCents)
		estimateComposition(&rep, order, refund.AmountCents)
	}

	rep.AdjustedSalesCents = rep.GrossSalesCents - rep.RefundsTotalCents
	rep.AdjustedNetSalesCents = rep.GrossNetSalesCents - rep.RefundSubtotalCents
	rep.AdjustedTaxCents = rep.GrossTaxCents - rep.RefundTaxCents
	rep.AdjustedServiceChargeCents = rep.GrossServiceChargeCents - rep.RefundServiceChargeCents
	rep.NetCashPaymentsCents = rep.GrossCashPaymentsCents - rep.CashRefundsCents
	rep.NetCardPaymentsCents = rep.GrossCardPaymentsCents - rep.CardRefundsCents
	rep.NetMobilePaymentsCents = rep.GrossMobilePaymentsCents - rep.MobileRefundsCents

	for _, cashTx := range ledger.CashTransactions {
		switch cashTx.Type {
		case domain.CashTxTypeIn:
			rep.CashInCents += cashTx.AmountCents
		case domain.CashTxTypeOut:
			rep.CashOutCents += cashTx.AmountCents
		}
	}

	rep.ExpectedCashCents = shift.OpeningCashCents + rep.NetCashPaymentsCents + rep.CashInCents - rep.CashOutCents
	if shift.ClosingCashCents != nil {
		diff := *shift.ClosingCashCents - rep.ExpectedCashCents
		rep.CashDifferenceCents = &diff
	}

	return rep
}

// allocateRefund attributes a refund amount back to the settlement buckets
// that funded the order. With no supported payment the whole amount goes to
// cash: the worst case for drawer variance, chosen deliberately over
// guessing a likelier bucket. With one supported payment the refund follows
// it; with a split it is allocated proportionally by integer floor, with
// the rounding remainder assigned to the last supported payment. Floored
// shares never exceed their exact proportional value, so the remainder is
// non-negative and the bucket sums equal the refund amount exactly.
func allocateRefund(rep *domain.ShiftReport, order domain.Order, amountCents int64) {
	supported := make([]domain.Payment, 0, len(order.Payments))
	supportedSum := int64(0)
	for _, payment := range order.Payments {
		if BucketForMethod(payment.Method) == BucketNone {
			continue
		}
		supported = append(supported, payment)
		supportedSum += payment.AmountCents
	}

	if len(supported) == 0 || supportedSum == 0 {
		rep.CashRefundsCents += amountCents
		return
	}

	if len(supported) == 1 {
		addToBucket(rep, BucketForMethod(supported[0].Method), amountCents)
		return
	}

	allocated := int64(0)
	for i, payment := range supported {
		share := amountCents - allocated
		if i < len(supported)-1 {
			share = amountCents * payment.AmountCents / supportedSum
		}
		addToBucket(rep, BucketForMethod(payment.Method), share)
		allocated += share
	}
}

func addToBucket(rep *domain.ShiftReport, bucket Bucket, amountCents int64) {
	switch bucket {
	case BucketCash:
		rep.CashRefundsCents += amountCents
	case BucketCard:
		rep.CardRefundsCents += amountCents
	case BucketMobile:
		rep.MobileRefundsCents += amountCents
	}
}

// estimateComposition splits a refund into tax / service-charge / subtotal
// components by linear ratio against the original order totals. This is an
// approximation: nothing records which line items were actually returned,
// so a refund of a tax-exempt item alone will diverge from ground truth.
// Recording per-refund line detail is a product decision, not a fix to make
// here.
func estimateComposition(rep *domain.ShiftReport, order domain.Order, amountCents int64) {
	if order.TotalCents == 0 {
		return
	}
	ratio := float64(amountCents) / float64(order.TotalCents)
	rep.RefundTaxCents += int64(math.Round(float64(order.TaxCents) * ratio))
	rep.RefundServiceChargeCents += int64(math.Round(float64(order.ServiceChargeCents) * ratio))
	rep.RefundSubtotalCents += int64(math.Round(float64(order.SubtotalCents) * ratio))
}
