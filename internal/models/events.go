package models

import "time"

// EventType identifies a bond lifecycle event.
type EventType string

const (
	EventCoupon       EventType = "coupon"
	EventAmortization EventType = "amortization"
	EventMaturity     EventType = "maturity"
	EventOffer        EventType = "offer"
)

// Amortization source tags as reported upstream.
const (
	SourceAmortization = "amortization"
	SourceMaturity     = "maturity"
)

// CouponEvent is a single coupon payment. Value stays nil when the
// upstream row carries no amount, so "unknown coupon" is distinguishable
// from a zero coupon.
type CouponEvent struct {
	Date    time.Time
	Value   *float64
	Percent float64
}

// AmortizationEvent is a partial or final principal repayment. Rows
// tagged SourceMaturity represent the final repayment.
type AmortizationEvent struct {
	Date   time.Time
	Value  float64
	Source string
}

// OfferEvent is a repurchase offer window. Cancelled offers never reach
// the canonical event set.
type OfferEvent struct {
	Date  time.Time
	Type  string
	Price *float64
}

// BondEvents is the canonical per-instrument event record produced by
// the normalizer. A failed fetch yields the zero value: all lists empty
// and MaturityDate nil.
type BondEvents struct {
	ISIN          string
	Coupons       []CouponEvent
	Amortizations []AmortizationEvent
	Offers        []OfferEvent
	MaturityDate  *time.Time
}

// Empty reports whether the record carries no event data at all.
func (e BondEvents) Empty() bool {
	return len(e.Coupons) == 0 && len(e.Amortizations) == 0 &&
		len(e.Offers) == 0 && e.MaturityDate == nil
}
