// Package models defines the core domain types for bond tracking.
package models

import "time"

// DateLayout is the canonical wire and storage format for event dates.
const DateLayout = "2006-01-02"

// DateOnly truncates a timestamp to UTC midnight. All event dates are
// compared at day granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Instrument is a tracked bond identified by its ISIN. Each "next" field
// holds the nearest future occurrence of that event type as of the last
// refresh, never a full schedule.
type Instrument struct {
	ISIN              string
	Name              string
	AddedAt           time.Time
	LastUpdated       time.Time
	MaturityDate      *time.Time
	NextCouponDate    *time.Time
	NextCouponValue   *float64
	OfferDate         *time.Time
	AmortizationDate  *time.Time
	AmortizationValue *float64
}
