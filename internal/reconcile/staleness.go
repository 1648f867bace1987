// Package reconcile refreshes stored bond event data from the market
// data source and keeps the canonical instrument rows current.
package reconcile

import (
	"time"

	"bondwatch/internal/models"
)

// NeedsRefresh reports whether an instrument's event data should be
// re-fetched. An instrument is stale when its maturity date is unknown,
// when any stored event date has already arrived, or when any of the
// next-event fields is still unset.
func NeedsRefresh(inst *models.Instrument, now time.Time) bool {
	if inst.MaturityDate == nil {
		return true
	}

	today := models.DateOnly(now)
	for _, d := range []*time.Time{inst.NextCouponDate, inst.OfferDate, inst.AmortizationDate} {
		if d != nil && !d.After(today) {
			return true
		}
	}

	return inst.NextCouponDate == nil || inst.NextCouponValue == nil ||
		inst.OfferDate == nil || inst.AmortizationDate == nil || inst.AmortizationValue == nil
}
