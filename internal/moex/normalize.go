package moex

import (
	"strings"
	"time"

	"bondwatch/internal/models"
)

// cancelMarker flags withdrawn offers in the upstream offer type text,
// e.g. "Оферта отменена".
const cancelMarker = "отмен"

// Normalize converts a classified payload document into the canonical
// event record for one instrument.
//
// Rules: rows without a parseable date are dropped; amortization values
// absent upstream are coerced to zero while coupon values stay nil;
// cancelled offers are excluded entirely; the maturity date is the
// maximum amortization date unless a row is explicitly tagged as the
// maturity repayment, in which case that row's date wins.
func Normalize(isin string, doc Document) models.BondEvents {
	events := models.BondEvents{ISIN: isin}

	for _, rec := range doc.Coupons.Records {
		date, ok := parseDate(fieldString(rec, "coupondate", "couponDate"))
		if !ok {
			continue
		}
		percent := 0.0
		if p := fieldFloat(rec, "valueprc", "couponPercent"); p != nil {
			percent = *p
		}
		events.Coupons = append(events.Coupons, models.CouponEvent{
			Date:    date,
			Value:   fieldFloat(rec, "value", "couponValue"),
			Percent: percent,
		})
	}

	var maturityMax *time.Time
	var maturityTagged *time.Time
	for _, rec := range doc.Amortizations.Records {
		date, ok := parseDate(fieldString(rec, "amortdate", "amortDate"))
		if !ok {
			continue
		}
		value := 0.0
		if v := fieldFloat(rec, "value", "amortValue"); v != nil {
			value = *v
		}
		source := fieldString(rec, "data_source", "dataSource")
		events.Amortizations = append(events.Amortizations, models.AmortizationEvent{
			Date:   date,
			Value:  value,
			Source: source,
		})

		d := date
		if source == models.SourceMaturity {
			if maturityTagged == nil || d.After(*maturityTagged) {
				maturityTagged = &d
			}
		}
		if maturityMax == nil || d.After(*maturityMax) {
			maturityMax = &d
		}
	}

	if maturityTagged != nil {
		events.MaturityDate = maturityTagged
	} else {
		events.MaturityDate = maturityMax
	}

	for _, rec := range doc.Offers.Records {
		date, ok := parseDate(fieldString(rec, "offerdate", "offerDate"))
		if !ok {
			continue
		}
		offerType := fieldString(rec, "offertype", "offerType")
		if strings.Contains(strings.ToLower(offerType), cancelMarker) {
			continue
		}
		events.Offers = append(events.Offers, models.OfferEvent{
			Date:  date,
			Type:  offerType,
			Price: fieldFloat(rec, "price", "offerPrice"),
		})
	}

	return events
}

// mergeCoupons folds extra coupon pages into the canonical set. The
// first occurrence per date wins on conflict.
func mergeCoupons(events *models.BondEvents, extra []models.CouponEvent) {
	seen := make(map[time.Time]struct{}, len(events.Coupons))
	for _, c := range events.Coupons {
		seen[c.Date] = struct{}{}
	}
	for _, c := range extra {
		if _, ok := seen[c.Date]; ok {
			continue
		}
		seen[c.Date] = struct{}{}
		events.Coupons = append(events.Coupons, c)
	}
}

// hasFutureCoupon reports whether any coupon falls on or after today.
func hasFutureCoupon(events models.BondEvents, today time.Time) bool {
	for _, c := range events.Coupons {
		if !c.Date.Before(today) {
			return true
		}
	}
	return false
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return models.DateOnly(t), true
}
