package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"bondwatch/internal/logging"
	"bondwatch/internal/models"
	"bondwatch/internal/store"
)

// EventSource provides normalized bond event data for an instrument.
type EventSource interface {
	BondEvents(ctx context.Context, isin string) (models.BondEvents, error)
}

// Reconciler refreshes stale instruments against an event source. Each
// update group commits independently so a failure in one group never
// rolls back the others.
type Reconciler struct {
	store  store.DataStore
	source EventSource
	logger zerolog.Logger
	now    func() time.Time
}

// NewReconciler creates a reconciler backed by the given store and source.
func NewReconciler(ds store.DataStore, source EventSource, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  ds,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Stats summarizes one reconciliation sweep.
type Stats struct {
	Total     int
	Refreshed int
	Skipped   int
	Failed    int
}

// SyncAll refreshes every tracked instrument that is stale. Failures on
// a single instrument are logged and counted, never fatal for the sweep.
func (r *Reconciler) SyncAll(ctx context.Context) (Stats, error) {
	instruments, err := r.store.ListTrackedInstruments(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(instruments)}
	start := r.now()

	for i := range instruments {
		inst := &instruments[i]
		if !NeedsRefresh(inst, r.now()) {
			stats.Skipped++
			continue
		}
		if err := r.SyncInstrument(ctx, inst.ISIN); err != nil {
			stats.Failed++
			log := logging.WithISIN(r.logger, inst.ISIN)
			log.Error().Err(err).Msg("Instrument refresh failed")
			continue
		}
		stats.Refreshed++
	}

	logging.LogSyncCycle(r.logger, stats.Total, stats.Refreshed, stats.Skipped, stats.Failed, r.now().Sub(start))
	return stats, nil
}

// SyncInstrument fetches fresh event data for one instrument and writes
// each event group to the store. Groups commit one at a time: maturity,
// then offer, then coupon, then amortization. An error in one group
// still leaves the earlier groups committed.
func (r *Reconciler) SyncInstrument(ctx context.Context, isin string) error {
	events, err := r.source.BondEvents(ctx, isin)
	if err != nil {
		return err
	}

	log := logging.WithISIN(r.logger, isin)
	today := models.DateOnly(r.now())

	if events.MaturityDate != nil {
		if err := r.store.SetMaturityDate(ctx, isin, *events.MaturityDate); err != nil {
			return err
		}
	}

	if offer := earliestOffer(events.Offers, today); offer != nil {
		if err := r.store.SetOfferDate(ctx, isin, offer.Date); err != nil {
			return err
		}
	}

	if coupon := earliestCoupon(events.Coupons, today); coupon != nil {
		if err := r.store.SetNextCoupon(ctx, isin, coupon.Date, coupon.Value); err != nil {
			return err
		}
	}

	if amort := earliestAmortization(events.Amortizations, today); amort != nil {
		if err := r.store.SetAmortization(ctx, isin, amort.Date, amort.Value); err != nil {
			return err
		}
	}

	if err := r.store.TouchInstrument(ctx, isin, r.now().UTC()); err != nil {
		return err
	}

	log.Debug().
		Int("coupons", len(events.Coupons)).
		Int("amortizations", len(events.Amortizations)).
		Int("offers", len(events.Offers)).
		Msg("Instrument refreshed")
	return nil
}

// SetNow overrides the clock, for tests.
func (r *Reconciler) SetNow(now func() time.Time) {
	r.now = now
}

func earliestCoupon(coupons []models.CouponEvent, today time.Time) *models.CouponEvent {
	sorted := make([]models.CouponEvent, len(coupons))
	copy(sorted, coupons)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := range sorted {
		if !sorted[i].Date.Before(today) {
			return &sorted[i]
		}
	}
	return nil
}

// earliestAmortization considers only rows tagged as amortization data.
// The maturity-tagged final repayment must never surface as a partial
// amortization.
func earliestAmortization(amorts []models.AmortizationEvent, today time.Time) *models.AmortizationEvent {
	sorted := make([]models.AmortizationEvent, 0, len(amorts))
	for _, a := range amorts {
		if a.Source == models.SourceAmortization {
			sorted = append(sorted, a)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := range sorted {
		if !sorted[i].Date.Before(today) {
			return &sorted[i]
		}
	}
	return nil
}

func earliestOffer(offers []models.OfferEvent, today time.Time) *models.OfferEvent {
	sorted := make([]models.OfferEvent, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := range sorted {
		if sorted[i].Date.After(today) {
			return &sorted[i]
		}
	}
	return nil
}
