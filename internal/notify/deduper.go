package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "bondwatch/internal/errors"
	"bondwatch/internal/logging"
	"bondwatch/internal/models"
	"bondwatch/internal/store"
)

const (
	maturityWindowDays = 7
	offerWindowDays    = 14
)

// Dispatcher scans stored instruments for imminent events and notifies
// every tracking user. The dedup marker is inserted before delivery is
// attempted, so a crashed or failed delivery never causes a duplicate
// on the next sweep.
type Dispatcher struct {
	store     store.DataStore
	messenger Messenger
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(ds store.DataStore, messenger Messenger, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     ds,
		messenger: messenger,
		logger:    logger,
		now:       time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (d *Dispatcher) SetNow(now func() time.Time) {
	d.now = now
}

// Stats summarizes one notification sweep.
type Stats struct {
	Instruments int
	Sent        int
	Deduped     int
	Failed      int
}

// Run performs the daily notification sweep across all tracked
// instruments. Per-instrument and per-user failures are logged and
// counted; only a store listing failure aborts the sweep.
func (d *Dispatcher) Run(ctx context.Context) (Stats, error) {
	instruments, err := d.store.ListTrackedInstruments(ctx)
	if err != nil {
		return Stats{}, err
	}

	today := models.DateOnly(d.now())
	tomorrow := today.AddDate(0, 0, 1)
	stats := Stats{Instruments: len(instruments)}

	for i := range instruments {
		inst := &instruments[i]
		d.checkInstrument(ctx, inst, today, tomorrow, &stats)
	}

	d.logger.Info().
		Str("event", "notify_sweep").
		Int("instruments", stats.Instruments).
		Int("sent", stats.Sent).
		Int("deduped", stats.Deduped).
		Int("failed", stats.Failed).
		Msg("Notification sweep completed")
	return stats, nil
}

func (d *Dispatcher) checkInstrument(ctx context.Context, inst *models.Instrument, today, tomorrow time.Time, stats *Stats) {
	log := logging.WithISIN(d.logger, inst.ISIN)

	trackers, err := d.store.ListTrackingForInstrument(ctx, inst.ISIN)
	if err != nil {
		stats.Failed++
		log.Error().Err(err).Msg("Failed to list trackers")
		return
	}
	if len(trackers) == 0 {
		return
	}

	if inst.MaturityDate != nil {
		m := *inst.MaturityDate
		if m.After(today) && !m.After(today.AddDate(0, 0, maturityWindowDays)) {
			for _, t := range trackers {
				d.dispatch(ctx, &t, inst, models.EventMaturity, m, nil, stats)
			}
		}
	}

	if inst.NextCouponDate != nil && inst.NextCouponDate.Equal(tomorrow) {
		for _, t := range trackers {
			d.dispatch(ctx, &t, inst, models.EventCoupon, *inst.NextCouponDate, nil, stats)
		}
	}

	if inst.AmortizationDate != nil && inst.AmortizationDate.Equal(tomorrow) {
		for _, t := range trackers {
			d.dispatch(ctx, &t, inst, models.EventAmortization, *inst.AmortizationDate, nil, stats)
		}
	}

	if inst.OfferDate != nil {
		days := int(inst.OfferDate.Sub(today).Hours() / 24)
		if days >= 1 && days <= offerWindowDays {
			for _, t := range trackers {
				d.dispatch(ctx, &t, inst, models.EventOffer, *inst.OfferDate, &days, stats)
			}
		}
	}
}

// dispatch inserts the dedup marker and, when the tuple is new,
// delivers the message. An ErrAlreadyNotified conflict means some
// earlier sweep already handled this tuple.
func (d *Dispatcher) dispatch(ctx context.Context, tracking *models.Tracking, inst *models.Instrument,
	eventType models.EventType, eventDate time.Time, daysLeft *int, stats *Stats) {

	record := &models.NotificationRecord{
		ID:        uuid.NewString(),
		UserID:    tracking.UserID,
		ISIN:      inst.ISIN,
		EventType: eventType,
		EventDate: eventDate,
		DaysLeft:  daysLeft,
	}

	log := logging.WithUser(d.logger, tracking.UserID)

	err := d.store.CreateNotification(ctx, record)
	if apperrors.Is(err, apperrors.ErrAlreadyNotified) {
		stats.Deduped++
		return
	}
	if err != nil {
		stats.Failed++
		log.Error().Err(err).Msg("Failed to record notification")
		return
	}

	user, err := d.store.GetUser(ctx, tracking.UserID)
	if err != nil {
		user = &models.User{ID: tracking.UserID}
	}

	text := d.buildMessage(user, inst, tracking, eventType, eventDate, daysLeft)
	if err := d.messenger.Deliver(ctx, tracking.UserID, text); err != nil {
		stats.Failed++
		log.Error().
			Err(apperrors.NewDispatchError(tracking.UserID, err)).
			Msg("Failed to deliver notification")
		return
	}

	if err := d.store.MarkNotificationSent(ctx, record.ID, d.now().UTC()); err != nil {
		log.Warn().Err(err).Msg("Failed to mark notification sent")
	}

	logging.LogNotification(d.logger, tracking.UserID, inst.ISIN, string(eventType), eventDate)
	stats.Sent++
}

func (d *Dispatcher) buildMessage(user *models.User, inst *models.Instrument, tracking *models.Tracking,
	eventType models.EventType, eventDate time.Time, daysLeft *int) string {

	switch eventType {
	case models.EventCoupon:
		return CouponMessage(user, inst, eventDate, inst.NextCouponValue, tracking.Quantity)
	case models.EventMaturity:
		return MaturityMessage(user, inst, eventDate)
	case models.EventAmortization:
		var value float64
		if inst.AmortizationValue != nil {
			value = *inst.AmortizationValue
		}
		return AmortizationMessage(user, inst, eventDate, value, tracking.Quantity)
	case models.EventOffer:
		days := 0
		if daysLeft != nil {
			days = *daysLeft
		}
		return OfferMessage(user, inst, eventDate, days)
	}
	return ""
}
