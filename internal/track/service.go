// Package track manages which bonds each user follows.
package track

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bondwatch/internal/billing"
	apperrors "bondwatch/internal/errors"
	"bondwatch/internal/logging"
	"bondwatch/internal/models"
	"bondwatch/internal/reconcile"
	"bondwatch/internal/store"
)

// isinPattern matches a 12-character ISIN: two letters followed by ten
// alphanumerics.
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{10}$`)

// NameSource resolves an instrument's display name.
type NameSource interface {
	SecurityName(ctx context.Context, isin string) (string, error)
}

// Service manages tracking relationships. Adding a bond registers the
// instrument on first reference, resolves its display name, and runs
// an immediate refresh so event dates are available right away.
type Service struct {
	store      store.DataStore
	billing    *billing.Service
	names      NameSource
	reconciler *reconcile.Reconciler
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates a tracking service.
func NewService(ds store.DataStore, b *billing.Service, names NameSource, r *reconcile.Reconciler, logger zerolog.Logger) *Service {
	return &Service{
		store:      ds,
		billing:    b,
		names:      names,
		reconciler: r,
		logger:     logger,
		now:        time.Now,
	}
}

// NormalizeISIN uppercases and validates an ISIN.
func NormalizeISIN(raw string) (string, error) {
	isin := strings.ToUpper(strings.TrimSpace(raw))
	if !isinPattern.MatchString(isin) {
		return "", apperrors.ErrInvalidISIN
	}
	return isin, nil
}

// Add starts tracking a bond for a user. The plan's tracking cap is
// checked before anything is written.
func (s *Service) Add(ctx context.Context, userID int64, rawISIN string, quantity int) (*models.Tracking, error) {
	isin, err := NormalizeISIN(rawISIN)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetTracking(ctx, userID, isin); err == nil {
		return nil, apperrors.ErrAlreadyTracking
	}

	ok, err := s.billing.CanTrack(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrTrackingLimit
	}

	if err := s.ensureInstrument(ctx, isin); err != nil {
		return nil, err
	}

	tracking := &models.Tracking{
		UserID:   userID,
		ISIN:     isin,
		Quantity: quantity,
		AddedAt:  s.now().UTC(),
	}
	if err := s.store.AddTracking(ctx, tracking); err != nil {
		return nil, err
	}

	log := logging.WithUser(s.logger, userID)
	log.Info().
		Str("isin", isin).
		Int("quantity", tracking.Quantity).
		Msg("Tracking added")
	return tracking, nil
}

// ensureInstrument registers the instrument on first reference and
// primes its name and event data. Lookup failures are tolerated, the
// nightly sweep will fill the gaps.
func (s *Service) ensureInstrument(ctx context.Context, isin string) error {
	if _, err := s.store.GetInstrument(ctx, isin); err == nil {
		return nil
	} else if !apperrors.Is(err, apperrors.ErrInstrumentNotFound) {
		return err
	}

	inst := &models.Instrument{ISIN: isin, AddedAt: s.now().UTC()}
	if err := s.store.CreateInstrument(ctx, inst); err != nil {
		return err
	}

	log := logging.WithISIN(s.logger, isin)
	if s.names != nil {
		if name, err := s.names.SecurityName(ctx, isin); err == nil && name != "" {
			if err := s.store.SetInstrumentName(ctx, isin, name); err != nil {
				log.Warn().Err(err).Msg("Failed to store instrument name")
			}
		} else if err != nil {
			log.Warn().Err(err).Msg("Instrument name lookup failed")
		}
	}

	if s.reconciler != nil {
		if err := s.reconciler.SyncInstrument(ctx, isin); err != nil {
			log.Warn().Err(err).Msg("Initial refresh failed")
		}
	}
	return nil
}

// Remove stops tracking a bond for a user. The instrument row stays so
// its refresh history survives re-adds.
func (s *Service) Remove(ctx context.Context, userID int64, rawISIN string) error {
	isin, err := NormalizeISIN(rawISIN)
	if err != nil {
		return err
	}
	if err := s.store.RemoveTracking(ctx, userID, isin); err != nil {
		return err
	}
	log := logging.WithUser(s.logger, userID)
	log.Info().Str("isin", isin).Msg("Tracking removed")
	return nil
}

// SetQuantity updates the held quantity used for payout totals.
func (s *Service) SetQuantity(ctx context.Context, userID int64, rawISIN string, quantity int) error {
	isin, err := NormalizeISIN(rawISIN)
	if err != nil {
		return err
	}
	if quantity < 1 {
		quantity = 1
	}
	return s.store.SetTrackingQuantity(ctx, userID, isin, quantity)
}

// TrackedBond pairs a tracking relationship with its instrument data.
type TrackedBond struct {
	Tracking   models.Tracking
	Instrument models.Instrument
}

// List returns the user's tracked bonds with instrument details.
func (s *Service) List(ctx context.Context, userID int64) ([]TrackedBond, error) {
	tracking, err := s.store.ListTrackingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	bonds := make([]TrackedBond, 0, len(tracking))
	for _, t := range tracking {
		inst, err := s.store.GetInstrument(ctx, t.ISIN)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrInstrumentNotFound) {
				inst = &models.Instrument{ISIN: t.ISIN}
			} else {
				return nil, err
			}
		}
		bonds = append(bonds, TrackedBond{Tracking: t, Instrument: *inst})
	}
	return bonds, nil
}
