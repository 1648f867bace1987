// Package billing manages subscription tiers and payment intents.
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bondwatch/internal/config"
	apperrors "bondwatch/internal/errors"
	"bondwatch/internal/models"
	"bondwatch/internal/store"
)

// subscriptionTerm is the paid subscription duration.
const subscriptionTerm = 30 * 24 * time.Hour

// Service handles plan pricing, payment intents, and subscription
// activation on payment confirmation.
type Service struct {
	store  store.DataStore
	cfg    config.BillingConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a billing service.
func NewService(ds store.DataStore, cfg config.BillingConfig, logger zerolog.Logger) *Service {
	return &Service{
		store:  ds,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// PlanPrice returns the monthly price of a paid plan in rubles. The
// free plan costs nothing; unknown plans are an error.
func (s *Service) PlanPrice(plan models.Plan) (float64, error) {
	switch plan {
	case models.PlanFree:
		return 0, nil
	case models.PlanBasic:
		return s.cfg.BasicPrice, nil
	case models.PlanOptimal:
		return s.cfg.OptimalPrice, nil
	case models.PlanPro:
		return s.cfg.ProPrice, nil
	}
	return 0, apperrors.ErrInvalidPlan
}

// CreateIntent records a pending payment for a plan upgrade and
// returns the payment reference the provider must echo back.
func (s *Service) CreateIntent(ctx context.Context, userID int64, plan models.Plan) (*models.Payment, error) {
	if !plan.Valid() || plan == models.PlanFree {
		return nil, apperrors.ErrInvalidPlan
	}
	amount, err := s.PlanPrice(plan)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		Reference: uuid.NewString(),
		UserID:    userID,
		Plan:      plan,
		Amount:    amount,
		Status:    models.PaymentPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("plan", string(plan)).
		Float64("amount", amount).
		Str("reference", payment.Reference).
		Msg("Payment intent created")
	return payment, nil
}

// ConfirmPayment processes a provider confirmation. The payment is
// marked confirmed and the user's subscription switches to the paid
// plan for one term. Confirming an already confirmed payment is a
// no-op so provider retries stay safe.
func (s *Service) ConfirmPayment(ctx context.Context, reference string) (*models.Subscription, error) {
	payment, err := s.store.GetPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentConfirmed {
		return s.store.GetSubscription(ctx, payment.UserID)
	}

	now := s.now().UTC()
	if err := s.store.ConfirmPayment(ctx, reference, now); err != nil {
		return nil, err
	}

	expires := now.Add(subscriptionTerm)
	sub := &models.Subscription{
		UserID:        payment.UserID,
		Plan:          payment.Plan,
		StartedAt:     &now,
		ExpiresAt:     &expires,
		PaymentStatus: models.PaymentConfirmed,
	}
	if err := s.store.SetSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", payment.UserID).
		Str("plan", string(payment.Plan)).
		Str("reference", reference).
		Msg("Subscription activated")
	return sub, nil
}

// EffectivePlan returns the plan currently in force for a user. An
// expired paid subscription falls back to free.
func (s *Service) EffectivePlan(ctx context.Context, userID int64) (models.Plan, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub.Plan != models.PlanFree && sub.ExpiresAt != nil && sub.ExpiresAt.Before(s.now()) {
		return models.PlanFree, nil
	}
	return sub.Plan, nil
}

// CanTrack reports whether the user's plan allows tracking one more
// instrument beyond their current count.
func (s *Service) CanTrack(ctx context.Context, userID int64) (bool, error) {
	plan, err := s.EffectivePlan(ctx, userID)
	if err != nil {
		return false, err
	}
	limit, unlimited := plan.TrackingLimit()
	if unlimited {
		return true, nil
	}
	count, err := s.store.CountTrackingForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return count < limit, nil
}
