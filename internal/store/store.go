// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"bondwatch/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Instruments
	CreateInstrument(ctx context.Context, inst *models.Instrument) error
	GetInstrument(ctx context.Context, isin string) (*models.Instrument, error)
	ListInstruments(ctx context.Context) ([]models.Instrument, error)
	ListTrackedInstruments(ctx context.Context) ([]models.Instrument, error)
	SetInstrumentName(ctx context.Context, isin, name string) error

	// Reconciliation updates. Each call commits on its own so partial
	// progress survives a later failure within the same refresh.
	SetMaturityDate(ctx context.Context, isin string, date time.Time) error
	SetOfferDate(ctx context.Context, isin string, date time.Time) error
	SetNextCoupon(ctx context.Context, isin string, date time.Time, value *float64) error
	SetAmortization(ctx context.Context, isin string, date time.Time, value float64) error
	TouchInstrument(ctx context.Context, isin string, at time.Time) error

	// Users
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)

	// Tracking
	AddTracking(ctx context.Context, t *models.Tracking) error
	RemoveTracking(ctx context.Context, userID int64, isin string) error
	SetTrackingQuantity(ctx context.Context, userID int64, isin string, quantity int) error
	GetTracking(ctx context.Context, userID int64, isin string) (*models.Tracking, error)
	ListTrackingForUser(ctx context.Context, userID int64) ([]models.Tracking, error)
	ListTrackingForInstrument(ctx context.Context, isin string) ([]models.Tracking, error)
	CountTrackingForUser(ctx context.Context, userID int64) (int, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.NotificationRecord) error
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]models.NotificationRecord, error)

	// Subscriptions & payments
	GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	SetSubscription(ctx context.Context, sub *models.Subscription) error
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, reference string) (*models.Payment, error)
	ConfirmPayment(ctx context.Context, reference string, at time.Time) error

	// Job bookkeeping
	GetLastRun(job string) time.Time
	SetLastRun(job string, t time.Time) error

	// Lifecycle
	Close() error
}

// NotificationFilter represents filters for querying notification records.
type NotificationFilter struct {
	UserID    int64
	ISIN      string
	EventType models.EventType
	Since     time.Time
	Limit     int
}
