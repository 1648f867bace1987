package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "bondwatch/internal/errors"
	"bondwatch/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir() + "/store_test.db")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return models.DateOnly(t)
}

func TestNotificationDedupConstraint(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	record := &models.NotificationRecord{
		ID:        "n-1",
		UserID:    100,
		ISIN:      "RU000A0JX0J2",
		EventType: models.EventCoupon,
		EventDate: date("2025-09-01"),
	}
	if err := s.CreateNotification(ctx, record); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	dup := *record
	dup.ID = "n-2"
	err := s.CreateNotification(ctx, &dup)
	if !apperrors.Is(err, apperrors.ErrAlreadyNotified) {
		t.Errorf("duplicate tuple must yield ErrAlreadyNotified, got %v", err)
	}

	// Different event type on the same bond and date is a new tuple.
	other := *record
	other.ID = "n-3"
	other.EventType = models.EventMaturity
	if err := s.CreateNotification(ctx, &other); err != nil {
		t.Errorf("different event type must insert cleanly, got %v", err)
	}
}

func TestMarkNotificationSent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	record := &models.NotificationRecord{
		ID:        "n-1",
		UserID:    100,
		ISIN:      "RU000A0JX0J2",
		EventType: models.EventOffer,
		EventDate: date("2025-09-10"),
	}
	if err := s.CreateNotification(ctx, record); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	sentAt := time.Date(2025, 8, 31, 10, 0, 0, 0, time.UTC)
	if err := s.MarkNotificationSent(ctx, "n-1", sentAt); err != nil {
		t.Fatalf("MarkNotificationSent failed: %v", err)
	}

	records, err := s.ListNotifications(ctx, NotificationFilter{UserID: 100})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].IsSent || records[0].SentAt == nil {
		t.Errorf("record not marked sent: %+v", records[0])
	}
}

func TestTrackingUniquePerUserAndBond(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tr := &models.Tracking{UserID: 100, ISIN: "RU000A0JX0J2", Quantity: 2}
	if err := s.AddTracking(ctx, tr); err != nil {
		t.Fatalf("AddTracking failed: %v", err)
	}
	err := s.AddTracking(ctx, &models.Tracking{UserID: 100, ISIN: "RU000A0JX0J2"})
	if !apperrors.Is(err, apperrors.ErrAlreadyTracking) {
		t.Errorf("duplicate tracking must yield ErrAlreadyTracking, got %v", err)
	}

	if err := s.AddTracking(ctx, &models.Tracking{UserID: 200, ISIN: "RU000A0JX0J2"}); err != nil {
		t.Errorf("second user must track freely, got %v", err)
	}

	count, err := s.CountTrackingForUser(ctx, 100)
	if err != nil {
		t.Fatalf("CountTrackingForUser failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	if err := s.RemoveTracking(ctx, 100, "RU000A0JX0J2"); err != nil {
		t.Fatalf("RemoveTracking failed: %v", err)
	}
	err = s.RemoveTracking(ctx, 100, "RU000A0JX0J2")
	if !apperrors.Is(err, apperrors.ErrNotTracking) {
		t.Errorf("removing again must yield ErrNotTracking, got %v", err)
	}
}

func TestInstrumentNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetInstrument(ctx, "RU000A0JX0J2")
	if !apperrors.Is(err, apperrors.ErrInstrumentNotFound) {
		t.Errorf("expected ErrInstrumentNotFound, got %v", err)
	}
	err = s.SetMaturityDate(ctx, "RU000A0JX0J2", date("2027-01-01"))
	if !apperrors.Is(err, apperrors.ErrInstrumentNotFound) {
		t.Errorf("expected ErrInstrumentNotFound on update, got %v", err)
	}
}

func TestInstrumentReadBackAfterTouch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	isin := "RU000A0JX0J2"
	added := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := s.CreateInstrument(ctx, &models.Instrument{ISIN: isin, AddedAt: added}); err != nil {
		t.Fatalf("CreateInstrument failed: %v", err)
	}

	// Never touched: last_updated reads back as the added timestamp.
	inst, err := s.GetInstrument(ctx, isin)
	if err != nil {
		t.Fatalf("GetInstrument failed: %v", err)
	}
	if !inst.LastUpdated.Equal(added) {
		t.Errorf("untouched LastUpdated = %v, want %v", inst.LastUpdated, added)
	}

	touched := time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
	if err := s.TouchInstrument(ctx, isin, touched); err != nil {
		t.Fatalf("TouchInstrument failed: %v", err)
	}

	inst, err = s.GetInstrument(ctx, isin)
	if err != nil {
		t.Fatalf("GetInstrument failed: %v", err)
	}
	if !inst.LastUpdated.Equal(touched) {
		t.Errorf("LastUpdated = %v, want %v", inst.LastUpdated, touched)
	}

	// List paths share the same scan; both must read the row back too.
	all, err := s.ListInstruments(ctx)
	if err != nil {
		t.Fatalf("ListInstruments failed: %v", err)
	}
	if len(all) != 1 || all[0].ISIN != isin {
		t.Errorf("ListInstruments = %+v, want one row for %s", all, isin)
	}
	if err := s.AddTracking(ctx, &models.Tracking{UserID: 100, ISIN: isin}); err != nil {
		t.Fatalf("AddTracking failed: %v", err)
	}
	tracked, err := s.ListTrackedInstruments(ctx)
	if err != nil {
		t.Fatalf("ListTrackedInstruments failed: %v", err)
	}
	if len(tracked) != 1 {
		t.Errorf("ListTrackedInstruments returned %d rows, want 1", len(tracked))
	}
}

func TestUpsertUserKeepsNameOnEmptyUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpsertUser(ctx, &models.User{ID: 100, FullName: "Иван Петров"}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if err := s.UpsertUser(ctx, &models.User{ID: 100}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	user, err := s.GetUser(ctx, 100)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.FullName != "Иван Петров" {
		t.Errorf("FullName = %q, want name preserved", user.FullName)
	}

	if err := s.UpsertUser(ctx, &models.User{ID: 100, FullName: "Пётр Иванов"}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	user, err = s.GetUser(ctx, 100)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.FullName != "Пётр Иванов" {
		t.Errorf("FullName = %q, want updated name", user.FullName)
	}
}

func TestSubscriptionDefaultsToFree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sub, err := s.GetSubscription(ctx, 100)
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if sub.Plan != models.PlanFree {
		t.Errorf("expected free plan, got %s", sub.Plan)
	}
}

func TestJobRunRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if !s.GetLastRun("sync").IsZero() {
		t.Error("expected zero time for unknown job")
	}

	at := time.Date(2025, 8, 31, 3, 0, 0, 0, time.UTC)
	if err := s.SetLastRun("sync", at); err != nil {
		t.Fatalf("SetLastRun failed: %v", err)
	}
	if got := s.GetLastRun("sync"); !got.Equal(at) {
		t.Errorf("GetLastRun = %v, want %v", got, at)
	}
}

// Property: instrument event dates survive a write and read back as the
// same UTC-midnight day regardless of the written wall-clock time.
func TestPropertyInstrumentDateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	seq := 0
	properties.Property("date round-trip preserves the day", prop.ForAll(
		func(dayOffset int, hour int, value float64) bool {
			seq++
			isin := fmt.Sprintf("RU000A%06d", seq)
			if err := s.CreateInstrument(ctx, &models.Instrument{ISIN: isin}); err != nil {
				t.Logf("CreateInstrument failed: %v", err)
				return false
			}

			base := time.Date(2025, 1, 1, hour, 30, 0, 0, time.UTC).AddDate(0, 0, dayOffset)
			want := models.DateOnly(base)

			if err := s.SetNextCoupon(ctx, isin, want, &value); err != nil {
				t.Logf("SetNextCoupon failed: %v", err)
				return false
			}
			if err := s.SetMaturityDate(ctx, isin, want); err != nil {
				t.Logf("SetMaturityDate failed: %v", err)
				return false
			}

			inst, err := s.GetInstrument(ctx, isin)
			if err != nil {
				t.Logf("GetInstrument failed: %v", err)
				return false
			}
			if inst.NextCouponDate == nil || !inst.NextCouponDate.Equal(want) {
				t.Logf("coupon date mismatch: want %v, got %v", want, inst.NextCouponDate)
				return false
			}
			if inst.MaturityDate == nil || !inst.MaturityDate.Equal(want) {
				t.Logf("maturity date mismatch: want %v, got %v", want, inst.MaturityDate)
				return false
			}
			if inst.NextCouponValue == nil || *inst.NextCouponValue != value {
				t.Logf("coupon value mismatch: want %v, got %v", value, inst.NextCouponValue)
				return false
			}
			return true
		},
		gen.IntRange(0, 3650),
		gen.IntRange(0, 23),
		gen.Float64Range(0.01, 10000.0),
	))

	properties.TestingRun(t)
}
