package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"bondwatch/internal/models"
	"bondwatch/internal/store"
)

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return models.DateOnly(t)
}

func TestPluralDays(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "1 день"},
		{2, "2 дня"},
		{3, "3 дня"},
		{4, "4 дня"},
		{5, "5 дней"},
		{10, "10 дней"},
		{11, "11 дней"},
		{12, "12 дней"},
		{14, "14 дней"},
		{20, "20 дней"},
		{21, "21 день"},
		{22, "22 дня"},
		{25, "25 дней"},
		{101, "101 день"},
		{111, "111 дней"},
	}

	for _, tt := range tests {
		if got := pluralDays(tt.n); got != tt.want {
			t.Errorf("pluralDays(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

// Property: pluralDays always ends in one of the three word forms, and
// the 11..14 remainder band always takes the genitive plural.
func TestPropertyPluralDaysForms(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("always a valid form", prop.ForAll(
		func(n int) bool {
			s := pluralDays(n)
			return strings.HasSuffix(s, " день") ||
				strings.HasSuffix(s, " дня") ||
				strings.HasSuffix(s, " дней")
		},
		gen.IntRange(0, 10000),
	))

	properties.Property("teens take genitive plural", prop.ForAll(
		func(k int) bool {
			for n := k*100 + 11; n <= k*100+14; n++ {
				if !strings.HasSuffix(pluralDays(n), " дней") {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestMessages(t *testing.T) {
	user := &models.User{ID: 100, FullName: "Иван"}
	inst := &models.Instrument{ISIN: "RU000A0JX0J2", Name: "ОФЗ 26238"}
	eventDate := date("2025-09-01")

	value := 42.38
	coupon := CouponMessage(user, inst, eventDate, &value, 3)
	if !strings.Contains(coupon, "ОФЗ 26238 (ISIN: RU000A0JX0J2)") {
		t.Errorf("coupon message missing bond label: %q", coupon)
	}
	if !strings.Contains(coupon, "01.09.2025") {
		t.Errorf("coupon message missing formatted date: %q", coupon)
	}
	if !strings.Contains(coupon, "127.14 руб.") {
		t.Errorf("coupon message missing quantity-scaled total: %q", coupon)
	}

	noValue := CouponMessage(user, inst, eventDate, nil, 3)
	if strings.Contains(noValue, "руб.") {
		t.Errorf("coupon message with unknown value must omit the amount: %q", noValue)
	}

	maturity := MaturityMessage(user, inst, eventDate)
	if !strings.Contains(maturity, "погашается 01.09.2025") {
		t.Errorf("unexpected maturity message: %q", maturity)
	}

	amort := AmortizationMessage(user, inst, eventDate, 250.0, 2)
	if !strings.Contains(amort, "500.00 руб.") {
		t.Errorf("amortization message missing total: %q", amort)
	}

	offer := OfferMessage(user, inst, eventDate, 3)
	if !strings.Contains(offer, "3 дня") {
		t.Errorf("offer message missing days phrase: %q", offer)
	}

	bare := MaturityMessage(user, &models.Instrument{ISIN: "RU000A0JX0J2"}, eventDate)
	if !strings.Contains(bare, "RU000A0JX0J2") || strings.Contains(bare, "ISIN:") {
		t.Errorf("nameless bond must be labeled by bare ISIN: %q", bare)
	}
}

// recordingMessenger captures delivered messages.
type recordingMessenger struct {
	delivered []string
}

func (r *recordingMessenger) Name() string { return "recording" }

func (r *recordingMessenger) Deliver(ctx context.Context, userID int64, text string) error {
	r.delivered = append(r.delivered, text)
	return nil
}

type fixture struct {
	store     store.DataStore
	messenger *recordingMessenger
	disp      *Dispatcher
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(t.TempDir() + "/notify_test.db")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	messenger := &recordingMessenger{}
	disp := NewDispatcher(s, messenger, zerolog.Nop())
	disp.SetNow(func() time.Time { return now })
	return &fixture{store: s, messenger: messenger, disp: disp}
}

func (f *fixture) addBond(t *testing.T, isin string, userID int64) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.CreateInstrument(ctx, &models.Instrument{ISIN: isin}); err != nil {
		t.Fatalf("CreateInstrument failed: %v", err)
	}
	if err := f.store.UpsertUser(ctx, &models.User{ID: userID, FullName: "Иван"}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if err := f.store.AddTracking(ctx, &models.Tracking{UserID: userID, ISIN: isin}); err != nil {
		t.Fatalf("AddTracking failed: %v", err)
	}
}

func TestDispatcherCouponExactlyOneDayAhead(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 8, 31, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.addBond(t, "RU000A0JX0J2", 100)

	value := 42.38
	// Two days out: no notification.
	if err := f.store.SetNextCoupon(ctx, "RU000A0JX0J2", date("2025-09-02"), &value); err != nil {
		t.Fatalf("SetNextCoupon failed: %v", err)
	}
	stats, err := f.disp.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Sent != 0 {
		t.Errorf("coupon two days out must not notify, sent %d", stats.Sent)
	}

	// Exactly tomorrow: one notification.
	if err := f.store.SetNextCoupon(ctx, "RU000A0JX0J2", date("2025-09-01"), &value); err != nil {
		t.Fatalf("SetNextCoupon failed: %v", err)
	}
	stats, err = f.disp.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Sent != 1 {
		t.Errorf("expected 1 notification, sent %d", stats.Sent)
	}
	if len(f.messenger.delivered) != 1 || !strings.Contains(f.messenger.delivered[0], "выплата купона") {
		t.Errorf("unexpected deliveries: %v", f.messenger.delivered)
	}
}

func TestDispatcherAtMostOncePerTuple(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 8, 31, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.addBond(t, "RU000A0JX0J2", 100)

	if err := f.store.SetMaturityDate(ctx, "RU000A0JX0J2", date("2025-09-03")); err != nil {
		t.Fatalf("SetMaturityDate failed: %v", err)
	}

	first, err := f.disp.Run(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Sent != 1 {
		t.Fatalf("expected 1 sent on first run, got %d", first.Sent)
	}

	second, err := f.disp.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Sent != 0 || second.Deduped != 1 {
		t.Errorf("second run must dedup: %+v", second)
	}
	if len(f.messenger.delivered) != 1 {
		t.Errorf("expected exactly 1 delivery, got %d", len(f.messenger.delivered))
	}
}

func TestDispatcherOfferWindowOnceTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Time{})
	f.addBond(t, "RU000A0JX0J2", 100)

	if err := f.store.SetOfferDate(ctx, "RU000A0JX0J2", date("2025-09-10")); err != nil {
		t.Fatalf("SetOfferDate failed: %v", err)
	}

	// Sweep every day across the whole window. Only the first in-window
	// day may deliver.
	totalSent := 0
	for day := 20; day <= 9+31; day++ {
		now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC).AddDate(0, 0, day-1)
		f.disp.SetNow(func() time.Time { return now })
		stats, err := f.disp.Run(ctx)
		if err != nil {
			t.Fatalf("run on day %d failed: %v", day, err)
		}
		totalSent += stats.Sent
	}

	if totalSent != 1 {
		t.Errorf("offer must notify exactly once across the window, sent %d", totalSent)
	}

	records, err := f.store.ListNotifications(ctx, store.NotificationFilter{UserID: 100, EventType: models.EventOffer})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 offer record, got %d", len(records))
	}
	if records[0].DaysLeft == nil || *records[0].DaysLeft != 14 {
		t.Errorf("expected days_left snapshot 14, got %v", records[0].DaysLeft)
	}
}

func TestDispatcherMaturityWindow(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		maturity string
		wantSent int
	}{
		{"past maturity", "2025-08-30", 0},
		{"today", "2025-08-31", 0},
		{"within window", "2025-09-05", 1},
		{"boundary seven days", "2025-09-07", 1},
		{"beyond window", "2025-09-08", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2025, 8, 31, 10, 0, 0, 0, time.UTC)
			f := newFixture(t, now)
			f.addBond(t, "RU000A0JX0J2", 100)
			if err := f.store.SetMaturityDate(ctx, "RU000A0JX0J2", date(tt.maturity)); err != nil {
				t.Fatalf("SetMaturityDate failed: %v", err)
			}

			stats, err := f.disp.Run(ctx)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if stats.Sent != tt.wantSent {
				t.Errorf("sent = %d, want %d", stats.Sent, tt.wantSent)
			}
		})
	}
}
