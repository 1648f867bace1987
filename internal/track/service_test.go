package track

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"bondwatch/internal/billing"
	"bondwatch/internal/config"
	apperrors "bondwatch/internal/errors"
	"bondwatch/internal/store"
)

func TestNormalizeISIN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"RU000A0JX0J2", "RU000A0JX0J2", false},
		{"ru000a0jx0j2", "RU000A0JX0J2", false},
		{"  RU000A0JX0J2  ", "RU000A0JX0J2", false},
		{"RU000A0JX0J", "", true},   // too short
		{"RU000A0JX0J22", "", true}, // too long
		{"12000A0JX0J2", "", true},  // digits in country code
		{"RU000A0JX0j", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeISIN(tt.in)
		if tt.wantErr {
			if !apperrors.Is(err, apperrors.ErrInvalidISIN) {
				t.Errorf("NormalizeISIN(%q) error = %v, want ErrInvalidISIN", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeISIN(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeISIN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fixture struct {
	store store.DataStore
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(t.TempDir() + "/track_test.db")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	b := billing.NewService(s, config.BillingConfig{BasicPrice: 99, OptimalPrice: 199, ProPrice: 299}, zerolog.Nop())
	svc := NewService(s, b, nil, nil, zerolog.Nop())
	return &fixture{store: s, svc: svc}
}

func TestAddRegistersInstrument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tracking, err := f.svc.Add(ctx, 100, "ru000a0jx0j2", 3)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if tracking.ISIN != "RU000A0JX0J2" || tracking.Quantity != 3 {
		t.Errorf("unexpected tracking: %+v", tracking)
	}

	if _, err := f.store.GetInstrument(ctx, "RU000A0JX0J2"); err != nil {
		t.Errorf("instrument not registered: %v", err)
	}
}

func TestAddEnforcesFreePlanCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.Add(ctx, 100, "RU000A0JX0J2", 1); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	_, err := f.svc.Add(ctx, 100, "RU000A0ZYBS1", 1)
	if !apperrors.Is(err, apperrors.ErrTrackingLimit) {
		t.Errorf("free user's second bond must hit the cap, got %v", err)
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.Add(ctx, 100, "RU000A0JX0J2", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	_, err := f.svc.Add(ctx, 100, "RU000A0JX0J2", 1)
	if !apperrors.Is(err, apperrors.ErrAlreadyTracking) {
		t.Errorf("duplicate add must yield ErrAlreadyTracking, got %v", err)
	}
}

func TestRemoveKeepsInstrument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.Add(ctx, 100, "RU000A0JX0J2", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := f.svc.Remove(ctx, 100, "RU000A0JX0J2"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if _, err := f.store.GetInstrument(ctx, "RU000A0JX0J2"); err != nil {
		t.Errorf("instrument must survive tracking removal: %v", err)
	}

	// Re-adding works because the cap slot is free again.
	if _, err := f.svc.Add(ctx, 100, "RU000A0JX0J2", 2); err != nil {
		t.Errorf("re-add after removal failed: %v", err)
	}
}

func TestSetQuantityFloorsAtOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.Add(ctx, 100, "RU000A0JX0J2", 5); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := f.svc.SetQuantity(ctx, 100, "RU000A0JX0J2", 0); err != nil {
		t.Fatalf("SetQuantity failed: %v", err)
	}

	tracking, err := f.store.GetTracking(ctx, 100, "RU000A0JX0J2")
	if err != nil {
		t.Fatalf("GetTracking failed: %v", err)
	}
	if tracking.Quantity != 1 {
		t.Errorf("quantity must floor at 1, got %d", tracking.Quantity)
	}
}

func TestListIncludesInstrumentData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.Add(ctx, 100, "RU000A0JX0J2", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := f.store.SetInstrumentName(ctx, "RU000A0JX0J2", "ОФЗ 26238"); err != nil {
		t.Fatalf("SetInstrumentName failed: %v", err)
	}

	bonds, err := f.svc.List(ctx, 100)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(bonds) != 1 {
		t.Fatalf("expected 1 bond, got %d", len(bonds))
	}
	if bonds[0].Instrument.Name != "ОФЗ 26238" || bonds[0].Tracking.Quantity != 2 {
		t.Errorf("unexpected listing: %+v", bonds[0])
	}

	empty, err := f.svc.List(ctx, 200)
	if err != nil {
		t.Fatalf("List for unknown user failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty list, got %d", len(empty))
	}
}
