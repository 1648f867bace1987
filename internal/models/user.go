package models

import "time"

// User is a bot user keyed by their messenger identity.
type User struct {
	ID        int64
	FullName  string
	CreatedAt time.Time
}

// Tracking links a user to an instrument with the number of units held.
type Tracking struct {
	UserID   int64
	ISIN     string
	Quantity int
	AddedAt  time.Time
}

// NotificationRecord is the dedup marker for a dispatched notification.
// At most one record may ever exist per (UserID, ISIN, EventType,
// EventDate) tuple; the store enforces this with a unique constraint.
type NotificationRecord struct {
	ID        string
	UserID    int64
	ISIN      string
	EventType EventType
	EventDate time.Time
	IsSent    bool
	SentAt    *time.Time
	// DaysLeft snapshots the remaining days for offer events, which have
	// a variable lead time. Nil for fixed-lead event types.
	DaysLeft *int
}

// Plan is a subscription tier controlling the tracking cap.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanOptimal Plan = "optimal"
	PlanPro     Plan = "pro"
)

// TrackingLimit returns the number of instruments the plan allows.
// unlimited is true for the pro tier and an unknown plan yields zero.
func (p Plan) TrackingLimit() (limit int, unlimited bool) {
	switch p {
	case PlanFree:
		return 1, false
	case PlanBasic:
		return 10, false
	case PlanOptimal:
		return 20, false
	case PlanPro:
		return 0, true
	default:
		return 0, false
	}
}

// Valid reports whether p is a known tier.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanOptimal, PlanPro:
		return true
	}
	return false
}

// Subscription is a user's current plan. Users without a row are on the
// free tier.
type Subscription struct {
	UserID        int64
	Plan          Plan
	StartedAt     *time.Time
	ExpiresAt     *time.Time
	PaymentStatus string
}

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
)

// Payment is a billing intent identified by its confirmation reference.
type Payment struct {
	Reference   string
	UserID      int64
	Plan        Plan
	Amount      float64
	Status      string
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}
