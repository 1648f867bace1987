// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "bondwatch/internal/errors"
	"bondwatch/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	mu       sync.RWMutex
	runTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:       db,
		runTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Tracked bonds; one row per ISIN, never deleted
	CREATE TABLE IF NOT EXISTS instruments (
		isin TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_updated DATETIME,
		maturity_date DATE,
		next_coupon_date DATE,
		next_coupon_value REAL,
		offer_date DATE,
		amortization_date DATE,
		amortization_value REAL
	);

	-- Bot users keyed by messenger identity
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- User-to-instrument tracking with held quantity
	CREATE TABLE IF NOT EXISTS user_tracking (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		isin TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, isin)
	);

	-- Notification dedup markers; the UNIQUE constraint is the sole
	-- at-most-once guarantee of the notification path
	CREATE TABLE IF NOT EXISTS user_notifications (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		isin TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_date DATE NOT NULL,
		is_sent INTEGER DEFAULT 0,
		sent_at DATETIME,
		days_left INTEGER,
		UNIQUE(user_id, isin, event_type, event_date)
	);

	-- Subscription tier per user; absent row means free tier
	CREATE TABLE IF NOT EXISTS subscriptions (
		user_id INTEGER PRIMARY KEY,
		plan TEXT NOT NULL DEFAULT 'free',
		started_at DATETIME,
		expires_at DATETIME,
		payment_status TEXT NOT NULL DEFAULT ''
	);

	-- Billing intents keyed by confirmation reference
	CREATE TABLE IF NOT EXISTS payments (
		reference TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		plan TEXT NOT NULL,
		amount REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		confirmed_at DATETIME
	);

	-- Scheduled job bookkeeping
	CREATE TABLE IF NOT EXISTS job_runs (
		job TEXT PRIMARY KEY,
		last_run DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_tracking_user ON user_tracking(user_id);
	CREATE INDEX IF NOT EXISTS idx_tracking_isin ON user_tracking(isin);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON user_notifications(user_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_isin ON user_notifications(isin);
	CREATE INDEX IF NOT EXISTS idx_notifications_event_date ON user_notifications(event_date);
	CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a unique-constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if apperrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// dateArg formats a date pointer for a DATE column.
func dateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(models.DateLayout)
}

// scanDate parses a DATE column back into a UTC-midnight time.
func scanDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	// The driver may widen DATE text to a full timestamp.
	for _, layout := range []string{models.DateLayout, "2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05-07:00"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			d := models.DateOnly(t)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("unparseable date %q", ns.String)
}

// ============================================================================
// Instruments Methods
// ============================================================================

// CreateInstrument inserts an instrument if it does not exist yet.
func (s *SQLiteStore) CreateInstrument(ctx context.Context, inst *models.Instrument) error {
	if inst.AddedAt.IsZero() {
		inst.AddedAt = time.Now().UTC()
	}
	var lastUpdated interface{}
	if !inst.LastUpdated.IsZero() {
		lastUpdated = inst.LastUpdated
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO instruments (isin, name, added_at, last_updated)
		VALUES (?, ?, ?, ?)
	`, inst.ISIN, inst.Name, inst.AddedAt, lastUpdated)
	if err != nil {
		return fmt.Errorf("failed to create instrument: %w", err)
	}
	return nil
}

const instrumentColumns = `isin, name, added_at, last_updated,
	maturity_date, next_coupon_date, next_coupon_value,
	offer_date, amortization_date, amortization_value`

func scanInstrument(scan func(dest ...interface{}) error) (*models.Instrument, error) {
	var inst models.Instrument
	var lastUpdated sql.NullTime
	var maturity, couponDate, offerDate, amortDate sql.NullString
	var couponValue, amortValue sql.NullFloat64

	if err := scan(&inst.ISIN, &inst.Name, &inst.AddedAt, &lastUpdated,
		&maturity, &couponDate, &couponValue,
		&offerDate, &amortDate, &amortValue); err != nil {
		return nil, err
	}

	if lastUpdated.Valid {
		inst.LastUpdated = lastUpdated.Time
	} else {
		inst.LastUpdated = inst.AddedAt
	}

	var err error
	if inst.MaturityDate, err = scanDate(maturity); err != nil {
		return nil, err
	}
	if inst.NextCouponDate, err = scanDate(couponDate); err != nil {
		return nil, err
	}
	if inst.OfferDate, err = scanDate(offerDate); err != nil {
		return nil, err
	}
	if inst.AmortizationDate, err = scanDate(amortDate); err != nil {
		return nil, err
	}
	if couponValue.Valid {
		v := couponValue.Float64
		inst.NextCouponValue = &v
	}
	if amortValue.Valid {
		v := amortValue.Float64
		inst.AmortizationValue = &v
	}
	return &inst, nil
}

// GetInstrument retrieves an instrument by ISIN.
func (s *SQLiteStore) GetInstrument(ctx context.Context, isin string) (*models.Instrument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+instrumentColumns+` FROM instruments WHERE isin = ?
	`, isin)

	inst, err := scanInstrument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrInstrumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return inst, nil
}

func (s *SQLiteStore) queryInstruments(ctx context.Context, query string, args ...interface{}) ([]models.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []models.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, *inst)
	}
	return instruments, rows.Err()
}

// ListInstruments retrieves all instruments.
func (s *SQLiteStore) ListInstruments(ctx context.Context) ([]models.Instrument, error) {
	return s.queryInstruments(ctx, `
		SELECT `+instrumentColumns+` FROM instruments ORDER BY isin ASC
	`)
}

// ListTrackedInstruments retrieves instruments with at least one active
// tracking relationship.
func (s *SQLiteStore) ListTrackedInstruments(ctx context.Context) ([]models.Instrument, error) {
	return s.queryInstruments(ctx, `
		SELECT `+instrumentColumns+` FROM instruments
		WHERE isin IN (SELECT DISTINCT isin FROM user_tracking)
		ORDER BY isin ASC
	`)
}

// SetInstrumentName updates the display name of an instrument.
func (s *SQLiteStore) SetInstrumentName(ctx context.Context, isin, name string) error {
	return s.updateInstrument(ctx, isin, `UPDATE instruments SET name = ? WHERE isin = ?`, name, isin)
}

// SetMaturityDate overwrites the stored maturity date.
func (s *SQLiteStore) SetMaturityDate(ctx context.Context, isin string, date time.Time) error {
	return s.updateInstrument(ctx, isin,
		`UPDATE instruments SET maturity_date = ? WHERE isin = ?`, dateArg(&date), isin)
}

// SetOfferDate overwrites the stored offer date.
func (s *SQLiteStore) SetOfferDate(ctx context.Context, isin string, date time.Time) error {
	return s.updateInstrument(ctx, isin,
		`UPDATE instruments SET offer_date = ? WHERE isin = ?`, dateArg(&date), isin)
}

// SetNextCoupon overwrites the stored next coupon. A nil value is kept
// as NULL so an unknown amount is never confused with a zero coupon.
func (s *SQLiteStore) SetNextCoupon(ctx context.Context, isin string, date time.Time, value *float64) error {
	var v interface{}
	if value != nil {
		v = *value
	}
	return s.updateInstrument(ctx, isin,
		`UPDATE instruments SET next_coupon_date = ?, next_coupon_value = ? WHERE isin = ?`,
		dateArg(&date), v, isin)
}

// SetAmortization overwrites the stored next amortization.
func (s *SQLiteStore) SetAmortization(ctx context.Context, isin string, date time.Time, value float64) error {
	return s.updateInstrument(ctx, isin,
		`UPDATE instruments SET amortization_date = ?, amortization_value = ? WHERE isin = ?`,
		dateArg(&date), value, isin)
}

// TouchInstrument records a completed refresh.
func (s *SQLiteStore) TouchInstrument(ctx context.Context, isin string, at time.Time) error {
	return s.updateInstrument(ctx, isin,
		`UPDATE instruments SET last_updated = ? WHERE isin = ?`, at, isin)
}

func (s *SQLiteStore) updateInstrument(ctx context.Context, isin, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update instrument: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrInstrumentNotFound
	}
	return nil
}

// ============================================================================
// Users Methods
// ============================================================================

// UpsertUser inserts a user or refreshes their display name.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	// An empty incoming name never clobbers a stored one.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = COALESCE(NULLIF(excluded.full_name, ''), users.full_name)
	`, user.ID, user.FullName, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by messenger identity.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, created_at FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.FullName, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ============================================================================
// Tracking Methods
// ============================================================================

// AddTracking creates a tracking relationship.
func (s *SQLiteStore) AddTracking(ctx context.Context, t *models.Tracking) error {
	if t.Quantity <= 0 {
		t.Quantity = 1
	}
	if t.AddedAt.IsZero() {
		t.AddedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_tracking (user_id, isin, quantity, added_at)
		VALUES (?, ?, ?, ?)
	`, t.UserID, t.ISIN, t.Quantity, t.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyTracking
		}
		return fmt.Errorf("failed to add tracking: %w", err)
	}
	return nil
}

// RemoveTracking deletes a tracking relationship.
func (s *SQLiteStore) RemoveTracking(ctx context.Context, userID int64, isin string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM user_tracking WHERE user_id = ? AND isin = ?
	`, userID, isin)
	if err != nil {
		return fmt.Errorf("failed to remove tracking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrNotTracking
	}
	return nil
}

// SetTrackingQuantity updates the held quantity.
func (s *SQLiteStore) SetTrackingQuantity(ctx context.Context, userID int64, isin string, quantity int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_tracking SET quantity = ? WHERE user_id = ? AND isin = ?
	`, quantity, userID, isin)
	if err != nil {
		return fmt.Errorf("failed to set tracking quantity: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrNotTracking
	}
	return nil
}

// GetTracking retrieves one tracking relationship.
func (s *SQLiteStore) GetTracking(ctx context.Context, userID int64, isin string) (*models.Tracking, error) {
	var t models.Tracking
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, isin, quantity, added_at FROM user_tracking
		WHERE user_id = ? AND isin = ?
	`, userID, isin).Scan(&t.UserID, &t.ISIN, &t.Quantity, &t.AddedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotTracking
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking: %w", err)
	}
	return &t, nil
}

func (s *SQLiteStore) queryTracking(ctx context.Context, query string, args ...interface{}) ([]models.Tracking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracking: %w", err)
	}
	defer rows.Close()

	var tracking []models.Tracking
	for rows.Next() {
		var t models.Tracking
		if err := rows.Scan(&t.UserID, &t.ISIN, &t.Quantity, &t.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracking: %w", err)
		}
		tracking = append(tracking, t)
	}
	return tracking, rows.Err()
}

// ListTrackingForUser retrieves all instruments a user tracks.
func (s *SQLiteStore) ListTrackingForUser(ctx context.Context, userID int64) ([]models.Tracking, error) {
	return s.queryTracking(ctx, `
		SELECT user_id, isin, quantity, added_at FROM user_tracking
		WHERE user_id = ? ORDER BY added_at ASC
	`, userID)
}

// ListTrackingForInstrument retrieves all users tracking an instrument.
func (s *SQLiteStore) ListTrackingForInstrument(ctx context.Context, isin string) ([]models.Tracking, error) {
	return s.queryTracking(ctx, `
		SELECT user_id, isin, quantity, added_at FROM user_tracking
		WHERE isin = ? ORDER BY added_at ASC
	`, isin)
}

// CountTrackingForUser counts a user's tracking relationships.
func (s *SQLiteStore) CountTrackingForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_tracking WHERE user_id = ?
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tracking: %w", err)
	}
	return count, nil
}

// ============================================================================
// Notifications Methods
// ============================================================================

// CreateNotification inserts a dedup marker. A unique-constraint failure
// on the (user, isin, event type, event date) tuple is reported as
// ErrAlreadyNotified: the conflict itself is the dedup signal, there is
// no prior existence check.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.NotificationRecord) error {
	var sentAt interface{}
	if n.SentAt != nil {
		sentAt = *n.SentAt
	}
	var daysLeft interface{}
	if n.DaysLeft != nil {
		daysLeft = *n.DaysLeft
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_notifications (id, user_id, isin, event_type, event_date, is_sent, sent_at, days_left)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.ISIN, string(n.EventType), n.EventDate.Format(models.DateLayout),
		boolToInt(n.IsSent), sentAt, daysLeft)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyNotified
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// MarkNotificationSent flips the sent flag.
func (s *SQLiteStore) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_notifications SET is_sent = 1, sent_at = ? WHERE id = ?
	`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification not found: %s", id)
	}
	return nil
}

// ListNotifications retrieves notification records.
func (s *SQLiteStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]models.NotificationRecord, error) {
	query := `SELECT id, user_id, isin, event_type, event_date, is_sent, sent_at, days_left
		FROM user_notifications WHERE 1=1`
	args := []interface{}{}

	if filter.UserID != 0 {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.ISIN != "" {
		query += " AND isin = ?"
		args = append(args, filter.ISIN)
	}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, string(filter.EventType))
	}
	if !filter.Since.IsZero() {
		query += " AND event_date >= ?"
		args = append(args, filter.Since.Format(models.DateLayout))
	}

	query += " ORDER BY event_date DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var n models.NotificationRecord
		var eventType string
		var eventDate sql.NullString
		var isSent int
		var sentAt sql.NullTime
		var daysLeft sql.NullInt64

		if err := rows.Scan(&n.ID, &n.UserID, &n.ISIN, &eventType, &eventDate, &isSent, &sentAt, &daysLeft); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		n.EventType = models.EventType(eventType)
		date, err := scanDate(eventDate)
		if err != nil {
			return nil, err
		}
		if date != nil {
			n.EventDate = *date
		}
		n.IsSent = isSent == 1
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		if daysLeft.Valid {
			d := int(daysLeft.Int64)
			n.DaysLeft = &d
		}
		records = append(records, n)
	}

	return records, rows.Err()
}

// ============================================================================
// Subscription & Payment Methods
// ============================================================================

// GetSubscription retrieves a user's subscription. Users without a row
// are on the free tier.
func (s *SQLiteStore) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	var sub models.Subscription
	var startedAt, expiresAt sql.NullTime
	var plan string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, plan, started_at, expires_at, payment_status
		FROM subscriptions WHERE user_id = ?
	`, userID).Scan(&sub.UserID, &plan, &startedAt, &expiresAt, &sub.PaymentStatus)
	if err == sql.ErrNoRows {
		return &models.Subscription{UserID: userID, Plan: models.PlanFree}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	sub.Plan = models.Plan(plan)
	if startedAt.Valid {
		t := startedAt.Time
		sub.StartedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		sub.ExpiresAt = &t
	}
	return &sub, nil
}

// SetSubscription inserts or replaces a user's subscription.
func (s *SQLiteStore) SetSubscription(ctx context.Context, sub *models.Subscription) error {
	var startedAt, expiresAt interface{}
	if sub.StartedAt != nil {
		startedAt = *sub.StartedAt
	}
	if sub.ExpiresAt != nil {
		expiresAt = *sub.ExpiresAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO subscriptions (user_id, plan, started_at, expires_at, payment_status)
		VALUES (?, ?, ?, ?, ?)
	`, sub.UserID, string(sub.Plan), startedAt, expiresAt, sub.PaymentStatus)
	if err != nil {
		return fmt.Errorf("failed to set subscription: %w", err)
	}
	return nil
}

// CreatePayment inserts a payment intent.
func (s *SQLiteStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (reference, user_id, plan, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Reference, p.UserID, string(p.Plan), p.Amount, p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by its reference.
func (s *SQLiteStore) GetPayment(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	var plan string
	var confirmedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT reference, user_id, plan, amount, status, created_at, confirmed_at
		FROM payments WHERE reference = ?
	`, reference).Scan(&p.Reference, &p.UserID, &plan, &p.Amount, &p.Status, &p.CreatedAt, &confirmedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	p.Plan = models.Plan(plan)
	if confirmedAt.Valid {
		t := confirmedAt.Time
		p.ConfirmedAt = &t
	}
	return &p, nil
}

// ConfirmPayment marks a payment as confirmed.
func (s *SQLiteStore) ConfirmPayment(ctx context.Context, reference string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = ?, confirmed_at = ? WHERE reference = ?
	`, models.PaymentConfirmed, at, reference)
	if err != nil {
		return fmt.Errorf("failed to confirm payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.ErrPaymentNotFound
	}
	return nil
}

// ============================================================================
// Job Run Methods
// ============================================================================

// GetLastRun returns the last completed run time for a job.
func (s *SQLiteStore) GetLastRun(job string) time.Time {
	s.mu.RLock()
	if t, ok := s.runTimes[job]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastRun time.Time
	err := s.db.QueryRow(`
		SELECT last_run FROM job_runs WHERE job = ?
	`, job).Scan(&lastRun)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.runTimes[job] = lastRun
	s.mu.Unlock()

	return lastRun
}

// SetLastRun records a completed run for a job.
func (s *SQLiteStore) SetLastRun(job string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO job_runs (job, last_run, updated_at)
		VALUES (?, ?, ?)
	`, job, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last run: %w", err)
	}

	s.mu.Lock()
	s.runTimes[job] = t
	s.mu.Unlock()

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
