package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"handyhub/internal/models"
)

const bookingColumns = `id, customer_username, customer_name, customer_email, provider_username,
                 service, provider_experience, provider_location, visiting_price, max_price,
                 requested_date, description, status, otp_code, otp_expires_at,
                 feedback, feedback_given, created_at, updated_at, version`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				id, customer_username, customer_name, customer_email, provider_username,
				service, provider_experience, provider_location, visiting_price, max_price,
				requested_date, description, status, feedback, feedback_given,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.CustomerUsername,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.ProviderUsername,
		booking.Service,
		booking.ProviderExperience,
		booking.ProviderLocation,
		booking.VisitingPrice,
		booking.MaxPrice,
		booking.RequestedDate,
		booking.Description,
		booking.Status,
		"",
		false,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingStatusWithVersion меняет статус заявки с оптимистичной
// блокировкой: проигравший конкурентный писатель получает
// ErrConcurrentModification. Живой OTP-код сбрасывается: челлендж может
// существовать только у заявки в статусе confirm.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, otp_code = NULL, otp_expires_at = NULL,
              version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) SetChallengeWithVersion(ctx context.Context, id string, fromVersion int64, code string, expiresAt time.Time) error {
	query := `UPDATE bookings SET otp_code = ?, otp_expires_at = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, code, expiresAt, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to set otp challenge: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) ClearChallengeWithVersion(ctx context.Context, id string, fromVersion int64) error {
	query := `UPDATE bookings SET otp_code = NULL, otp_expires_at = NULL, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to clear otp challenge: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// CompleteWithVersion consumes the challenge and completes the booking in a
// single atomic write, so two concurrent verifications cannot both win.
func (db *DB) CompleteWithVersion(ctx context.Context, id string, fromVersion int64) error {
	query := `UPDATE bookings SET status = ?, otp_code = NULL, otp_expires_at = NULL,
              version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, models.StatusCompleted, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to complete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) SetFeedbackWithVersion(ctx context.Context, id string, fromVersion int64, text string) error {
	query := `UPDATE bookings SET feedback = ?, feedback_given = 1, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status = ? AND feedback_given = 0`
	result, err := db.ExecContext(ctx, query, text, time.Now(), id, fromVersion, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to set feedback: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) GetBookingsByCustomer(ctx context.Context, username string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_username = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, username)
}

func (db *DB) GetBookingsByProvider(ctx context.Context, username string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE provider_username = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, username)
}

func (db *DB) GetAllBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY requested_date DESC`
	return db.queryBookings(ctx, query)
}

func (db *DB) GetProviderFeedback(ctx context.Context, username string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE provider_username = ? AND feedback_given = 1 ORDER BY updated_at DESC`
	return db.queryBookings(ctx, query, username)
}

func (db *DB) CountBookingsByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var otpCode sql.NullString
	var otpExpires sql.NullTime
	var feedback sql.NullString
	err := row.Scan(
		&b.ID, &b.CustomerUsername, &b.CustomerName, &b.CustomerEmail, &b.ProviderUsername,
		&b.Service, &b.ProviderExperience, &b.ProviderLocation, &b.VisitingPrice, &b.MaxPrice,
		&b.RequestedDate, &b.Description, &b.Status, &otpCode, &otpExpires,
		&feedback, &b.FeedbackGiven, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.OTPCode = otpCode.String
	if otpExpires.Valid {
		t := otpExpires.Time
		b.OTPExpiresAt = &t
	}
	b.Feedback = feedback.String
	return &b, nil
}
