package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"handyhub/internal/models"
)

const listingColumns = `id, provider_username, provider_name, service, description, experience,
                 location, visiting_price, max_price, is_active, approval, created_at, updated_at`

func (db *DB) CreateListing(ctx context.Context, listing *models.Listing) error {
	query := `INSERT INTO listings (
				id, provider_username, provider_name, service, description, experience,
				location, visiting_price, max_price, is_active, approval, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		listing.ID,
		listing.ProviderUsername,
		listing.ProviderName,
		listing.Service,
		listing.Description,
		listing.Experience,
		listing.Location,
		listing.VisitingPrice,
		listing.MaxPrice,
		listing.IsActive,
		listing.Approval,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	listing.CreatedAt = now
	listing.UpdatedAt = now
	return nil
}

func (db *DB) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	listing, err := scanListing(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// GetActiveListings возвращает только активные и одобренные объявления —
// то, что видит покупатель на витрине.
func (db *DB) GetActiveListings(ctx context.Context) ([]*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings
              WHERE is_active = 1 AND approval = ? ORDER BY created_at DESC`
	return db.queryListings(ctx, query, models.ApprovalApproved)
}

func (db *DB) GetListingsByProvider(ctx context.Context, username string) ([]*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE provider_username = ? ORDER BY created_at DESC`
	return db.queryListings(ctx, query, username)
}

func (db *DB) UpdateListingApproval(ctx context.Context, id string, approval string) error {
	query := `UPDATE listings SET approval = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, approval, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update listing approval: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) queryListings(ctx context.Context, query string, args ...interface{}) ([]*models.Listing, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.ProviderUsername, &l.ProviderName, &l.Service, &l.Description, &l.Experience,
		&l.Location, &l.VisitingPrice, &l.MaxPrice, &l.IsActive, &l.Approval, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
