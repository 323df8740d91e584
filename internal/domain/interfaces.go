package domain

import (
	"context"
	"time"

	"handyhub/internal/models"
)

type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id string, version int64, status string) error
	SetChallengeWithVersion(ctx context.Context, id string, version int64, code string, expiresAt time.Time) error
	ClearChallengeWithVersion(ctx context.Context, id string, version int64) error
	CompleteWithVersion(ctx context.Context, id string, version int64) error
	SetFeedbackWithVersion(ctx context.Context, id string, version int64, text string) error
	GetBookingsByCustomer(ctx context.Context, username string) ([]*models.Booking, error)
	GetBookingsByProvider(ctx context.Context, username string) ([]*models.Booking, error)
	GetAllBookings(ctx context.Context) ([]*models.Booking, error)
	GetProviderFeedback(ctx context.Context, username string) ([]*models.Booking, error)
	CountBookingsByStatus(ctx context.Context, status string) (int64, error)

	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	GetActiveListings(ctx context.Context) ([]*models.Listing, error)
	GetListingsByProvider(ctx context.Context, username string) ([]*models.Listing, error)
	UpdateListingApproval(ctx context.Context, id string, approval string) error
}

type BookingService interface {
	CreateBooking(ctx context.Context, actor models.Identity, req *models.Booking) (*models.Booking, error)
	SetStatus(ctx context.Context, actor models.Identity, bookingID, target string) (*models.Booking, error)
	CancelByAdmin(ctx context.Context, bookingID string) (*models.Booking, error)
	AttachFeedback(ctx context.Context, actor models.Identity, bookingID, text string) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	BookingsFor(ctx context.Context, actor models.Identity) ([]*models.Booking, error)
	ProviderFeedback(ctx context.Context, providerUsername string) ([]*models.Booking, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	AllBookings(ctx context.Context) ([]*models.Booking, error)
}

type OTPService interface {
	Issue(ctx context.Context, bookingID string) (deliveredTo string, err error)
	Verify(ctx context.Context, bookingID, code string) (*models.Booking, error)
}

type ListingService interface {
	CreateListing(ctx context.Context, actor models.Identity, listing *models.Listing) (*models.Listing, error)
	ActiveListings(ctx context.Context) ([]*models.Listing, error)
	ProviderListings(ctx context.Context, username string) ([]*models.Listing, error)
	SetApproval(ctx context.Context, listingID, approval string) (*models.Listing, error)
}

// Notifier delivers messages out-of-band. SendOTP failures surface to the
// caller; SendStatusUpdate runs behind the event bus and is best effort.
type Notifier interface {
	SendOTP(ctx context.Context, email, name, code string, ttl time.Duration) error
	SendStatusUpdate(ctx context.Context, email, name string, booking *models.Booking) error
}

// ResendLimiter bounds how often a code may be issued per booking.
type ResendLimiter interface {
	Allow(ctx context.Context, bookingID string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
