package service

import (
	"context"
	"errors"
	"fmt"

	"handyhub/internal/database"
	"handyhub/internal/domain"
	"handyhub/internal/events"
	"handyhub/internal/metrics"
	"handyhub/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService owns the booking lifecycle. All status changes funnel
// through the transition table in canTransition; the store's versioned
// updates make each accepted transition a single atomic write.
type BookingService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, actor models.Identity, req *models.Booking) (*models.Booking, error) {
	if err := validateBookingRequest(req); err != nil {
		return nil, err
	}

	booking := *req
	booking.ID = uuid.NewString()
	booking.CustomerUsername = actor.Username
	booking.CustomerName = actor.FullName
	booking.CustomerEmail = actor.Email
	booking.Status = models.StatusPending
	booking.OTPCode = ""
	booking.OTPExpiresAt = nil
	booking.Feedback = ""
	booking.FeedbackGiven = false

	if err := s.repo.CreateBooking(ctx, &booking); err != nil {
		return nil, err
	}

	metrics.IncTransition(models.StatusPending)
	s.publishEvent(events.EventBookingCreated, &booking, actor.Role)

	return &booking, nil
}

func validateBookingRequest(req *models.Booking) error {
	switch {
	case req.ProviderUsername == "":
		return &domain.ValidationError{Field: "providerUsername", Reason: "required"}
	case req.Service == "":
		return &domain.ValidationError{Field: "service", Reason: "required"}
	case req.VisitingPrice <= 0:
		return &domain.ValidationError{Field: "visitingPrice", Reason: "must be positive"}
	case req.MaxPrice <= 0:
		return &domain.ValidationError{Field: "maxPrice", Reason: "must be positive"}
	case req.MaxPrice < req.VisitingPrice:
		return &domain.ValidationError{Field: "maxPrice", Reason: "must not be below visitingPrice"}
	case req.RequestedDate.IsZero():
		return &domain.ValidationError{Field: "requestedDate", Reason: "required"}
	}
	return nil
}

// SetStatus applies one transition of the lifecycle table. The loser of a
// concurrent race gets an InvalidTransitionError reflecting the status the
// winner left behind.
func (s *BookingService) SetStatus(ctx context.Context, actor models.Identity, bookingID, target string) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := canTransition(booking, actor, target); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, bookingID, booking.Version, target); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, s.lostRace(ctx, bookingID, target)
		}
		return nil, err
	}

	updated, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(target)
	s.publishEvent(eventForStatus(target), updated, actor.Role)

	return updated, nil
}

// CancelByAdmin skips the party-identity guard but is still blocked once the
// booking reached a terminal status.
func (s *BookingService) CancelByAdmin(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.SetStatus(ctx, models.Identity{Role: models.RoleAdmin}, bookingID, models.StatusCancel)
}

// canTransition is the single authority on who may move a booking where.
func canTransition(b *models.Booking, actor models.Identity, target string) error {
	if models.IsTerminal(b.Status) {
		return &domain.InvalidTransitionError{Current: b.Status, Target: target}
	}

	switch target {
	case models.StatusConfirm, models.StatusRejected:
		if b.Status == models.StatusPending && actor.IsProvider() && actor.Username == b.ProviderUsername {
			return nil
		}
	case models.StatusCancel:
		if b.Status != models.StatusPending && b.Status != models.StatusConfirm {
			break
		}
		if actor.IsAdmin() {
			return nil
		}
		if actor.IsCustomer() && actor.Username == b.CustomerUsername {
			return nil
		}
	case models.StatusCompleted:
		// Completion is reachable only through OTP verification.
	}

	return &domain.InvalidTransitionError{Current: b.Status, Target: target}
}

func (s *BookingService) AttachFeedback(ctx context.Context, actor models.Identity, bookingID, text string) (*models.Booking, error) {
	if text == "" {
		return nil, &domain.ValidationError{Field: "text", Reason: "required"}
	}

	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && actor.Username != booking.CustomerUsername {
		// Feedback is write-once: a stranger must not be able to claim the slot.
		return nil, domain.ErrBookingNotFound
	}
	if booking.Status != models.StatusCompleted {
		return nil, domain.ErrFeedbackNotReady
	}
	if booking.FeedbackGiven {
		return nil, domain.ErrAlreadySubmitted
	}

	if err := s.repo.SetFeedbackWithVersion(ctx, bookingID, booking.Version, text); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			// Re-read to report the reason the conditional write matched nothing.
			current, readErr := s.getBooking(ctx, bookingID)
			if readErr != nil {
				return nil, readErr
			}
			if current.FeedbackGiven {
				return nil, domain.ErrAlreadySubmitted
			}
			return nil, domain.ErrFeedbackNotReady
		}
		return nil, err
	}

	updated, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventFeedbackLeft, updated, actor.Role)
	return updated, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.getBooking(ctx, id)
}

// BookingsFor returns the bookings the actor is a party to; admins see all.
func (s *BookingService) BookingsFor(ctx context.Context, actor models.Identity) ([]*models.Booking, error) {
	switch {
	case actor.IsAdmin():
		return s.repo.GetAllBookings(ctx)
	case actor.IsProvider():
		return s.repo.GetBookingsByProvider(ctx, actor.Username)
	default:
		return s.repo.GetBookingsByCustomer(ctx, actor.Username)
	}
}

func (s *BookingService) ProviderFeedback(ctx context.Context, providerUsername string) ([]*models.Booking, error) {
	return s.repo.GetProviderFeedback(ctx, providerUsername)
}

func (s *BookingService) CountByStatus(ctx context.Context, status string) (int64, error) {
	return s.repo.CountBookingsByStatus(ctx, status)
}

func (s *BookingService) AllBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.repo.GetAllBookings(ctx)
}

func (s *BookingService) getBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return booking, nil
}

func (s *BookingService) lostRace(ctx context.Context, bookingID, target string) error {
	current, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	return &domain.InvalidTransitionError{Current: current.Status, Target: target}
}

func eventForStatus(status string) string {
	switch status {
	case models.StatusConfirm:
		return events.EventBookingConfirmed
	case models.StatusRejected:
		return events.EventBookingRejected
	case models.StatusCancel:
		return events.EventBookingCancelled
	case models.StatusCompleted:
		return events.EventBookingCompleted
	default:
		return events.EventBookingCreated
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:        booking.ID,
		CustomerUsername: booking.CustomerUsername,
		CustomerEmail:    booking.CustomerEmail,
		CustomerName:     booking.CustomerName,
		ProviderUsername: booking.ProviderUsername,
		Service:          booking.Service,
		Status:           booking.Status,
		RequestedDate:    booking.RequestedDate,
		ChangedBy:        changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
