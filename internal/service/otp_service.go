package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"handyhub/internal/database"
	"handyhub/internal/domain"
	"handyhub/internal/events"
	"handyhub/internal/metrics"
	"handyhub/internal/models"

	"github.com/rs/zerolog"
)

// OTPService issues and verifies completion codes. A live challenge exists
// only while the booking is confirmed; every other status change wipes it.
type OTPService struct {
	repo         domain.Repository
	notifier     domain.Notifier
	limiter      domain.ResendLimiter
	eventBus     domain.EventPublisher
	ttl          time.Duration
	resendLimit  int
	resendWindow time.Duration
	logger       *zerolog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

func NewOTPService(repo domain.Repository, notifier domain.Notifier, limiter domain.ResendLimiter, eventBus domain.EventPublisher, cfg OTPConfig, logger *zerolog.Logger) *OTPService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultOTPTTL) * time.Second
	}
	limit := cfg.ResendLimit
	if limit <= 0 {
		limit = models.DefaultOTPResendLimit
	}
	window := cfg.ResendWindow
	if window <= 0 {
		window = time.Duration(models.DefaultOTPResendWindow) * time.Second
	}

	return &OTPService{
		repo:         repo,
		notifier:     notifier,
		limiter:      limiter,
		eventBus:     eventBus,
		ttl:          ttl,
		resendLimit:  limit,
		resendWindow: window,
		logger:       logger,
		now:          time.Now,
	}
}

// OTPConfig carries the tunables for code issuance.
type OTPConfig struct {
	TTL          time.Duration
	ResendLimit  int
	ResendWindow time.Duration
}

// Issue generates a fresh code for a confirmed booking and emails it to the
// customer. Re-issuing replaces the previous challenge wholesale.
func (s *OTPService) Issue(ctx context.Context, bookingID string) (string, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}

	if booking.Status != models.StatusConfirm {
		metrics.IncOTP("rejected")
		return "", &domain.InvalidTransitionError{Current: booking.Status, Target: models.StatusCompleted}
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, bookingID, s.resendLimit, s.resendWindow)
		if err != nil {
			// Лимитер недоступен — пропускаем, код всё равно выдаём.
			s.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("resend limiter unavailable")
		} else if !ok {
			metrics.IncOTP("throttled")
			return "", domain.ErrResendThrottled
		}
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	expiresAt := s.now().Add(s.ttl)

	if err := s.repo.SetChallengeWithVersion(ctx, bookingID, booking.Version, code, expiresAt); err != nil {
		if !errors.Is(err, database.ErrConcurrentModification) {
			return "", err
		}
		// One retry: a parallel resend only bumped the version.
		fresh, rerr := s.getBooking(ctx, bookingID)
		if rerr != nil {
			return "", rerr
		}
		if fresh.Status != models.StatusConfirm {
			metrics.IncOTP("rejected")
			return "", &domain.InvalidTransitionError{Current: fresh.Status, Target: models.StatusCompleted}
		}
		if err := s.repo.SetChallengeWithVersion(ctx, bookingID, fresh.Version, code, expiresAt); err != nil {
			return "", err
		}
	}

	if err := s.notifier.SendOTP(ctx, booking.CustomerEmail, booking.CustomerName, code, s.ttl); err != nil {
		metrics.IncOTP("send_failed")
		// The challenge stays live; the caller may retry delivery via resend.
		return "", &domain.NotificationError{Err: err}
	}

	metrics.IncOTP("issued")
	s.publishIssued(booking)

	return booking.CustomerEmail, nil
}

// Verify checks the submitted code and, on match, completes the booking in a
// single versioned write. A challenge that was never issued, already consumed
// or wiped by a status change all read the same from outside.
func (s *OTPService) Verify(ctx context.Context, bookingID, code string) (*models.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	challenge := booking.Challenge()
	if challenge == nil {
		metrics.IncOTP("no_challenge")
		return nil, domain.ErrNoChallenge
	}

	if challenge.Expired(s.now()) {
		if err := s.repo.ClearChallengeWithVersion(ctx, bookingID, booking.Version); err != nil && !errors.Is(err, database.ErrConcurrentModification) {
			s.logger.Error().Err(err).Str("booking_id", bookingID).Msg("clear expired otp error")
		}
		metrics.IncOTP("expired")
		return nil, domain.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		metrics.IncOTP("mismatch")
		return nil, domain.ErrOTPMismatch
	}

	if err := s.repo.CompleteWithVersion(ctx, bookingID, booking.Version); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			// Somebody won the race; whatever they did, our challenge is gone.
			metrics.IncOTP("no_challenge")
			return nil, domain.ErrNoChallenge
		}
		return nil, err
	}

	completed, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	metrics.IncOTP("verified")
	metrics.IncTransition(models.StatusCompleted)
	s.publishCompleted(completed)

	return completed, nil
}

func (s *OTPService) getBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return booking, nil
}

// generateCode draws a uniform six-digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func (s *OTPService) publishIssued(booking *models.Booking) {
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
	}
	if err := s.eventBus.PublishJSON(events.EventOTPIssued, payload); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("publish otp event error")
	}
}

func (s *OTPService) publishCompleted(booking *models.Booking) {
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
	}
	if err := s.eventBus.PublishJSON(events.EventBookingCompleted, payload); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("publish completed event error")
	}
}
