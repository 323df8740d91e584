package service

import (
	"context"
	"time"

	"handyhub/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) UpdateBookingStatusWithVersion(ctx context.Context, id string, v int64, s string) error {
	return m.Called(ctx, id, v, s).Error(0)
}
func (m *mockRepo) SetChallengeWithVersion(ctx context.Context, id string, v int64, code string, exp time.Time) error {
	return m.Called(ctx, id, v, code, exp).Error(0)
}
func (m *mockRepo) ClearChallengeWithVersion(ctx context.Context, id string, v int64) error {
	return m.Called(ctx, id, v).Error(0)
}
func (m *mockRepo) CompleteWithVersion(ctx context.Context, id string, v int64) error {
	return m.Called(ctx, id, v).Error(0)
}
func (m *mockRepo) SetFeedbackWithVersion(ctx context.Context, id string, v int64, text string) error {
	return m.Called(ctx, id, v, text).Error(0)
}
func (m *mockRepo) GetBookingsByCustomer(ctx context.Context, u string) ([]*models.Booking, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetBookingsByProvider(ctx context.Context, u string) ([]*models.Booking, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetAllBookings(ctx context.Context) ([]*models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetProviderFeedback(ctx context.Context, u string) ([]*models.Booking, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) CountBookingsByStatus(ctx context.Context, s string) (int64, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockRepo) CreateListing(ctx context.Context, l *models.Listing) error {
	return m.Called(ctx, l).Error(0)
}
func (m *mockRepo) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *mockRepo) GetActiveListings(ctx context.Context) ([]*models.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}
func (m *mockRepo) GetListingsByProvider(ctx context.Context, u string) ([]*models.Listing, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}
func (m *mockRepo) UpdateListingApproval(ctx context.Context, id, approval string) error {
	return m.Called(ctx, id, approval).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendOTP(ctx context.Context, email, name, code string, ttl time.Duration) error {
	return m.Called(ctx, email, name, code, ttl).Error(0)
}
func (m *mockNotifier) SendStatusUpdate(ctx context.Context, email, name string, b *models.Booking) error {
	return m.Called(ctx, email, name, b).Error(0)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, bookingID string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, bookingID, limit, window)
	return args.Bool(0), args.Error(1)
}
