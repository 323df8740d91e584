package service

import (
	"context"
	"io"
	"testing"
	"time"

	"handyhub/internal/database"
	"handyhub/internal/domain"
	"handyhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	customer = models.Identity{Username: "alice", Email: "alice@example.com", FullName: "Alice", Role: models.RoleCustomer}
	provider = models.Identity{Username: "bob", Email: "bob@example.com", FullName: "Bob", Role: models.RoleProvider}
	admin    = models.Identity{Username: "root", Role: models.RoleAdmin}
)

func newBookingService(repo *mockRepo, bus *mockEventBus) *BookingService {
	logger := zerolog.New(io.Discard)
	return NewBookingService(repo, bus, &logger)
}

func pendingBooking(id string) *models.Booking {
	return &models.Booking{
		ID:               id,
		CustomerUsername: "alice",
		CustomerEmail:    "alice@example.com",
		ProviderUsername: "bob",
		Service:          "plumbing",
		VisitingPrice:    100,
		MaxPrice:         500,
		RequestedDate:    time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Status:           models.StatusPending,
		Version:          1,
	}
}

func TestBookingServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid", func(t *testing.T) {
		repo := new(mockRepo)
		bus := new(mockEventBus)
		svc := newBookingService(repo, bus)

		repo.On("CreateBooking", ctx, mock.Anything).Return(nil).Once()
		bus.On("PublishJSON", "booking_created", mock.Anything).Return(nil).Once()

		req := &models.Booking{
			ProviderUsername: "bob",
			Service:          "plumbing",
			VisitingPrice:    100,
			MaxPrice:         500,
			RequestedDate:    time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
			// Клиент не может выставить себе готовый статус
			Status: models.StatusCompleted,
		}

		booking, err := svc.CreateBooking(ctx, customer, req)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, booking.Status)
		assert.Equal(t, "alice", booking.CustomerUsername)
		assert.NotEmpty(t, booking.ID)
		assert.Empty(t, booking.OTPCode)
		assert.False(t, booking.FeedbackGiven)
		repo.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("Validation", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		cases := []struct {
			name string
			req  *models.Booking
		}{
			{"MissingProvider", &models.Booking{Service: "x", VisitingPrice: 1, MaxPrice: 1}},
			{"MissingService", &models.Booking{ProviderUsername: "bob", VisitingPrice: 1, MaxPrice: 1}},
			{"ZeroVisitingPrice", &models.Booking{ProviderUsername: "bob", Service: "x", MaxPrice: 1}},
			{"NegativeMaxPrice", &models.Booking{ProviderUsername: "bob", Service: "x", VisitingPrice: 1, MaxPrice: -5}},
			{"MaxBelowVisiting", &models.Booking{ProviderUsername: "bob", Service: "x", VisitingPrice: 100, MaxPrice: 50}},
			{"MissingDate", &models.Booking{ProviderUsername: "bob", Service: "x", VisitingPrice: 1, MaxPrice: 1}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.CreateBooking(ctx, customer, tc.req)
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
			})
		}
		repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})
}

func TestBookingServiceSetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("ProviderConfirms", func(t *testing.T) {
		repo := new(mockRepo)
		bus := new(mockEventBus)
		svc := newBookingService(repo, bus)

		b := pendingBooking("b1")
		confirmed := pendingBooking("b1")
		confirmed.Status = models.StatusConfirm
		confirmed.Version = 2

		repo.On("GetBooking", ctx, "b1").Return(b, nil).Once()
		repo.On("UpdateBookingStatusWithVersion", ctx, "b1", int64(1), models.StatusConfirm).Return(nil).Once()
		repo.On("GetBooking", ctx, "b1").Return(confirmed, nil).Once()
		bus.On("PublishJSON", "booking_confirmed", mock.Anything).Return(nil).Once()

		got, err := svc.SetStatus(ctx, provider, "b1", models.StatusConfirm)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirm, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("ProviderRejects", func(t *testing.T) {
		repo := new(mockRepo)
		bus := new(mockEventBus)
		svc := newBookingService(repo, bus)

		b := pendingBooking("b2")
		rejected := pendingBooking("b2")
		rejected.Status = models.StatusRejected

		repo.On("GetBooking", ctx, "b2").Return(b, nil).Once()
		repo.On("UpdateBookingStatusWithVersion", ctx, "b2", int64(1), models.StatusRejected).Return(nil).Once()
		repo.On("GetBooking", ctx, "b2").Return(rejected, nil).Once()
		bus.On("PublishJSON", "booking_rejected", mock.Anything).Return(nil).Once()

		got, err := svc.SetStatus(ctx, provider, "b2", models.StatusRejected)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, got.Status)
	})

	t.Run("WrongProviderDenied", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		other := models.Identity{Username: "mallory", Role: models.RoleProvider}
		repo.On("GetBooking", ctx, "b3").Return(pendingBooking("b3"), nil).Once()

		_, err := svc.SetStatus(ctx, other, "b3", models.StatusConfirm)
		var terr *domain.InvalidTransitionError
		require.ErrorAs(t, err, &terr)
		repo.AssertNotCalled(t, "UpdateBookingStatusWithVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CustomerCannotConfirm", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		repo.On("GetBooking", ctx, "b4").Return(pendingBooking("b4"), nil).Once()

		_, err := svc.SetStatus(ctx, customer, "b4", models.StatusConfirm)
		var terr *domain.InvalidTransitionError
		require.ErrorAs(t, err, &terr)
	})

	t.Run("CustomerCancelsConfirmed", func(t *testing.T) {
		repo := new(mockRepo)
		bus := new(mockEventBus)
		svc := newBookingService(repo, bus)

		b := pendingBooking("b5")
		b.Status = models.StatusConfirm
		cancelled := pendingBooking("b5")
		cancelled.Status = models.StatusCancel

		repo.On("GetBooking", ctx, "b5").Return(b, nil).Once()
		repo.On("UpdateBookingStatusWithVersion", ctx, "b5", int64(1), models.StatusCancel).Return(nil).Once()
		repo.On("GetBooking", ctx, "b5").Return(cancelled, nil).Once()
		bus.On("PublishJSON", "booking_cancelled", mock.Anything).Return(nil).Once()

		got, err := svc.SetStatus(ctx, customer, "b5", models.StatusCancel)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancel, got.Status)
	})

	t.Run("CompletedNeverViaSetStatus", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		b := pendingBooking("b6")
		b.Status = models.StatusConfirm
		repo.On("GetBooking", ctx, "b6").Return(b, nil).Once()

		_, err := svc.SetStatus(ctx, provider, "b6", models.StatusCompleted)
		var terr *domain.InvalidTransitionError
		require.ErrorAs(t, err, &terr)
	})

	t.Run("TerminalIsFrozen", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		for _, status := range []string{models.StatusCompleted, models.StatusRejected, models.StatusCancel} {
			b := pendingBooking("b7")
			b.Status = status
			repo.On("GetBooking", ctx, "b7").Return(b, nil).Once()

			_, err := svc.SetStatus(ctx, admin, "b7", models.StatusCancel)
			var terr *domain.InvalidTransitionError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, status, terr.Current)
		}
	})

	t.Run("LostRaceReportsWinnerStatus", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		b := pendingBooking("b8")
		winner := pendingBooking("b8")
		winner.Status = models.StatusRejected
		winner.Version = 2

		repo.On("GetBooking", ctx, "b8").Return(b, nil).Once()
		repo.On("UpdateBookingStatusWithVersion", ctx, "b8", int64(1), models.StatusCancel).
			Return(database.ErrConcurrentModification).Once()
		repo.On("GetBooking", ctx, "b8").Return(winner, nil).Once()

		_, err := svc.SetStatus(ctx, customer, "b8", models.StatusCancel)
		var terr *domain.InvalidTransitionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, models.StatusRejected, terr.Current)
		assert.Equal(t, models.StatusCancel, terr.Target)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		repo.On("GetBooking", ctx, "missing").Return(nil, database.ErrNotFound).Once()

		_, err := svc.SetStatus(ctx, customer, "missing", models.StatusCancel)
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})
}

func TestBookingServiceFeedback(t *testing.T) {
	ctx := context.Background()

	completedBooking := func(id string) *models.Booking {
		b := pendingBooking(id)
		b.Status = models.StatusCompleted
		b.Version = 3
		return b
	}

	t.Run("Attach", func(t *testing.T) {
		repo := new(mockRepo)
		bus := new(mockEventBus)
		svc := newBookingService(repo, bus)

		b := completedBooking("f1")
		withFeedback := completedBooking("f1")
		withFeedback.Feedback = "great work"
		withFeedback.FeedbackGiven = true

		repo.On("GetBooking", ctx, "f1").Return(b, nil).Once()
		repo.On("SetFeedbackWithVersion", ctx, "f1", int64(3), "great work").Return(nil).Once()
		repo.On("GetBooking", ctx, "f1").Return(withFeedback, nil).Once()
		bus.On("PublishJSON", "feedback_left", mock.Anything).Return(nil).Once()

		got, err := svc.AttachFeedback(ctx, customer, "f1", "great work")
		require.NoError(t, err)
		assert.True(t, got.FeedbackGiven)
		assert.Equal(t, "great work", got.Feedback)
	})

	t.Run("NotCompleted", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		repo.On("GetBooking", ctx, "f2").Return(pendingBooking("f2"), nil).Once()

		_, err := svc.AttachFeedback(ctx, customer, "f2", "too early")
		assert.ErrorIs(t, err, domain.ErrFeedbackNotReady)
	})

	t.Run("AlreadySubmitted", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		b := completedBooking("f3")
		b.FeedbackGiven = true
		repo.On("GetBooking", ctx, "f3").Return(b, nil).Once()

		_, err := svc.AttachFeedback(ctx, customer, "f3", "again")
		assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	})

	t.Run("EmptyText", func(t *testing.T) {
		svc := newBookingService(new(mockRepo), new(mockEventBus))

		_, err := svc.AttachFeedback(ctx, customer, "f4", "")
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("ForeignCustomerSeesNotFound", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		other := models.Identity{Username: "mallory", Role: models.RoleCustomer}
		repo.On("GetBooking", ctx, "f5").Return(completedBooking("f5"), nil).Once()

		_, err := svc.AttachFeedback(ctx, other, "f5", "sneaky")
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})

	t.Run("StrangerProviderSeesNotFound", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		// Провайдер, не участвующий в брони, не должен занять слот отзыва.
		stranger := models.Identity{Username: "mallory", Role: models.RoleProvider}
		repo.On("GetBooking", ctx, "f7").Return(completedBooking("f7"), nil).Once()

		_, err := svc.AttachFeedback(ctx, stranger, "f7", "fake 5 stars")
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})

	t.Run("OwningProviderSeesNotFound", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		repo.On("GetBooking", ctx, "f8").Return(completedBooking("f8"), nil).Once()

		_, err := svc.AttachFeedback(ctx, provider, "f8", "self praise")
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})

	t.Run("RaceBecomesAlreadySubmitted", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))

		b := completedBooking("f6")
		winner := completedBooking("f6")
		winner.FeedbackGiven = true
		winner.Version = 4

		repo.On("GetBooking", ctx, "f6").Return(b, nil).Once()
		repo.On("SetFeedbackWithVersion", ctx, "f6", int64(3), "mine").
			Return(database.ErrConcurrentModification).Once()
		repo.On("GetBooking", ctx, "f6").Return(winner, nil).Once()

		_, err := svc.AttachFeedback(ctx, customer, "f6", "mine")
		assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	})
}

func TestBookingsFor(t *testing.T) {
	ctx := context.Background()
	bookings := []*models.Booking{pendingBooking("x1")}

	t.Run("Customer", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))
		repo.On("GetBookingsByCustomer", ctx, "alice").Return(bookings, nil).Once()

		got, err := svc.BookingsFor(ctx, customer)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Provider", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))
		repo.On("GetBookingsByProvider", ctx, "bob").Return(bookings, nil).Once()

		got, err := svc.BookingsFor(ctx, provider)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Admin", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newBookingService(repo, new(mockEventBus))
		repo.On("GetAllBookings", ctx).Return(bookings, nil).Once()

		got, err := svc.BookingsFor(ctx, admin)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
