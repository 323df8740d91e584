package service

import (
	"context"
	"io"
	"testing"

	"handyhub/internal/database"
	"handyhub/internal/domain"
	"handyhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newListingService(repo *mockRepo) *ListingService {
	logger := zerolog.New(io.Discard)
	return NewListingService(repo, &logger)
}

func TestListingCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newListingService(repo)

		repo.On("CreateListing", ctx, mock.Anything).Return(nil).Once()

		req := &models.Listing{
			Service:       "electrical",
			VisitingPrice: 150,
			MaxPrice:      2000,
			Location:      "Riga",
			// Поставщик не утверждает собственное объявление
			Approval: models.ApprovalApproved,
			IsActive: false,
		}

		listing, err := svc.CreateListing(ctx, provider, req)
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalPending, listing.Approval)
		assert.True(t, listing.IsActive)
		assert.Equal(t, "bob", listing.ProviderUsername)
		assert.NotEmpty(t, listing.ID)
		repo.AssertExpectations(t)
	})

	t.Run("Validation", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newListingService(repo)

		cases := []*models.Listing{
			{VisitingPrice: 1, MaxPrice: 1},
			{Service: "x", MaxPrice: 1},
			{Service: "x", VisitingPrice: 1},
			{Service: "x", VisitingPrice: 100, MaxPrice: 50},
		}
		for _, req := range cases {
			_, err := svc.CreateListing(ctx, provider, req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
		}
		repo.AssertNotCalled(t, "CreateListing", mock.Anything, mock.Anything)
	})
}

func TestListingApproval(t *testing.T) {
	ctx := context.Background()

	t.Run("Approve", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newListingService(repo)

		approved := &models.Listing{ID: "l1", Approval: models.ApprovalApproved}
		repo.On("UpdateListingApproval", ctx, "l1", models.ApprovalApproved).Return(nil).Once()
		repo.On("GetListing", ctx, "l1").Return(approved, nil).Once()

		listing, err := svc.SetApproval(ctx, "l1", models.ApprovalApproved)
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalApproved, listing.Approval)
	})

	t.Run("InvalidDecision", func(t *testing.T) {
		svc := newListingService(new(mockRepo))

		_, err := svc.SetApproval(ctx, "l2", "maybe")
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newListingService(repo)

		repo.On("UpdateListingApproval", ctx, "missing", models.ApprovalRejected).
			Return(database.ErrNotFound).Once()

		_, err := svc.SetApproval(ctx, "missing", models.ApprovalRejected)
		assert.ErrorIs(t, err, domain.ErrListingNotFound)
	})
}

func TestListingQueries(t *testing.T) {
	ctx := context.Background()
	listings := []*models.Listing{{ID: "l3", Service: "cleaning"}}

	t.Run("Active", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newListingService(repo)
		repo.On("GetActiveListings", ctx).Return(listings, nil).Once()

		got, err := svc.ActiveListings(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("ByProvider", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newListingService(repo)
		repo.On("GetListingsByProvider", ctx, "bob").Return(listings, nil).Once()

		got, err := svc.ProviderListings(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
