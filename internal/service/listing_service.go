package service

import (
	"context"
	"errors"
	"fmt"

	"handyhub/internal/database"
	"handyhub/internal/domain"
	"handyhub/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ListingService manages provider service listings. New listings wait for an
// admin approval decision before the catalog shows them.
type ListingService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewListingService(repo domain.Repository, logger *zerolog.Logger) *ListingService {
	return &ListingService{repo: repo, logger: logger}
}

func (s *ListingService) CreateListing(ctx context.Context, actor models.Identity, req *models.Listing) (*models.Listing, error) {
	switch {
	case req.Service == "":
		return nil, &domain.ValidationError{Field: "service", Reason: "required"}
	case req.VisitingPrice <= 0:
		return nil, &domain.ValidationError{Field: "visitingPrice", Reason: "must be positive"}
	case req.MaxPrice <= 0:
		return nil, &domain.ValidationError{Field: "maxPrice", Reason: "must be positive"}
	case req.MaxPrice < req.VisitingPrice:
		return nil, &domain.ValidationError{Field: "maxPrice", Reason: "must not be below visitingPrice"}
	}

	listing := *req
	listing.ID = uuid.NewString()
	listing.ProviderUsername = actor.Username
	listing.ProviderName = actor.FullName
	listing.IsActive = true
	listing.Approval = models.ApprovalPending

	if err := s.repo.CreateListing(ctx, &listing); err != nil {
		return nil, err
	}

	s.logger.Info().Str("listing_id", listing.ID).Str("provider", listing.ProviderUsername).Msg("listing created")
	return &listing, nil
}

// ActiveListings returns the public catalog: active and approved only.
func (s *ListingService) ActiveListings(ctx context.Context) ([]*models.Listing, error) {
	return s.repo.GetActiveListings(ctx)
}

func (s *ListingService) ProviderListings(ctx context.Context, username string) ([]*models.Listing, error) {
	return s.repo.GetListingsByProvider(ctx, username)
}

func (s *ListingService) SetApproval(ctx context.Context, listingID, approval string) (*models.Listing, error) {
	if approval != models.ApprovalApproved && approval != models.ApprovalRejected {
		return nil, &domain.ValidationError{Field: "approval", Reason: "must be approve or reject"}
	}

	if err := s.repo.UpdateListingApproval(ctx, listingID, approval); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.ErrListingNotFound
		}
		return nil, err
	}

	listing, err := s.repo.GetListing(ctx, listingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", listingID, err)
	}

	s.logger.Info().Str("listing_id", listingID).Str("approval", approval).Msg("listing approval updated")
	return listing, nil
}
