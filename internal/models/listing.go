package models

import "time"

// Listing is a provider's published service offer. Bookings snapshot its
// commercial terms at creation time, so later edits never touch an
// existing booking.
type Listing struct {
	ID               string    `json:"id"`
	ProviderUsername string    `json:"providerUsername"`
	ProviderName     string    `json:"providerName"`
	Service          string    `json:"service"`
	Description      string    `json:"description"`
	Experience       string    `json:"experience"`
	Location         string    `json:"location"`
	VisitingPrice    int64     `json:"visitingPrice"`
	MaxPrice         int64     `json:"maxPrice"`
	IsActive         bool      `json:"isActive"`
	Approval         string    `json:"approval"` // pending, approve, reject
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
