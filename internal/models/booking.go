package models

import "time"

type Booking struct {
	ID                 string     `json:"id"`
	CustomerUsername   string     `json:"customerUsername"`
	CustomerName       string     `json:"customerName"`
	CustomerEmail      string     `json:"customerEmail"`
	ProviderUsername   string     `json:"providerUsername"`
	Service            string     `json:"service"`
	ProviderExperience string     `json:"providerExperience"`
	ProviderLocation   string     `json:"providerLocation"`
	VisitingPrice      int64      `json:"visitingPrice"`
	MaxPrice           int64      `json:"maxPrice"`
	RequestedDate      time.Time  `json:"requestedDate"`
	Description        string     `json:"description"`
	Status             string     `json:"status"` // pending, confirm, completed, rejected, cancel
	OTPCode            string     `json:"-"`
	OTPExpiresAt       *time.Time `json:"-"`
	Feedback           string     `json:"feedback,omitempty"`
	FeedbackGiven      bool       `json:"feedbackGiven"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	Version            int64      `json:"-"`
}

// Challenge is the live OTP attached to a booking while completion is in flight.
type Challenge struct {
	Code      string
	ExpiresAt time.Time
}

// Challenge returns the live OTP challenge, or nil when none is set.
func (b *Booking) Challenge() *Challenge {
	if b.OTPCode == "" || b.OTPExpiresAt == nil {
		return nil
	}
	return &Challenge{Code: b.OTPCode, ExpiresAt: *b.OTPExpiresAt}
}

// Expired reports whether the challenge is past its expiry at the given
// instant. The comparison is strict: verification at the exact expiry
// instant still succeeds.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
