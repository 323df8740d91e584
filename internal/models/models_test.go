package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{StatusPending, false},
		{StatusConfirm, false},
		{StatusCompleted, true},
		{StatusRejected, true},
		{StatusCancel, true},
		{"unknown", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.terminal, IsTerminal(tt.status), "status %q", tt.status)
	}
}

func TestChallengeExpired(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Challenge{Code: "482913", ExpiresAt: expiry}

	assert.False(t, c.Expired(expiry.Add(-time.Second)))
	// The boundary instant itself is still valid.
	assert.False(t, c.Expired(expiry))
	assert.True(t, c.Expired(expiry.Add(time.Nanosecond)))
}

func TestBookingChallenge(t *testing.T) {
	b := &Booking{Status: StatusConfirm}
	assert.Nil(t, b.Challenge())

	expiry := time.Now().Add(5 * time.Minute)
	b.OTPCode = "123456"
	b.OTPExpiresAt = &expiry

	c := b.Challenge()
	assert.NotNil(t, c)
	assert.Equal(t, "123456", c.Code)
	assert.Equal(t, expiry, c.ExpiresAt)
}

func TestBookingJSONHidesOTP(t *testing.T) {
	expiry := time.Now().Add(5 * time.Minute)
	b := Booking{
		ID:           "b-1",
		Status:       StatusConfirm,
		OTPCode:      "482913",
		OTPExpiresAt: &expiry,
	}

	raw, err := json.Marshal(b)
	assert.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "482913"), "OTP code must never be serialized")
}
