package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrListingNotFound  = errors.New("listing not found")
	ErrNoChallenge      = errors.New("no OTP found, please resend")
	ErrOTPExpired       = errors.New("OTP expired, please resend")
	ErrOTPMismatch      = errors.New("incorrect OTP")
	ErrAlreadySubmitted = errors.New("feedback already submitted")
	ErrFeedbackNotReady = errors.New("feedback allowed only for completed bookings")
	ErrResendThrottled  = errors.New("OTP resend limit reached, try again later")
)

// ValidationError marks a missing or malformed field on a create request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError rejects a status change. Current carries the
// booking's status after the failed attempt so the caller can reconcile
// its view.
type InvalidTransitionError struct {
	Current string
	Target  string
}

func (e *InvalidTransitionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("cannot modify a %s booking", e.Current)
	}
	return fmt.Sprintf("cannot change a %s booking to %s", e.Current, e.Target)
}

// NotificationError wraps a delivery failure so the caller can retry or
// resend explicitly. The core never retries on its own.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification delivery failed: %v", e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
