package models

const (
	StatusPending   = "pending"
	StatusConfirm   = "confirm"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
	StatusCancel    = "cancel"
)

const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approve"
	ApprovalRejected = "reject"
)

const (
	// DefaultOTPTTL время жизни кода подтверждения
	DefaultOTPTTL = 5 * 60 // 5 минут в секундах

	// DefaultOTPResendLimit количество отправок кода в окне
	DefaultOTPResendLimit = 3

	// DefaultOTPResendWindow окно ограничения повторной отправки
	DefaultOTPResendWindow = 60 // 1 минута в секундах

	// RateLimitRPS лимит запросов HTTP API по умолчанию
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 20
)

// IsTerminal reports whether a booking status permits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusRejected, StatusCancel:
		return true
	}
	return false
}
