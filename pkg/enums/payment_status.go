package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks the lifecycle of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusProcessed  PaymentStatus = "processed"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusReversed   PaymentStatus = "reversed"
	PaymentStatusAbandoned  PaymentStatus = "abandoned"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusProcessing,
	PaymentStatusProcessed,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusReversed,
	PaymentStatusAbandoned,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payment can no longer change through settlement.
func (p PaymentStatus) IsTerminal() bool {
	switch p {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusReversed, PaymentStatusAbandoned:
		return true
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentStatusFromGateway maps a payout gateway transfer status onto a local status.
// The boolean is false when the gateway status carries no state change.
func PaymentStatusFromGateway(status string) (PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "successful":
		return PaymentStatusCompleted, true
	case "failed", "abandoned":
		return PaymentStatusFailed, true
	case "reversed":
		return PaymentStatusReversed, true
	}
	return "", false
}
