package enums

import "fmt"

// ReservationState tracks a stock hold from checkout to commit or release.
type ReservationState string

const (
	ReservationStateHeld      ReservationState = "held"
	ReservationStateCommitted ReservationState = "committed"
	ReservationStateReleased  ReservationState = "released"
)

var validReservationStates = []ReservationState{
	ReservationStateHeld,
	ReservationStateCommitted,
	ReservationStateReleased,
}

// String implements fmt.Stringer.
func (s ReservationState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReservationState.
func (s ReservationState) IsValid() bool {
	for _, candidate := range validReservationStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReservationState converts raw input into a ReservationState.
func ParseReservationState(value string) (ReservationState, error) {
	for _, candidate := range validReservationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation state %q", value)
}

// ReleaseReason records why a hold was returned to stock.
type ReleaseReason string

const (
	ReleaseReasonExpired       ReleaseReason = "expired"
	ReleaseReasonPaymentFailed ReleaseReason = "payment_failed"
	ReleaseReasonCheckoutAbort ReleaseReason = "checkout_aborted"
	ReleaseReasonCartChanged   ReleaseReason = "cart_changed"
)
