package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Status is the normalized authorization state reported by a processor.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusDeclined   Status = "declined"
)

// ErrDeclined is returned when the processor rejects an authorization outright.
var ErrDeclined = errors.New("payment declined")

// AuthorizationRequest describes a destination charge held for manual capture.
type AuthorizationRequest struct {
	OrderID             uuid.UUID
	ShopID              uuid.UUID
	AmountCents         int64
	Currency            string
	DestinationAccount  string
	ApplicationFeeCents int64
	IdempotencyKey      string
}

// Handle is returned to the client so it can confirm the payment.
type Handle struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// Outcome is the processor's view of an authorization.
type Outcome struct {
	HandleID      string
	Status        Status
	PaymentRef    string
	FailureReason string
}

// AccountStatus mirrors a connected merchant account's capability flags.
type AccountStatus struct {
	AccountID        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// Processor is the payment surface used by the checkout coordinator.
type Processor interface {
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Handle, error)
	ConfirmAuthorization(ctx context.Context, handleID string) (*Outcome, error)
	Capture(ctx context.Context, handleID string) error
	Void(ctx context.Context, handleID string) error
}

// AccountLookup reads merchant account capabilities.
type AccountLookup interface {
	Account(ctx context.Context, accountID string) (*AccountStatus, error)
}
