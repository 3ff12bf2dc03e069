// Package paymentstest provides an in-memory payment processor for tests.
package paymentstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/cafequeue-backend/internal/payments"
)

// Processor records every call and answers from a configurable outcome table.
type Processor struct {
	mu sync.Mutex

	seq        int
	outcomes   map[string]payments.Outcome
	Requests   []payments.AuthorizationRequest
	Captured   []string
	Voided     []string
	Accounts   map[string]payments.AccountStatus
	CreateErr  error
	ConfirmErr error
}

var (
	_ payments.Processor     = (*Processor)(nil)
	_ payments.AccountLookup = (*Processor)(nil)
)

func New() *Processor {
	return &Processor{
		outcomes: map[string]payments.Outcome{},
		Accounts: map[string]payments.AccountStatus{},
	}
}

func (p *Processor) CreateAuthorization(_ context.Context, req payments.AuthorizationRequest) (*payments.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	p.seq++
	id := fmt.Sprintf("pi_fake_%d", p.seq)
	p.Requests = append(p.Requests, req)
	p.outcomes[id] = payments.Outcome{HandleID: id, Status: payments.StatusPending}
	return &payments.Handle{ID: id, ClientSecret: id + "_secret"}, nil
}

func (p *Processor) ConfirmAuthorization(_ context.Context, handleID string) (*payments.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConfirmErr != nil {
		return nil, p.ConfirmErr
	}
	out, ok := p.outcomes[handleID]
	if !ok {
		return nil, fmt.Errorf("unknown handle %s", handleID)
	}
	return &out, nil
}

// Authorize marks the handle as authorized with a charge reference.
func (p *Processor) Authorize(handleID string) payments.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := payments.Outcome{HandleID: handleID, Status: payments.StatusAuthorized, PaymentRef: "ch_" + handleID}
	p.outcomes[handleID] = out
	return out
}

// Decline marks the handle as declined.
func (p *Processor) Decline(handleID, reason string) payments.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := payments.Outcome{HandleID: handleID, Status: payments.StatusDeclined, FailureReason: reason}
	p.outcomes[handleID] = out
	return out
}

func (p *Processor) Capture(_ context.Context, handleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Captured = append(p.Captured, handleID)
	return nil
}

func (p *Processor) Void(_ context.Context, handleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Voided = append(p.Voided, handleID)
	return nil
}

func (p *Processor) Account(_ context.Context, accountID string) (*payments.AccountStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status, ok := p.Accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("unknown account %s", accountID)
	}
	return &status, nil
}

// LastRequest returns the most recent authorization request.
func (p *Processor) LastRequest() (payments.AuthorizationRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return payments.AuthorizationRequest{}, false
	}
	return p.Requests[len(p.Requests)-1], true
}

// VoidedHandles returns a copy of the voided handle ids.
func (p *Processor) VoidedHandles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Voided...)
}

// CapturedHandles returns a copy of the captured handle ids.
func (p *Processor) CapturedHandles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Captured...)
}
