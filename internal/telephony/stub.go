package telephony

import (
	"context"
	"fmt"
	"sync"
)

// StubProvider is an in-memory Provider for tests and early development. It
// records every request and can be made to fail per operation.
type StubProvider struct {
	mu sync.Mutex

	CreatedCalls       []CreateCallRequest
	SubAccountsCreated int
	PurchasedNumbers   []string
	TranscriptionReqs  []string
	SearchedAreaCodes  []string

	// Errors per operation; nil means success.
	CreateCallErr    error
	SubAccountErr    error
	SearchErr        error
	PurchaseErr      error
	TranscriptionErr error

	// NextCallSID is returned from CreateCall; a SID is generated when empty.
	NextCallSID string
	// Candidates is returned from SearchAvailableNumbers.
	Candidates []NumberCandidate
}

// NewStubProvider creates an empty stub provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

// CreateCall records the request and returns the configured SID.
func (p *StubProvider) CreateCall(ctx context.Context, req CreateCallRequest) (*CreatedCall, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateCallErr != nil {
		return nil, p.CreateCallErr
	}
	p.CreatedCalls = append(p.CreatedCalls, req)
	sid := p.NextCallSID
	if sid == "" {
		sid = fmt.Sprintf("CA%032d", len(p.CreatedCalls))
	}
	return &CreatedCall{CallSID: sid}, nil
}

// CreateSubAccount counts creations and returns a distinct SID per call.
func (p *StubProvider) CreateSubAccount(ctx context.Context, friendlyName string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SubAccountErr != nil {
		return "", p.SubAccountErr
	}
	p.SubAccountsCreated++
	return fmt.Sprintf("AC%032d", p.SubAccountsCreated), nil
}

// SearchAvailableNumbers returns the configured candidates.
func (p *StubProvider) SearchAvailableNumbers(ctx context.Context, subAccountSID, areaCode string, limit int) ([]NumberCandidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SearchErr != nil {
		return nil, p.SearchErr
	}
	p.SearchedAreaCodes = append(p.SearchedAreaCodes, areaCode)
	if limit < len(p.Candidates) {
		return p.Candidates[:limit], nil
	}
	return p.Candidates, nil
}

// PurchaseNumber records the purchase.
func (p *StubProvider) PurchaseNumber(ctx context.Context, subAccountSID, phoneNumber, voiceWebhookURL string) (*PurchasedNumber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PurchaseErr != nil {
		return nil, p.PurchaseErr
	}
	p.PurchasedNumbers = append(p.PurchasedNumbers, phoneNumber)
	return &PurchasedNumber{
		PhoneNumber:    phoneNumber,
		PhoneNumberSID: fmt.Sprintf("PN%032d", len(p.PurchasedNumbers)),
	}, nil
}

// RequestTranscription records the request.
func (p *StubProvider) RequestTranscription(ctx context.Context, recordingSID, callbackURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TranscriptionErr != nil {
		return p.TranscriptionErr
	}
	p.TranscriptionReqs = append(p.TranscriptionReqs, recordingSID)
	return nil
}
