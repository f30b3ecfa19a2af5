package gateway

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

var (
	ErrNotConfigured      = errors.New("payment gateway is not configured")
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrMalformedResponse  = errors.New("malformed payment gateway response")
	ErrInvalidSessionData = errors.New("invalid checkout session data")
)

type LineItem struct {
	Name            string
	UnitAmountMinor int64
	Quantity        int32
}

type CreateSessionInput struct {
	AmountMinor     int64
	Currency        string
	SuccessURL      string
	CancelURL       string
	ClientReference string
	LineItems       []LineItem
	Metadata        map[string]string
}

type Session struct {
	SessionID   string
	RedirectURL string
}

// SessionStatus is the processor's current view of a session, with the
// payment status already normalized to the ledger vocabulary.
type SessionStatus struct {
	SessionID     string
	Status        entity.SessionStatus
	PaymentStatus entity.PaymentStatus
	AmountMinor   int64
	Currency      string
}

func (s *SessionStatus) Pair() entity.StatusPair {
	return entity.StatusPair{Status: s.Status, PaymentStatus: s.PaymentStatus}
}

type Gateway interface {
	CreateSession(ctx context.Context, input *CreateSessionInput) (*Session, error)
	GetSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error)
}
