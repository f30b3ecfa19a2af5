package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the processor-side lifecycle of a checkout session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusComplete || s == SessionStatusExpired
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusOpen, SessionStatusComplete, SessionStatusExpired:
		return true
	default:
		return false
	}
}

// PaymentStatus is the payment outcome of a checkout session. It gates the
// cart-clear side effect.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusExpired PaymentStatus = "expired"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed || s == PaymentStatusExpired
}

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusUnpaid || s.IsTerminal()
}

// StatusPair is the (status, payment_status) tuple compared during
// reconciliation.
type StatusPair struct {
	Status        SessionStatus
	PaymentStatus PaymentStatus
}

type PaymentTransaction struct {
	ID     string
	UserID *string

	SessionID string

	Amount   decimal.Decimal
	Currency string

	Status        SessionStatus
	PaymentStatus PaymentStatus

	Metadata CheckoutMetadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *PaymentTransaction) Pair() StatusPair {
	return StatusPair{Status: t.Status, PaymentStatus: t.PaymentStatus}
}

// OwnedBy reports whether the transaction belongs to userID. Legacy rows
// without an owner belong to nobody.
func (t *PaymentTransaction) OwnedBy(userID string) bool {
	return t.UserID != nil && *t.UserID == userID
}

// CheckoutMetadata is captured once at session creation and never mutated.
type CheckoutMetadata struct {
	UserID    string             `json:"user_id"`
	UserEmail string             `json:"user_email"`
	ItemCount int                `json:"item_count"`
	Source    string             `json:"source"`
	LineItems []LineItemSnapshot `json:"line_items"`
}

type LineItemSnapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int32           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
