package entity

import "time"

const (
	EventTransactionCreated    = "transaction_created"
	EventTransactionReconciled = "transaction_reconciled"
	EventReconcileRejected     = "reconcile_rejected"
	EventCartCleared           = "cart_cleared"
	EventCartClearFailed       = "cart_clear_failed"
)

type TransactionEvent struct {
	ID uint64

	TransactionID string
	SessionID     string

	EventType string

	OldStatus        *SessionStatus
	OldPaymentStatus *PaymentStatus
	NewStatus        SessionStatus
	NewPaymentStatus PaymentStatus

	Detail *string

	CreatedAt time.Time
}
