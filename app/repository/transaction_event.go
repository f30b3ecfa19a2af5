package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

type TransactionEventRepository struct {
	db DBTX
}

func NewTransactionEventRepository(db DBTX) *TransactionEventRepository {
	return &TransactionEventRepository{db: db}
}

func (r *TransactionEventRepository) Create(ctx context.Context, event *entity.TransactionEvent) error {
	query := `
		INSERT INTO transaction_events (
			transaction_id, session_id, event_type, old_status, old_payment_status,
			new_status, new_payment_status, detail, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var oldStatus, oldPaymentStatus interface{}
	if event.OldStatus != nil {
		oldStatus = string(*event.OldStatus)
	}
	if event.OldPaymentStatus != nil {
		oldPaymentStatus = string(*event.OldPaymentStatus)
	}

	result, err := r.db.ExecContext(ctx, query,
		event.TransactionID,
		event.SessionID,
		event.EventType,
		oldStatus,
		oldPaymentStatus,
		string(event.NewStatus),
		string(event.NewPaymentStatus),
		nullableStringValue(event.Detail),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func (r *TransactionEventRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*entity.TransactionEvent, error) {
	query := `
		SELECT id, transaction_id, session_id, event_type, old_status, old_payment_status,
			new_status, new_payment_status, detail, created_at
		FROM transaction_events
		WHERE transaction_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*entity.TransactionEvent, 0)
	for rows.Next() {
		event, err := scanTransactionEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func scanTransactionEvent(scan rowScanner) (*entity.TransactionEvent, error) {
	event := &entity.TransactionEvent{}
	var oldStatus, oldPaymentStatus, detail sql.NullString
	var newStatus, newPaymentStatus string

	if err := scan.Scan(
		&event.ID,
		&event.TransactionID,
		&event.SessionID,
		&event.EventType,
		&oldStatus,
		&oldPaymentStatus,
		&newStatus,
		&newPaymentStatus,
		&detail,
		&event.CreatedAt,
	); err != nil {
		return nil, err
	}

	if oldStatus.Valid {
		s := entity.SessionStatus(oldStatus.String)
		event.OldStatus = &s
	}
	if oldPaymentStatus.Valid {
		s := entity.PaymentStatus(oldPaymentStatus.String)
		event.OldPaymentStatus = &s
	}
	event.NewStatus = entity.SessionStatus(newStatus)
	event.NewPaymentStatus = entity.PaymentStatus(newPaymentStatus)
	event.Detail = stringPtrFromNull(detail)

	return event, nil
}
