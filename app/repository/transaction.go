package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

var ErrTransactionAlreadyExists = errors.New("transaction already exists")

const transactionColumns = `
	id, user_id, session_id, amount, currency, status, payment_status,
	metadata_json, created_at, updated_at
`

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entity.PaymentTransaction) error {
	metadataJSON, err := serializeMetadata(tx.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payment_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		tx.ID,
		nullableStringValue(tx.UserID),
		tx.SessionID,
		tx.Amount.StringFixed(2),
		tx.Currency,
		string(tx.Status),
		string(tx.PaymentStatus),
		metadataJSON,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTransactionAlreadyExists
		}
		return err
	}

	return nil
}

func (r *TransactionRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE session_id = ? LIMIT 1`

	tx := &entity.PaymentTransaction{}
	if err := scanTransaction(r.db.QueryRowContext(ctx, query, sessionID), tx); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return tx, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int32) ([]*entity.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentTransaction, 0)
	for rows.Next() {
		item := &entity.PaymentTransaction{}
		if err := scanTransaction(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// CompareAndSwapStatus writes next only while the stored pair still equals
// expected. It reports whether this call performed the write.
func (r *TransactionRepository) CompareAndSwapStatus(
	ctx context.Context,
	sessionID string,
	expected entity.StatusPair,
	next entity.StatusPair,
	updatedAt time.Time,
) (bool, error) {
	query := `
		UPDATE payment_transactions SET
			status = ?,
			payment_status = ?,
			updated_at = ?
		WHERE session_id = ? AND status = ? AND payment_status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(next.Status),
		string(next.PaymentStatus),
		updatedAt,
		sessionID,
		string(expected.Status),
		string(expected.PaymentStatus),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func scanTransaction(scan rowScanner, tx *entity.PaymentTransaction) error {
	var userID sql.NullString
	var amount decimal.Decimal
	var status string
	var paymentStatus string
	var metadataJSON string

	err := scan.Scan(
		&tx.ID,
		&userID,
		&tx.SessionID,
		&amount,
		&tx.Currency,
		&status,
		&paymentStatus,
		&metadataJSON,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return err
	}

	tx.UserID = stringPtrFromNull(userID)
	tx.Amount = amount
	tx.Status = entity.SessionStatus(status)
	tx.PaymentStatus = entity.PaymentStatus(paymentStatus)

	metadata, err := parseMetadata(metadataJSON)
	if err != nil {
		return err
	}
	tx.Metadata = metadata

	return nil
}
