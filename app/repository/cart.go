package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

type CartRepository struct {
	db DBTX
}

func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*entity.Cart, error) {
	query := `
		SELECT user_id, items_json, updated_at
		FROM carts
		WHERE user_id = ?
	`

	cart := &entity.Cart{}
	var itemsJSON string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&cart.UserID, &itemsJSON, &cart.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := parseCartItems(itemsJSON)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

// ClearItems empties the user's cart and bumps its update timestamp. A user
// without a cart is left untouched.
func (r *CartRepository) ClearItems(ctx context.Context, userID string) error {
	empty, err := serializeCartItems(nil)
	if err != nil {
		return err
	}

	query := `
		UPDATE carts SET
			items_json = ?,
			updated_at = ?
		WHERE user_id = ?
	`

	_, err = r.db.ExecContext(ctx, query, empty, time.Now().UTC(), userID)
	return err
}
