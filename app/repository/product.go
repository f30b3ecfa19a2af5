package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `
		SELECT id, name, price, category
		FROM products
		WHERE id = ?
	`

	product := &entity.Product{}
	var price decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, id).Scan(&product.ID, &product.Name, &price, &product.Category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	product.Price = price

	return product, nil
}
