package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// Customer is the verified identity of the caller, produced by the
// authentication collaborator.
type Customer struct {
	ID    string
	Email string
}
