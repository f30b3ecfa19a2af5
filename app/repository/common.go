package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func nullableStringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func serializeMetadata(metadata entity.CheckoutMetadata) (string, error) {
	if metadata.LineItems == nil {
		metadata.LineItems = []entity.LineItemSnapshot{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseMetadata(raw string) (entity.CheckoutMetadata, error) {
	var metadata entity.CheckoutMetadata
	if raw == "" {
		metadata.LineItems = []entity.LineItemSnapshot{}
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return entity.CheckoutMetadata{}, err
	}
	if metadata.LineItems == nil {
		metadata.LineItems = []entity.LineItemSnapshot{}
	}
	return metadata, nil
}

func serializeCartItems(items []entity.CartItem) (string, error) {
	if items == nil {
		items = []entity.CartItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseCartItems(raw string) ([]entity.CartItem, error) {
	items := make([]entity.CartItem, 0)
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = make([]entity.CartItem, 0)
	}
	return items, nil
}
