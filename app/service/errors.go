package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrProductNotFound     = errors.New("product not found")
	ErrTransactionNotFound = errors.New("payment transaction not found")
	ErrForbidden           = errors.New("access denied")
	ErrUpstream            = errors.New("upstream service unavailable")
)

func upstreamError(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
