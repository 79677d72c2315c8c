package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicate          = errors.New("already exists")
	ErrCartEmpty          = errors.New("cart is empty")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrStatusTransition   = errors.New("status transition not allowed")
)

// StockError reports which cart line failed a stock or availability check.
type StockError struct {
	ProductID   string
	ProductName string
	Err         error
}

func (e *StockError) Error() string {
	if errors.Is(e.Err, ErrProductUnavailable) {
		return fmt.Sprintf("Product %q is no longer available", e.ProductName)
	}
	return fmt.Sprintf("Insufficient stock for %q", e.ProductName)
}

func (e *StockError) Unwrap() error {
	return e.Err
}

// ValidationError carries a field-level message for 400 responses.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
