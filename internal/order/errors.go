package order

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty or not found")
	ErrInvalidLineItem   = errors.New("invalid cart line item")
	ErrInvalidStatus     = errors.New("unrecognized order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrStatusConflict    = errors.New("order status changed concurrently")
	ErrForbidden         = errors.New("access to order denied")
)

// InvalidLineItemError identifies the cart line that referenced a missing or
// priceless product. It unwraps to ErrInvalidLineItem.
type InvalidLineItemError struct {
	CartItemID uuid.UUID
	ProductID  uuid.UUID
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("invalid cart line item %s: product %s is missing or has no price", e.CartItemID, e.ProductID)
}

func (e *InvalidLineItemError) Unwrap() error {
	return ErrInvalidLineItem
}
