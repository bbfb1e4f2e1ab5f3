package domain

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidProduct = errors.New("invalid product")

// Product is what a caller hands to AddToCart. Quantity is owned by the cart.
type Product struct {
	ID       string
	Title    string
	ImageURL string
	Price    float64
}

// Validate requires an id and a finite, non-negative price. A NaN or infinite
// price cannot be encoded, so it would block every later write of the cart.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidProduct)
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
		return fmt.Errorf("%w: price %v for %q", ErrInvalidProduct, p.Price, p.ID)
	}
	return nil
}

type LineItem struct {
	Product
	Quantity int // always >= 1 inside a Cart
}

func (li LineItem) Subtotal() float64 {
	return li.Price * float64(li.Quantity)
}
