package domain

import "math"

// Cart is an ordered, id-unique list of line items.
//
// Methods never modify the receiver. Every transition returns a fresh slice so
// a published Cart can be shared with readers without copying.
type Cart []LineItem

func (c Cart) Index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Add appends p with quantity 1, or bumps the quantity of the existing entry
// with the same id. The other fields of p are ignored in the latter case.
func (c Cart) Add(p Product) (Cart, bool) {
	if c.Index(p.ID) >= 0 {
		return c.Increment(p.ID)
	}

	out := make(Cart, len(c), len(c)+1)
	copy(out, c)
	return append(out, LineItem{Product: p, Quantity: 1}), true
}

// Increment returns false and the receiver unchanged when id is unknown or
// its quantity is already math.MaxInt.
func (c Cart) Increment(id string) (Cart, bool) {
	i := c.Index(id)
	if i < 0 || c[i].Quantity == math.MaxInt {
		return c, false
	}

	out := c.Clone()
	out[i].Quantity++
	return out, true
}

// Decrement removes the item once its quantity would drop below 1.
func (c Cart) Decrement(id string) (Cart, bool) {
	i := c.Index(id)
	if i < 0 {
		return c, false
	}

	if c[i].Quantity <= 1 {
		out := make(Cart, 0, len(c)-1)
		out = append(out, c[:i]...)
		return append(out, c[i+1:]...), true
	}

	out := c.Clone()
	out[i].Quantity--
	return out, true
}

func (c Cart) Total() float64 {
	var total float64
	for _, li := range c {
		total += li.Subtotal()
	}
	return total
}

// Count is the number of units in the cart, not the number of line items.
func (c Cart) Count() int {
	n := 0
	for _, li := range c {
		n += li.Quantity
	}
	return n
}

// Sanitize drops entries that break the cart invariants: quantity below 1,
// a product failing Validate, and repeated ids (the first occurrence wins).
// It reports how many were dropped.
func Sanitize(c Cart) (Cart, int) {
	out := make(Cart, 0, len(c))
	seen := make(map[string]struct{}, len(c))
	for _, li := range c {
		if li.Quantity < 1 || li.Product.Validate() != nil {
			continue
		}
		if _, dup := seen[li.ID]; dup {
			continue
		}
		seen[li.ID] = struct{}{}
		out = append(out, li)
	}
	return out, len(c) - len(out)
}
