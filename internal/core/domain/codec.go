package domain

import (
	"encoding/json"
	"fmt"
)

// lineItemJSON is the persisted layout. Older app builds wrote the image as
// "imageUrl", so both spellings are accepted on read.
type lineItemJSON struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	ImageURL       string  `json:"image_url"`
	LegacyImageURL string  `json:"imageUrl,omitempty"`
	Price          float64 `json:"price"`
	Quantity       int     `json:"quantity"`
}

// EncodeCart serializes c as a JSON array. An empty cart encodes as "[]".
func EncodeCart(c Cart) ([]byte, error) {
	items := make([]lineItemJSON, 0, len(c))
	for _, li := range c {
		items = append(items, lineItemJSON{
			ID:       li.ID,
			Title:    li.Title,
			ImageURL: li.ImageURL,
			Price:    li.Price,
			Quantity: li.Quantity,
		})
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

func DecodeCart(data []byte) (Cart, error) {
	var items []lineItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	c := make(Cart, 0, len(items))
	for _, it := range items {
		image := it.ImageURL
		if image == "" {
			image = it.LegacyImageURL
		}
		c = append(c, LineItem{
			Product: Product{
				ID:       it.ID,
				Title:    it.Title,
				ImageURL: image,
				Price:    it.Price,
			},
			Quantity: it.Quantity,
		})
	}
	return c, nil
}
