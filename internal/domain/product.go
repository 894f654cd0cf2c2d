package domain

import "errors"

// ErrInvalidID is returned when an identifier cannot be converted to the
// store's native reference type.
var ErrInvalidID = errors.New("invalid identifier")

type Size struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Sizes []Size  `json:"sizes,omitempty"`
}

// ProductFilter narrows product listings. Empty fields impose no constraint.
type ProductFilter struct {
	// Name is matched as a case-insensitive substring of the product name.
	Name string
	// Size must equal the label of at least one entry in Sizes.
	Size string
}
