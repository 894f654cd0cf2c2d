package domain

import "github.com/shopspring/decimal"

type OrderItem struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

type Order struct {
	ID     string      `json:"id"`
	UserID string      `json:"userId"`
	Items  []OrderItem `json:"items"`
}

type ProductDetails struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OrderLine struct {
	ProductDetails ProductDetails `json:"productDetails"`
	Qty            int            `json:"qty"`
}

type EnrichedOrder struct {
	ID    string      `json:"id"`
	Items []OrderLine `json:"items"`
	Total float64     `json:"total"`
}

// ProductIDs returns the distinct product ids referenced by orders in
// first-seen order.
func ProductIDs(orders []Order) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, order := range orders {
		for _, item := range order.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// Enrich joins orders with the products they reference, keyed by product id.
// Lines whose product is absent are dropped without error; the number of
// dropped lines is returned alongside the result.
func Enrich(orders []Order, products map[string]Product) ([]EnrichedOrder, int) {
	enriched := make([]EnrichedOrder, 0, len(orders))
	unresolved := 0

	for _, order := range orders {
		total := decimal.Zero
		lines := make([]OrderLine, 0, len(order.Items))

		for _, item := range order.Items {
			product, ok := products[item.ProductID]
			if !ok {
				unresolved++
				continue
			}
			total = total.Add(decimal.NewFromFloat(product.Price).Mul(decimal.NewFromInt(int64(item.Qty))))
			lines = append(lines, OrderLine{
				ProductDetails: ProductDetails{ID: product.ID, Name: product.Name},
				Qty:            item.Qty,
			})
		}

		enriched = append(enriched, EnrichedOrder{
			ID:    order.ID,
			Items: lines,
			Total: total.InexactFloat64(),
		})
	}

	return enriched, unresolved
}
