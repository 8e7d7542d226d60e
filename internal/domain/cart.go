package domain

// Line item types.
const (
	LineItemTypeProduct   = "product"
	LineItemTypePromotion = "promotion"
	LineItemTypeCredit    = "credit"
	LineItemTypeCustom    = "custom"
)

// LineItem is a single position in a cart.
type LineItem struct {
	ID           string         `json:"id"`
	ReferencedID string         `json:"referencedId,omitempty"`
	Type         string         `json:"type"`
	Label        string         `json:"label,omitempty"`
	Quantity     int            `json:"quantity"`
	UnitPrice    float64        `json:"unitPrice"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// TotalPrice returns unit price times quantity.
func (li LineItem) TotalPrice() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// Cart holds the line items of a checkout in progress.
type Cart struct {
	Token     string     `json:"token"`
	LineItems []LineItem `json:"lineItems"`
}

// TotalPrice sums the line item totals.
func (c Cart) TotalPrice() float64 {
	var total float64
	for _, li := range c.LineItems {
		total += li.TotalPrice()
	}
	return total
}
