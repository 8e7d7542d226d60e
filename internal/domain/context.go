package domain

import "context"

// Origin is the logical channel a request arrived through.
type Origin string

const (
	// OriginAPI is the administration API.
	OriginAPI Origin = "api"

	// OriginStorefrontAPI is the customer facing store API.
	OriginStorefrontAPI Origin = "storefront-api"

	// OriginSystem marks internal calls that have no HTTP request.
	OriginSystem Origin = "system"
)

// Customer is the authenticated shopper of a request.
type Customer struct {
	ID string `json:"id"`
}

// SalesChannelContext carries the request scoped storefront state.
type SalesChannelContext struct {
	SalesChannelID string
	Customer       *Customer
	Origin         Origin
	Token          string
}

// CustomerID returns the authenticated customer id, or nil.
func (c SalesChannelContext) CustomerID() *string {
	if c.Customer == nil || c.Customer.ID == "" {
		return nil
	}
	id := c.Customer.ID
	return &id
}

// Resource is an entity that can be addressed by type and id,
// as required by the JSON:API response format.
type Resource interface {
	EntityName() string
	GetID() string
}

// FeatureFlags reports whether a named feature is active.
// Implementations must be safe for concurrent use.
type FeatureFlags interface {
	IsActive(ctx context.Context, name string) bool
}
