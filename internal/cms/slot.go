// Package cms resolves the data of content slots on product pages.
package cms

import (
	"context"

	"github.com/opensource-finance/shopcore/internal/domain"
)

// Field config sources.
const (
	SourceStatic = "static"
	SourceMapped = "mapped"
)

// FieldConfig is one configured value of a slot.
// Static values are used as is; mapped values are property paths
// resolved against the entity of the page.
type FieldConfig struct {
	Source string `json:"source"`
	Value  string `json:"value"`
}

// IsStatic reports whether the value is a literal.
func (f FieldConfig) IsStatic() bool { return f.Source == SourceStatic }

// IsMapped reports whether the value is a property path.
func (f FieldConfig) IsMapped() bool { return f.Source == SourceMapped }

// Slot is a content element on a page.
type Slot struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Config map[string]FieldConfig `json:"config"`
	Data   any                    `json:"data"`
}

// ResolverContext is the page state a slot is resolved in.
// Entity is the product of a product page, nil elsewhere.
type ResolverContext struct {
	SalesChannel domain.SalesChannelContext
	Entity       *domain.Product
}

// Resolver fills the data of one slot type.
type Resolver interface {
	Type() string
	Enrich(ctx context.Context, slot *Slot, rc ResolverContext) error
}
