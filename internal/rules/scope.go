package rules

import "github.com/opensource-finance/shopcore/internal/domain"

// Scope is the evaluation context handed to a rule. The set of variants
// is closed: LineItemScope, CartScope and CheckoutScope.
type Scope interface {
	SalesChannel() domain.SalesChannelContext
	scope()
}

// LineItemScope evaluates a rule against a single line item.
type LineItemScope struct {
	LineItem domain.LineItem
	Context  domain.SalesChannelContext
}

// CartScope evaluates a rule against a whole cart.
type CartScope struct {
	Cart    domain.Cart
	Context domain.SalesChannelContext
}

// CheckoutScope evaluates a rule against the sales channel context only.
type CheckoutScope struct {
	Context domain.SalesChannelContext
}

func (s LineItemScope) SalesChannel() domain.SalesChannelContext { return s.Context }
func (s CartScope) SalesChannel() domain.SalesChannelContext     { return s.Context }
func (s CheckoutScope) SalesChannel() domain.SalesChannelContext { return s.Context }

func (LineItemScope) scope() {}
func (CartScope) scope()     {}
func (CheckoutScope) scope() {}

// Match is the outcome of a rule evaluation.
type Match struct {
	Matches  bool     `json:"matches"`
	Messages []string `json:"messages"`
}
