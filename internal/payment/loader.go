package payment

import (
	"context"
	"fmt"

	"github.com/opensource-finance/shopcore/internal/criteria"
	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/event"
	"github.com/opensource-finance/shopcore/internal/schema"
)

// Searcher resolves criteria to entity ids.
type Searcher interface {
	Search(ctx context.Context, entity string, c *criteria.Criteria) (*criteria.SearchResult, error)
}

// Reader hydrates payment methods by id.
type Reader interface {
	GetPaymentMethods(ctx context.Context, ids []string) ([]*domain.PaymentMethod, error)
}

// Loader searches and hydrates payment methods, then runs the loaded chain.
type Loader struct {
	searcher Searcher
	reader   Reader
	loaded   *event.Chain[LoadedEvent]
}

// NewLoader creates a loader. loaded may be nil.
func NewLoader(searcher Searcher, reader Reader, loaded *event.Chain[LoadedEvent]) *Loader {
	return &Loader{searcher: searcher, reader: reader, loaded: loaded}
}

// Result is a page of payment methods.
type Result struct {
	Total    int                     `json:"total"`
	Elements []*domain.PaymentMethod `json:"elements"`
}

// Load returns the payment methods matching c in search order.
func (l *Loader) Load(ctx context.Context, c *criteria.Criteria) (*Result, error) {
	found, err := l.searcher.Search(ctx, schema.EntityPaymentMethod, c)
	if err != nil {
		return nil, fmt.Errorf("failed to search payment methods: %w", err)
	}

	methods, err := l.reader.GetPaymentMethods(ctx, found.IDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment methods: %w", err)
	}
	if methods == nil {
		methods = []*domain.PaymentMethod{}
	}

	ev := &event.EntityLoaded[*domain.PaymentMethod]{
		Entity:   schema.EntityPaymentMethod,
		Entities: methods,
	}
	if err := l.loaded.Dispatch(ctx, ev); err != nil {
		return nil, err
	}

	return &Result{Total: found.Total, Elements: ev.Entities}, nil
}

// ActiveCriteria selects active payment methods ordered by position.
func ActiveCriteria() *criteria.Criteria {
	c := criteria.New()
	c.AddFilter(criteria.Equals{Field: "active", Value: true})
	c.AddSorting(criteria.Sorting{Field: "position", Direction: criteria.Ascending})
	return c
}
