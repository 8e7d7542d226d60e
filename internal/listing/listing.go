// Package listing loads the product listing of a category.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/opensource-finance/shopcore/internal/criteria"
	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/event"
	"github.com/opensource-finance/shopcore/internal/schema"
)

// Request carries the refinements sent by the client in the request body.
type Request struct {
	Params map[string]any
}

// ParseRequest decodes a JSON object body. An empty body is valid.
func ParseRequest(body []byte) (Request, error) {
	req := Request{Params: map[string]any{}}
	if len(strings.TrimSpace(string(body))) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req.Params); err != nil {
		return req, fmt.Errorf("invalid listing request: %w", err)
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	return req, nil
}

// String returns a string parameter, or "" when absent.
func (r Request) String(name string) string {
	switch v := r.Params[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Int returns an integer parameter, or def when absent. Fractional,
// out of range and non-numeric values are rejected.
func (r Request) Int(name string, def int) (int, error) {
	raw, ok := r.Params[name]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v < -maxExactInt || v > maxExactInt {
			return def, fmt.Errorf("%w: %s must be an integer", ErrInvalidRequest, name)
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	}
	return def, fmt.Errorf("%w: %s must be an integer", ErrInvalidRequest, name)
}

// maxExactInt is the largest integer a JSON number decodes to exactly.
const maxExactInt = 1 << 53

// Result is the listing of a category.
type Result struct {
	Products          []*domain.Product           `json:"elements"`
	Total             int                         `json:"total"`
	Aggregations      criteria.AggregationResults `json:"aggregations"`
	CurrentFilters    map[string]any              `json:"currentFilters"`
	Page              int                         `json:"page"`
	Limit             int                         `json:"limit"`
	Sorting           string                      `json:"sorting,omitempty"`
	AvailableSortings []string                    `json:"availableSortings,omitempty"`
	Search            *criteria.SearchResult      `json:"-"`
}

// AddCurrentFilter records a filter that is active for this listing.
func (r *Result) AddCurrentFilter(name string, value any) {
	if r.CurrentFilters == nil {
		r.CurrentFilters = make(map[string]any)
	}
	r.CurrentFilters[name] = value
}

// CriteriaEvent is dispatched before the search runs.
type CriteriaEvent struct {
	Request  Request
	Criteria *criteria.Criteria
	Context  domain.SalesChannelContext
}

// ResultEvent is dispatched after the result has been built.
type ResultEvent struct {
	Request Request
	Result  *Result
	Context domain.SalesChannelContext
}

// Searcher resolves criteria to entity ids.
type Searcher interface {
	Search(ctx context.Context, entity string, c *criteria.Criteria) (*criteria.SearchResult, error)
}

// ProductReader hydrates products by id.
type ProductReader interface {
	GetProducts(ctx context.Context, ids []string) ([]*domain.Product, error)
}

// Route builds and runs the listing search of a category.
type Route struct {
	searcher Searcher
	products ProductReader

	// Listeners run in registration order. Register them before serving.
	OnCriteria *event.Chain[*CriteriaEvent]
	OnResult   *event.Chain[*ResultEvent]
}

// NewRoute creates a listing route with empty extension chains.
func NewRoute(searcher Searcher, products ProductReader) *Route {
	return &Route{
		searcher:   searcher,
		products:   products,
		OnCriteria: event.NewChain[*CriteriaEvent](),
		OnResult:   event.NewChain[*ResultEvent](),
	}
}

// Criteria returns the base criteria of a category listing.
func Criteria(categoryID, salesChannelID string) *criteria.Criteria {
	c := criteria.New()
	c.AddFilter(criteria.ProductAvailable(salesChannelID, domain.VisibilityAll))
	c.AddFilter(criteria.Equals{Field: "product.categoriesRo.id", Value: categoryID})
	return c
}

// Load returns the products of a category visible in the sales channel.
// Listener errors are returned unchanged.
func (r *Route) Load(ctx context.Context, categoryID string, req Request, sc domain.SalesChannelContext) (*Result, error) {
	c := Criteria(categoryID, sc.SalesChannelID)

	if err := r.OnCriteria.Dispatch(ctx, &CriteriaEvent{Request: req, Criteria: c, Context: sc}); err != nil {
		return nil, err
	}

	found, err := r.searcher.Search(ctx, schema.EntityProduct, c)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	products, err := r.products.GetProducts(ctx, found.IDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	if products == nil {
		products = []*domain.Product{}
	}

	result := &Result{
		Products:     products,
		Total:        found.Total,
		Aggregations: found.Aggregations,
		Limit:        c.Limit,
		Page:         1,
		Search:       found,
	}
	if result.Aggregations == nil {
		result.Aggregations = criteria.AggregationResults{}
	}
	result.AddCurrentFilter("navigationId", categoryID)

	if err := r.OnResult.Dispatch(ctx, &ResultEvent{Request: req, Result: result, Context: sc}); err != nil {
		return nil, err
	}

	return result, nil
}
