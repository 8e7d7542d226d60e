package cms

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/shopcore/internal/criteria"
	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/schema"
)

// ReviewCountAggregation names the count read back by ReviewCount.
const ReviewCountAggregation = "review-count"

// BuyBox is the data of a buy-box slot.
type BuyBox struct {
	Product      *domain.Product `json:"product,omitempty"`
	ProductID    string          `json:"productId,omitempty"`
	TotalReviews int             `json:"totalReviews"`
}

// Searcher runs criteria searches and aggregations.
type Searcher interface {
	Search(ctx context.Context, entity string, c *criteria.Criteria) (*criteria.SearchResult, error)
	Aggregate(ctx context.Context, entity string, c *criteria.Criteria) (criteria.AggregationResults, error)
}

// ProductReader hydrates products by id.
type ProductReader interface {
	GetProducts(ctx context.Context, ids []string) ([]*domain.Product, error)
}

// BuyBoxResolver resolves "buy-box" slots.
type BuyBoxResolver struct {
	searcher Searcher
	products ProductReader
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewBuyBoxResolver creates the resolver. cache may be nil.
func NewBuyBoxResolver(searcher Searcher, products ProductReader, cache domain.Cache) *BuyBoxResolver {
	return &BuyBoxResolver{
		searcher: searcher,
		products: products,
		cache:    cache,
		cacheTTL: time.Minute,
	}
}

// Type implements Resolver.
func (r *BuyBoxResolver) Type() string { return "buy-box" }

// Enrich implements Resolver. The slot always ends up with a BuyBox, empty
// when no product could be resolved.
func (r *BuyBoxResolver) Enrich(ctx context.Context, slot *Slot, rc ResolverContext) error {
	buyBox := &BuyBox{}
	slot.Data = buyBox

	productConfig, ok := slot.Config["product"]
	if !ok {
		return nil
	}

	var product *domain.Product
	var err error

	if productConfig.IsMapped() && rc.Entity != nil {
		product, err = r.resolveEntityValue(ctx, rc.Entity, productConfig.Value)
		if err != nil {
			return err
		}
	}

	if productConfig.IsStatic() {
		product, err = r.slotProduct(ctx, productConfig.Value, rc.SalesChannel)
		if err != nil {
			return err
		}
	}

	if product == nil {
		return nil
	}

	buyBox.Product = product
	buyBox.ProductID = product.ID
	buyBox.TotalReviews = r.ReviewCount(ctx, product.ID, rc.SalesChannel)
	return nil
}

// resolveEntityValue follows a property path on the page product.
// Supported paths are "product" and "product.parent".
func (r *BuyBoxResolver) resolveEntityValue(ctx context.Context, entity *domain.Product, path string) (*domain.Product, error) {
	path = strings.TrimPrefix(path, schema.EntityProduct)
	path = strings.TrimPrefix(path, ".")

	switch path {
	case "":
		return entity, nil
	case "parent":
		if entity.ParentID == nil {
			return nil, nil
		}
		return r.load(ctx, *entity.ParentID)
	}
	return nil, fmt.Errorf("%w: product.%s", schema.ErrUnknownField, path)
}

// slotProduct loads a statically configured product if it is visible in
// the sales channel.
func (r *BuyBoxResolver) slotProduct(ctx context.Context, id string, sc domain.SalesChannelContext) (*domain.Product, error) {
	if id == "" {
		return nil, nil
	}

	c := criteria.New(id)
	c.AddFilter(criteria.ProductAvailable(sc.SalesChannelID, domain.VisibilityLink))

	found, err := r.searcher.Search(ctx, schema.EntityProduct, c)
	if err != nil {
		return nil, fmt.Errorf("failed to search slot product: %w", err)
	}
	if len(found.IDs) == 0 {
		return nil, nil
	}
	return r.load(ctx, found.IDs[0])
}

func (r *BuyBoxResolver) load(ctx context.Context, id string) (*domain.Product, error) {
	products, err := r.products.GetProducts(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	if len(products) == 0 {
		return nil, nil
	}
	return products[0], nil
}

// ReviewCount returns the number of reviews of a product and its variants
// that are published or written by the current customer. Missing or
// mismatching aggregation results and search failures count as zero.
func (r *BuyBoxResolver) ReviewCount(ctx context.Context, productID string, sc domain.SalesChannelContext) int {
	customerID := sc.CustomerID()
	key := reviewCountKey(productID, customerID)

	if n, ok := r.cachedCount(ctx, sc.SalesChannelID, key); ok {
		return n
	}

	results, err := r.searcher.Aggregate(ctx, schema.EntityProductReview, ReviewCriteria(productID, customerID))
	if err != nil {
		slog.Warn("review count failed",
			"product_id", productID,
			"sales_channel_id", sc.SalesChannelID,
			"error", err,
		)
		return 0
	}

	n := 0
	if count, ok := results.Get(ReviewCountAggregation).(*criteria.CountResult); ok {
		n = int(count.Count)
	}

	if r.cache != nil && sc.SalesChannelID != "" {
		_ = r.cache.Set(ctx, sc.SalesChannelID, key, []byte(strconv.Itoa(n)), r.cacheTTL)
	}
	return n
}

func (r *BuyBoxResolver) cachedCount(ctx context.Context, namespace, key string) (int, bool) {
	if r.cache == nil || namespace == "" {
		return 0, false
	}
	val, err := r.cache.Get(ctx, namespace, key)
	if err != nil || val == nil {
		return 0, false
	}
	n, err := strconv.Atoi(string(val))
	if err != nil {
		return 0, false
	}
	return n, true
}

func reviewCountKey(productID string, customerID *string) string {
	key := "review-count:" + productID
	if customerID != nil {
		key += ":" + *customerID
	}
	return key
}

// ReviewCriteria selects the reviews of a product and its variants that are
// published or, when customerID is set, written by that customer.
func ReviewCriteria(productID string, customerID *string) *criteria.Criteria {
	visible := []criteria.Filter{
		criteria.Equals{Field: "status", Value: true},
	}
	if customerID != nil {
		visible = append(visible, criteria.Equals{Field: "customerId", Value: *customerID})
	}

	c := criteria.New()
	c.AddFilter(criteria.AndOf(
		criteria.OrOf(visible...),
		criteria.OrOf(
			criteria.Equals{Field: "product.id", Value: productID},
			criteria.Equals{Field: "product.parentId", Value: productID},
		),
	))
	c.AddAggregation(criteria.Count{Name: ReviewCountAggregation, Field: "id"})
	return c
}
