package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/opensource-finance/shopcore/internal/criteria"
	"github.com/opensource-finance/shopcore/internal/domain"
)

// ErrInvalidRequest is returned by listeners for malformed refinements.
var ErrInvalidRequest = errors.New("invalid listing request")

// Paging defaults.
const (
	DefaultLimit = 24
	MaxLimit     = 500
)

// PagingListener applies the "limit" and "p" (page) parameters.
type PagingListener struct{}

// OnCriteria sets limit and offset.
func (PagingListener) OnCriteria(ctx context.Context, ev *CriteriaEvent) error {
	limit, page, err := paging(ev.Request)
	if err != nil {
		return err
	}
	if limit < 1 || limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidRequest, MaxLimit)
	}
	if page < 1 || page > math.MaxInt32/limit {
		return fmt.Errorf("%w: page must be between 1 and %d", ErrInvalidRequest, math.MaxInt32/limit)
	}
	ev.Criteria.SetLimit(limit)
	ev.Criteria.SetOffset((page - 1) * limit)
	return nil
}

// OnResult records the page on the result.
func (PagingListener) OnResult(ctx context.Context, ev *ResultEvent) error {
	limit, page, err := paging(ev.Request)
	if err != nil {
		return err
	}
	ev.Result.Limit, ev.Result.Page = limit, page
	return nil
}

func paging(req Request) (limit, page int, err error) {
	if limit, err = req.Int("limit", DefaultLimit); err != nil {
		return 0, 0, err
	}
	if page, err = req.Int("p", 1); err != nil {
		return 0, 0, err
	}
	return limit, page, nil
}

// Sorting keys understood by SortingListener.
var sortings = map[string]criteria.Sorting{
	"name-asc":   {Field: "name", Direction: criteria.Ascending},
	"name-desc":  {Field: "name", Direction: criteria.Descending},
	"price-asc":  {Field: "price", Direction: criteria.Ascending},
	"price-desc": {Field: "price", Direction: criteria.Descending},
}

// SortingKeys lists the available sortings in display order.
var SortingKeys = []string{"name-asc", "name-desc", "price-asc", "price-desc"}

// SortingListener applies the "order" parameter.
type SortingListener struct {
	Default string
}

// OnCriteria adds the selected sorting.
func (l SortingListener) OnCriteria(ctx context.Context, ev *CriteriaEvent) error {
	key := l.key(ev.Request)
	s, ok := sortings[key]
	if !ok {
		return fmt.Errorf("%w: unknown sorting %q", ErrInvalidRequest, key)
	}
	ev.Criteria.AddSorting(s)
	return nil
}

// OnResult records the applied sorting.
func (l SortingListener) OnResult(ctx context.Context, ev *ResultEvent) error {
	ev.Result.Sorting = l.key(ev.Request)
	ev.Result.AvailableSortings = SortingKeys
	return nil
}

func (l SortingListener) key(req Request) string {
	if key := req.String("order"); key != "" {
		return key
	}
	if l.Default != "" {
		return l.Default
	}
	return "name-asc"
}

// ManufacturerListener filters by the pipe separated "manufacturer"
// parameter and aggregates the manufacturers of the whole listing.
type ManufacturerListener struct{}

// ManufacturerAggregation is the aggregation name used by the listener.
const ManufacturerAggregation = "manufacturer"

// OnCriteria adds the aggregation and the post filter.
func (ManufacturerListener) OnCriteria(ctx context.Context, ev *CriteriaEvent) error {
	ev.Criteria.AddAggregation(criteria.Terms{Name: ManufacturerAggregation, Field: "manufacturerId"})

	ids := manufacturerIDs(ev.Request)
	if len(ids) == 0 {
		return nil
	}
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	ev.Criteria.AddPostFilter(criteria.EqualsAny{Field: "manufacturerId", Values: values})
	return nil
}

// OnResult records the selected manufacturers.
func (ManufacturerListener) OnResult(ctx context.Context, ev *ResultEvent) error {
	ev.Result.AddCurrentFilter(ManufacturerAggregation, manufacturerIDs(ev.Request))
	return nil
}

func manufacturerIDs(req Request) []string {
	ids := []string{}
	for _, id := range strings.Split(req.String("manufacturer"), "|") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResultMessage is the payload published on domain.TopicListingResult.
type ResultMessage struct {
	SalesChannelID string   `json:"salesChannelId"`
	NavigationID   any      `json:"navigationId"`
	Total          int      `json:"total"`
	ProductIDs     []string `json:"productIds"`
}

// PublishListener publishes every listing result on the event bus.
// Publishing failures are logged and never fail the request.
type PublishListener struct {
	Bus domain.EventBus
}

// OnResult publishes the result summary.
func (l PublishListener) OnResult(ctx context.Context, ev *ResultEvent) error {
	if l.Bus == nil {
		return nil
	}

	ids := make([]string, len(ev.Result.Products))
	for i, p := range ev.Result.Products {
		ids[i] = p.ID
	}
	payload, err := json.Marshal(ResultMessage{
		SalesChannelID: ev.Context.SalesChannelID,
		NavigationID:   ev.Result.CurrentFilters["navigationId"],
		Total:          ev.Result.Total,
		ProductIDs:     ids,
	})
	if err != nil {
		return err
	}

	if err := l.Bus.Publish(ctx, ev.Context.SalesChannelID, domain.TopicListingResult, payload); err != nil {
		slog.Warn("failed to publish listing result",
			"sales_channel_id", ev.Context.SalesChannelID,
			"error", err,
		)
	}
	return nil
}

// RegisterDefaults wires the listeners shipped with this package.
func RegisterDefaults(r *Route, bus domain.EventBus) {
	paging := PagingListener{}
	sorting := SortingListener{}
	manufacturer := ManufacturerListener{}

	r.OnCriteria.Add(paging.OnCriteria)
	r.OnCriteria.Add(sorting.OnCriteria)
	r.OnCriteria.Add(manufacturer.OnCriteria)

	r.OnResult.Add(paging.OnResult)
	r.OnResult.Add(sorting.OnResult)
	r.OnResult.Add(manufacturer.OnResult)
	r.OnResult.Add(PublishListener{Bus: bus}.OnResult)
}
