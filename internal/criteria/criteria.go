// Package criteria builds search requests: filter trees, aggregations,
// sorting and paging. A Criteria is built and consumed within a single
// request and must not be mutated concurrently.
package criteria

// Direction of a sorting.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Sorting orders results by a field.
type Sorting struct {
	Field     string
	Direction Direction
}

// Criteria is a composable search request.
type Criteria struct {
	IDs          []string
	Filters      []Filter
	PostFilters  []Filter // applied to entities but not to aggregations
	Aggregations []Aggregation
	Sortings     []Sorting
	Limit        int // zero means unlimited
	Offset       int
}

// New creates an empty criteria, optionally restricted to ids.
func New(ids ...string) *Criteria {
	return &Criteria{IDs: ids}
}

// AddFilter appends filters; top level filters are combined with AND.
func (c *Criteria) AddFilter(filters ...Filter) *Criteria {
	c.Filters = append(c.Filters, filters...)
	return c
}

// AddPostFilter appends filters that narrow entities but not aggregations.
func (c *Criteria) AddPostFilter(filters ...Filter) *Criteria {
	c.PostFilters = append(c.PostFilters, filters...)
	return c
}

// AddAggregation appends aggregations. A later aggregation with the same
// name replaces the earlier one in the result.
func (c *Criteria) AddAggregation(aggs ...Aggregation) *Criteria {
	c.Aggregations = append(c.Aggregations, aggs...)
	return c
}

// AddSorting appends sortings.
func (c *Criteria) AddSorting(sortings ...Sorting) *Criteria {
	c.Sortings = append(c.Sortings, sortings...)
	return c
}

// SetLimit sets the page size.
func (c *Criteria) SetLimit(limit int) *Criteria {
	c.Limit = limit
	return c
}

// SetOffset sets the number of skipped entities.
func (c *Criteria) SetOffset(offset int) *Criteria {
	c.Offset = offset
	return c
}

// Fields returns every field path referenced by filters, post filters,
// aggregations and sortings, in that order.
func (c *Criteria) Fields() []string {
	fields := collectFields(c.Filters)
	fields = append(fields, collectFields(c.PostFilters)...)
	for _, a := range c.Aggregations {
		fields = append(fields, a.AggregationField())
	}
	for _, s := range c.Sortings {
		fields = append(fields, s.Field)
	}
	return fields
}

// SearchResult is what the search engine returns for a Criteria.
type SearchResult struct {
	Entity       string             `json:"entity"`
	Total        int                `json:"total"`
	IDs          []string           `json:"ids"`
	Aggregations AggregationResults `json:"aggregations"`
	Criteria     *Criteria          `json:"-"`
}
