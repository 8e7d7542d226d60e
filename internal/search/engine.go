// Package search executes criteria against the SQL storage described by
// the schema registry. It returns matching ids, totals and aggregation
// results; loading full entities is left to the repository.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/opensource-finance/shopcore/internal/criteria"
	"github.com/opensource-finance/shopcore/internal/metrics"
	"github.com/opensource-finance/shopcore/internal/repository"
	"github.com/opensource-finance/shopcore/internal/schema"
)

var tracer = otel.Tracer("shopcore-search")

// Engine runs criteria searches.
type Engine struct {
	db       *sql.DB
	driver   string
	registry *schema.Registry
}

// NewEngine creates a search engine on top of an open database.
func NewEngine(db *sql.DB, driver string, registry *schema.Registry) *Engine {
	return &Engine{
		db:       db,
		driver:   driver,
		registry: registry,
	}
}

// Registry returns the schema registry used to validate criteria.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// Search returns the ids matching c, the total before paging, and the
// requested aggregations.
func (e *Engine) Search(ctx context.Context, entity string, c *criteria.Criteria) (result *criteria.SearchResult, err error) {
	ctx, span := tracer.Start(ctx, "search.Search")
	span.SetAttributes(attribute.String("entity", entity))
	start := time.Now()
	defer func() {
		metrics.ObserveSearch(entity, "search", time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c == nil {
		c = criteria.New()
	}

	def, err := e.registry.Get(entity)
	if err != nil {
		return nil, err
	}
	pk, _ := def.PrimaryKey()

	filters := append(append([]criteria.Filter{}, c.Filters...), c.PostFilters...)
	where, args, err := e.buildWhere(def, filters, c.IDs)
	if err != nil {
		return nil, err
	}

	order, err := e.orderBy(def, c.Sortings)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT t0.%s FROM %s t0%s ORDER BY %s", pk.Column, def.Table, where, order)
	pageArgs := append([]any{}, args...)
	query, pageArgs = e.paginate(query, pageArgs, c.Limit, c.Offset)

	rows, err := e.db.QueryContext(ctx, repository.Rebind(e.driver, query), pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", entity, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	total := len(ids)
	if c.Limit > 0 || c.Offset > 0 {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s t0%s", def.Table, where)
		if err := e.db.QueryRowContext(ctx, repository.Rebind(e.driver, countQuery), args...).Scan(&total); err != nil {
			return nil, fmt.Errorf("count %s: %w", entity, err)
		}
	}

	aggs, err := e.aggregate(ctx, def, c)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("total", total))

	return &criteria.SearchResult{
		Entity:       entity,
		Total:        total,
		IDs:          ids,
		Aggregations: aggs,
		Criteria:     c,
	}, nil
}

// Aggregate runs only the aggregations of c. Post filters are ignored.
func (e *Engine) Aggregate(ctx context.Context, entity string, c *criteria.Criteria) (result criteria.AggregationResults, err error) {
	ctx, span := tracer.Start(ctx, "search.Aggregate")
	span.SetAttributes(attribute.String("entity", entity))
	start := time.Now()
	defer func() {
		metrics.ObserveSearch(entity, "aggregate", time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c == nil {
		c = criteria.New()
	}

	def, err := e.registry.Get(entity)
	if err != nil {
		return nil, err
	}
	return e.aggregate(ctx, def, c)
}

func (e *Engine) aggregate(ctx context.Context, def *schema.Definition, c *criteria.Criteria) (criteria.AggregationResults, error) {
	results := make(criteria.AggregationResults, len(c.Aggregations))
	if len(c.Aggregations) == 0 {
		return results, nil
	}

	where, args, err := e.buildWhere(def, c.Filters, c.IDs)
	if err != nil {
		return nil, err
	}

	for _, agg := range c.Aggregations {
		column, err := e.rootColumn(def, agg.AggregationField())
		if err != nil {
			return nil, fmt.Errorf("aggregation %s: %w", agg.AggregationName(), err)
		}

		var result criteria.AggregationResult
		switch a := agg.(type) {
		case criteria.Count:
			result, err = e.count(ctx, def, a, column, where, args)
		case criteria.Sum:
			result, err = e.metric(ctx, def, a.Name, "sum", "SUM", column, where, args)
		case criteria.Avg:
			result, err = e.metric(ctx, def, a.Name, "avg", "AVG", column, where, args)
		case criteria.Min:
			result, err = e.metric(ctx, def, a.Name, "min", "MIN", column, where, args)
		case criteria.Max:
			result, err = e.metric(ctx, def, a.Name, "max", "MAX", column, where, args)
		case criteria.Terms:
			result, err = e.terms(ctx, def, a, column, where, args)
		default:
			err = fmt.Errorf("unsupported aggregation %T", agg)
		}
		if err != nil {
			return nil, err
		}
		results.Add(result)
	}

	return results, nil
}

func (e *Engine) count(ctx context.Context, def *schema.Definition, a criteria.Count, column, where string, args []any) (*criteria.CountResult, error) {
	query := fmt.Sprintf("SELECT COUNT(DISTINCT t0.%s) FROM %s t0%s", column, def.Table, where)
	var n int64
	if err := e.db.QueryRowContext(ctx, repository.Rebind(e.driver, query), args...).Scan(&n); err != nil {
		return nil, fmt.Errorf("aggregation %s: %w", a.Name, err)
	}
	return &criteria.CountResult{Name: a.Name, Count: n}, nil
}

func (e *Engine) metric(ctx context.Context, def *schema.Definition, name, kind, fn, column, where string, args []any) (*criteria.MetricResult, error) {
	query := fmt.Sprintf("SELECT %s(t0.%s) FROM %s t0%s", fn, column, def.Table, where)
	var v sql.NullFloat64
	if err := e.db.QueryRowContext(ctx, repository.Rebind(e.driver, query), args...).Scan(&v); err != nil {
		return nil, fmt.Errorf("aggregation %s: %w", name, err)
	}
	result := &criteria.MetricResult{Name: name, Kind: kind}
	if v.Valid {
		result.Value = &v.Float64
	}
	return result, nil
}

func (e *Engine) terms(ctx context.Context, def *schema.Definition, a criteria.Terms, column, where string, args []any) (*criteria.TermsResult, error) {
	cond := fmt.Sprintf("t0.%s IS NOT NULL", column)
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}

	query := fmt.Sprintf("SELECT t0.%s, COUNT(*) FROM %s t0%s GROUP BY t0.%s ORDER BY COUNT(*) DESC, t0.%s ASC",
		column, def.Table, where, column, column)
	if a.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", a.Limit)
	}

	rows, err := e.db.QueryContext(ctx, repository.Rebind(e.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("aggregation %s: %w", a.Name, err)
	}
	defer rows.Close()

	result := &criteria.TermsResult{Name: a.Name, Buckets: []criteria.Bucket{}}
	for rows.Next() {
		var b criteria.Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, err
		}
		result.Buckets = append(result.Buckets, b)
	}
	return result, rows.Err()
}

func (e *Engine) buildWhere(def *schema.Definition, filters []criteria.Filter, ids []string) (string, []any, error) {
	c := newCompiler(e.registry, def)
	clause, err := c.where(filters)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	if clause != "" {
		parts = append(parts, clause)
	}
	if len(ids) > 0 {
		pk, _ := def.PrimaryKey()
		parts = append(parts, fmt.Sprintf("t0.%s IN (%s)", pk.Column, strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")))
		for _, id := range ids {
			c.args = append(c.args, id)
		}
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(parts, " AND "), c.args, nil
}

func (e *Engine) orderBy(def *schema.Definition, sortings []criteria.Sorting) (string, error) {
	var parts []string
	for _, s := range sortings {
		column, err := e.rootColumn(def, s.Field)
		if err != nil {
			return "", fmt.Errorf("sorting: %w", err)
		}
		dir := criteria.Ascending
		if strings.EqualFold(string(s.Direction), string(criteria.Descending)) {
			dir = criteria.Descending
		}
		parts = append(parts, fmt.Sprintf("t0.%s %s", column, dir))
	}

	// Stable paging needs a total order.
	pk, _ := def.PrimaryKey()
	parts = append(parts, "t0."+pk.Column+" ASC")
	return strings.Join(parts, ", "), nil
}

func (e *Engine) paginate(query string, args []any, limit, offset int) (string, []any) {
	switch {
	case limit > 0:
		return query + " LIMIT ? OFFSET ?", append(args, limit, offset)
	case offset > 0 && e.driver == "postgres":
		return query + " OFFSET ?", append(args, offset)
	case offset > 0:
		return query + " LIMIT -1 OFFSET ?", append(args, offset)
	}
	return query, args
}

// rootColumn resolves a field that must live on the root entity.
// Aggregations and sortings across associations are not supported.
func (e *Engine) rootColumn(def *schema.Definition, field string) (string, error) {
	p, err := e.registry.Resolve(def.Entity, field)
	if err != nil {
		return "", err
	}
	if len(p.Hops) > 0 {
		return "", fmt.Errorf("%w: %s crosses an association", schema.ErrUnknownField, field)
	}
	return p.Field.Column, nil
}
