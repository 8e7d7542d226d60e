package criteria

// Operator joins the queries of a Multi or Not filter.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

// Filter is a node of a filter tree. The concrete types below are the
// complete set understood by the search engine.
type Filter interface {
	// Fields returns every field path referenced by the filter.
	Fields() []string
	filter()
}

// Equals matches a field against a single value. A nil value matches NULL.
type Equals struct {
	Field string
	Value any
}

// EqualsAny matches a field against any of the given values.
type EqualsAny struct {
	Field  string
	Values []any
}

// Contains matches string fields containing Value.
type Contains struct {
	Field string
	Value string
}

// Range bounds a field. Nil bounds are ignored.
type Range struct {
	Field string
	GTE   any
	GT    any
	LTE   any
	LT    any
}

// Multi combines filters with AND or OR.
// An empty Multi matches everything.
type Multi struct {
	Operator Operator
	Queries  []Filter
}

// Not negates the combination of its queries.
type Not struct {
	Operator Operator
	Queries  []Filter
}

func (Equals) filter()    {}
func (EqualsAny) filter() {}
func (Contains) filter()  {}
func (Range) filter()     {}
func (Multi) filter()     {}
func (Not) filter()       {}

func (f Equals) Fields() []string    { return []string{f.Field} }
func (f EqualsAny) Fields() []string { return []string{f.Field} }
func (f Contains) Fields() []string  { return []string{f.Field} }
func (f Range) Fields() []string     { return []string{f.Field} }
func (f Multi) Fields() []string     { return collectFields(f.Queries) }
func (f Not) Fields() []string       { return collectFields(f.Queries) }

func collectFields(queries []Filter) []string {
	var fields []string
	for _, q := range queries {
		fields = append(fields, q.Fields()...)
	}
	return fields
}

// AndOf is shorthand for Multi{Operator: And}.
func AndOf(queries ...Filter) Multi {
	return Multi{Operator: And, Queries: queries}
}

// OrOf is shorthand for Multi{Operator: Or}.
func OrOf(queries ...Filter) Multi {
	return Multi{Operator: Or, Queries: queries}
}

// ProductAvailable restricts products to active ones visible in the sales
// channel with at least the given visibility.
func ProductAvailable(salesChannelID string, visibility int) Multi {
	return AndOf(
		Equals{Field: "product.active", Value: true},
		Range{Field: "product.visibilities.visibility", GTE: visibility},
		Equals{Field: "product.visibilities.salesChannelId", Value: salesChannelID},
	)
}
