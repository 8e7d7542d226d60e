package criteria

// Aggregation requests a metric or bucket over the matched entities.
type Aggregation interface {
	AggregationName() string
	AggregationField() string
	aggregation()
}

// Count counts distinct values of Field.
type Count struct{ Name, Field string }

// Sum sums Field.
type Sum struct{ Name, Field string }

// Avg averages Field.
type Avg struct{ Name, Field string }

// Min returns the smallest value of Field.
type Min struct{ Name, Field string }

// Max returns the largest value of Field.
type Max struct{ Name, Field string }

// Terms buckets matches by the distinct values of Field.
// Limit caps the number of buckets; zero means no cap.
type Terms struct {
	Name  string
	Field string
	Limit int
}

func (Count) aggregation() {}
func (Sum) aggregation()   {}
func (Avg) aggregation()   {}
func (Min) aggregation()   {}
func (Max) aggregation()   {}
func (Terms) aggregation() {}

func (a Count) AggregationName() string { return a.Name }
func (a Sum) AggregationName() string   { return a.Name }
func (a Avg) AggregationName() string   { return a.Name }
func (a Min) AggregationName() string   { return a.Name }
func (a Max) AggregationName() string   { return a.Name }
func (a Terms) AggregationName() string { return a.Name }

func (a Count) AggregationField() string { return a.Field }
func (a Sum) AggregationField() string   { return a.Field }
func (a Avg) AggregationField() string   { return a.Field }
func (a Min) AggregationField() string   { return a.Field }
func (a Max) AggregationField() string   { return a.Field }
func (a Terms) AggregationField() string { return a.Field }

// AggregationResult is the outcome of one aggregation.
type AggregationResult interface {
	ResultName() string
}

// CountResult holds the outcome of a Count aggregation.
type CountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// MetricResult holds the outcome of Sum, Avg, Min and Max aggregations.
// Value is nil when no row matched.
type MetricResult struct {
	Name  string   `json:"name"`
	Kind  string   `json:"kind"`
	Value *float64 `json:"value"`
}

// Bucket is one value of a Terms aggregation.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// TermsResult holds the outcome of a Terms aggregation.
type TermsResult struct {
	Name    string   `json:"name"`
	Buckets []Bucket `json:"buckets"`
}

func (r *CountResult) ResultName() string  { return r.Name }
func (r *MetricResult) ResultName() string { return r.Name }
func (r *TermsResult) ResultName() string  { return r.Name }

// AggregationResults is keyed by aggregation name.
type AggregationResults map[string]AggregationResult

// Get returns the named result or nil.
func (r AggregationResults) Get(name string) AggregationResult {
	if r == nil {
		return nil
	}
	return r[name]
}

// Add stores a result under its name.
func (r AggregationResults) Add(result AggregationResult) {
	r[result.ResultName()] = result
}
