package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	"github.com/opensource-finance/shopcore/internal/domain"
)

var (
	ErrUnknownType      = errors.New("unknown rule type")
	ErrInvalidCondition = errors.New("invalid rule condition")
)

// Constructor builds a rule from its persisted JSON parameters.
// value is nil when the condition has no parameters.
type Constructor func(value json.RawMessage) (Rule, error)

// Registry maps rule type names to constructors. Register types during
// startup; Build may then be called concurrently.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates a registry with the built-in rule types.
func NewRegistry() (*Registry, error) {
	env, err := NewExpressionEnv()
	if err != nil {
		return nil, err
	}

	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register(TypeAnd, func(json.RawMessage) (Rule, error) { return &And{}, nil })
	r.Register(TypeOr, func(json.RawMessage) (Rule, error) { return &Or{}, nil })
	r.Register(TypeNot, func(json.RawMessage) (Rule, error) { return &Not{}, nil })
	r.Register(TypeAlways, func(json.RawMessage) (Rule, error) { return Always{}, nil })
	r.Register(TypeLineItemOfType, newLineItemOfType)
	r.Register(TypeExpression, expressionConstructor(env))
	return r, nil
}

// Register adds or replaces a rule type.
func (r *Registry) Register(ruleType string, c Constructor) {
	r.constructors[ruleType] = c
}

// Types returns the registered rule type names, sorted.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds a single rule.
func (r *Registry) Create(ruleType string, value json.RawMessage) (Rule, error) {
	c, ok := r.constructors[ruleType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, ruleType)
	}
	rule, err := c(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCondition, ruleType, err)
	}
	return rule, nil
}

// Build hydrates a persisted condition tree. Siblings are ordered by
// position; root conditions are combined with AND.
func (r *Registry) Build(conditions []*domain.RuleCondition) (Rule, error) {
	byID := make(map[string]*domain.RuleCondition, len(conditions))
	for _, c := range conditions {
		byID[c.ID] = c
	}

	children := make(map[string][]*domain.RuleCondition)
	var roots []*domain.RuleCondition
	for _, c := range conditions {
		if c.ParentID == nil || *c.ParentID == "" {
			roots = append(roots, c)
			continue
		}
		if _, ok := byID[*c.ParentID]; !ok {
			return nil, fmt.Errorf("%w: condition %s references unknown parent %s", ErrInvalidCondition, c.ID, *c.ParentID)
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	root := &And{}
	visited := make(map[string]bool, len(conditions))
	for _, c := range sortByPosition(roots) {
		rule, err := r.build(c, children, visited)
		if err != nil {
			return nil, err
		}
		root.AddRule(rule)
	}

	if len(visited) != len(conditions) {
		return nil, fmt.Errorf("%w: condition tree contains a cycle", ErrInvalidCondition)
	}

	return root, nil
}

func (r *Registry) build(c *domain.RuleCondition, children map[string][]*domain.RuleCondition, visited map[string]bool) (Rule, error) {
	if visited[c.ID] {
		return nil, fmt.Errorf("%w: condition %s visited twice", ErrInvalidCondition, c.ID)
	}
	visited[c.ID] = true

	rule, err := r.Create(c.Type, c.Value)
	if err != nil {
		return nil, err
	}

	kids := children[c.ID]
	if len(kids) == 0 {
		return rule, nil
	}

	container, ok := rule.(Container)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s) cannot have children", ErrInvalidCondition, c.ID, c.Type)
	}
	for _, child := range sortByPosition(kids) {
		childRule, err := r.build(child, children, visited)
		if err != nil {
			return nil, err
		}
		container.AddRule(childRule)
	}
	return container, nil
}

func sortByPosition(conditions []*domain.RuleCondition) []*domain.RuleCondition {
	sorted := append([]*domain.RuleCondition{}, conditions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	return sorted
}

func newLineItemOfType(value json.RawMessage) (Rule, error) {
	var r LineItemOfType
	if len(value) > 0 {
		if err := json.Unmarshal(value, &r); err != nil {
			return nil, err
		}
	}
	if r.LineItemType == "" {
		return nil, errors.New("lineItemType is required")
	}
	return &r, nil
}

func expressionConstructor(env *cel.Env) Constructor {
	return func(value json.RawMessage) (Rule, error) {
		var params struct {
			Expression string `json:"expression"`
		}
		if len(value) > 0 {
			if err := json.Unmarshal(value, &params); err != nil {
				return nil, err
			}
		}
		if params.Expression == "" {
			return nil, errors.New("expression is required")
		}
		return CompileExpression(env, params.Expression)
	}
}
