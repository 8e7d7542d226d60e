package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/shopcore/internal/domain"
	"github.com/opensource-finance/shopcore/internal/metrics"
)

// ConditionLoader loads the persisted condition tree of a rule.
type ConditionLoader interface {
	ListRuleConditions(ctx context.Context, ruleID string) ([]*domain.RuleCondition, error)
}

// Engine evaluates persisted rules. Hydrated rule trees are cached per
// rule id until invalidated. A tree loaded while its rule is invalidated
// is returned to the caller but not cached.
type Engine struct {
	mu          sync.RWMutex
	registry    *Registry
	loader      ConditionLoader
	rules       map[string]Rule
	generations map[string]uint64
}

// NewEngine creates a rule engine.
func NewEngine(registry *Registry, loader ConditionLoader) *Engine {
	return &Engine{
		registry:    registry,
		loader:      loader,
		rules:       make(map[string]Rule),
		generations: make(map[string]uint64),
	}
}

// Registry returns the rule type registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Rule returns the hydrated rule tree, loading it on first use.
func (e *Engine) Rule(ctx context.Context, ruleID string) (Rule, error) {
	e.mu.RLock()
	rule, ok := e.rules[ruleID]
	generation := e.generations[ruleID]
	e.mu.RUnlock()
	if ok {
		return rule, nil
	}

	conditions, err := e.loader.ListRuleConditions(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conditions of rule %s: %w", ruleID, err)
	}

	rule, err = e.registry.Build(conditions)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", ruleID, err)
	}

	e.mu.Lock()
	if e.generations[ruleID] == generation {
		e.rules[ruleID] = rule
	}
	e.mu.Unlock()

	slog.Debug("rule hydrated", "rule_id", ruleID, "conditions", len(conditions))
	return rule, nil
}

// Match evaluates a rule against a scope.
func (e *Engine) Match(ctx context.Context, ruleID string, scope Scope) (Match, error) {
	rule, err := e.Rule(ctx, ruleID)
	if err != nil {
		return Match{}, err
	}

	m := rule.Match(scope)
	metrics.ObserveRuleMatch(m.Matches)
	return m, nil
}

// Invalidate drops the cached tree of a rule.
func (e *Engine) Invalidate(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, ruleID)
	e.generations[ruleID]++
}

// CachedCount returns the number of hydrated rules.
func (e *Engine) CachedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Close drops every cached rule.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = make(map[string]Rule)
	for id := range e.generations {
		e.generations[id]++
	}
	return nil
}
