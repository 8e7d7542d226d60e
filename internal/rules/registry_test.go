package rules

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/opensource-finance/shopcore/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestRegistryCreate(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	t.Run("LineItemOfType", func(t *testing.T) {
		rule, err := registry.Create(TypeLineItemOfType, json.RawMessage(`{"lineItemType":"product"}`))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		r, ok := rule.(*LineItemOfType)
		if !ok {
			t.Fatalf("expected *LineItemOfType, got %T", rule)
		}
		if r.LineItemType != "product" {
			t.Errorf("expected lineItemType product, got %s", r.LineItemType)
		}
	})

	t.Run("MissingParameter", func(t *testing.T) {
		_, err := registry.Create(TypeLineItemOfType, nil)
		if !errors.Is(err, ErrInvalidCondition) {
			t.Errorf("expected ErrInvalidCondition, got %v", err)
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := registry.Create("customerGroup", nil)
		if !errors.Is(err, ErrUnknownType) {
			t.Errorf("expected ErrUnknownType, got %v", err)
		}
	})

	t.Run("Types", func(t *testing.T) {
		if len(registry.Types()) != 6 {
			t.Errorf("expected 6 built-in types, got %v", registry.Types())
		}
	})
}

func TestRegistryBuild(t *testing.T) {
	registry, _ := NewRegistry()

	conditions := []*domain.RuleCondition{
		{ID: "or", Type: TypeOr, Position: 0},
		{ID: "credit", Type: TypeLineItemOfType, ParentID: strPtr("or"), Position: 1, Value: json.RawMessage(`{"lineItemType":"credit"}`)},
		{ID: "product", Type: TypeLineItemOfType, ParentID: strPtr("or"), Position: 0, Value: json.RawMessage(`{"lineItemType":"product"}`)},
		{ID: "qty", Type: TypeExpression, Position: 1, Value: json.RawMessage(`{"expression":"lineItem.quantity > 1"}`)},
	}

	rule, err := registry.Build(conditions)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	root, ok := rule.(*And)
	if !ok || len(root.Rules) != 2 {
		t.Fatalf("expected AND root with 2 rules, got %#v", rule)
	}
	or, ok := root.Rules[0].(*Or)
	if !ok || len(or.Rules) != 2 {
		t.Fatalf("expected OR with 2 children first, got %#v", root.Rules[0])
	}
	if or.Rules[0].(*LineItemOfType).LineItemType != "product" {
		t.Error("expected children ordered by position")
	}

	if !rule.Match(LineItemScope{LineItem: domain.LineItem{Type: "credit", Quantity: 2}}).Matches {
		t.Error("expected credit with quantity 2 to match")
	}
	if rule.Match(LineItemScope{LineItem: domain.LineItem{Type: "custom", Quantity: 2}}).Matches {
		t.Error("expected custom line item not to match")
	}
}

func TestRegistryBuildErrors(t *testing.T) {
	registry, _ := NewRegistry()

	tests := []struct {
		name       string
		conditions []*domain.RuleCondition
	}{
		{"UnknownParent", []*domain.RuleCondition{
			{ID: "a", Type: TypeAlways, ParentID: strPtr("missing")},
		}},
		{"LeafWithChildren", []*domain.RuleCondition{
			{ID: "a", Type: TypeAlways},
			{ID: "b", Type: TypeAlways, ParentID: strPtr("a")},
		}},
		{"Cycle", []*domain.RuleCondition{
			{ID: "a", Type: TypeAnd, ParentID: strPtr("b")},
			{ID: "b", Type: TypeAnd, ParentID: strPtr("a")},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := registry.Build(tc.conditions); !errors.Is(err, ErrInvalidCondition) {
				t.Errorf("expected ErrInvalidCondition, got %v", err)
			}
		})
	}
}

func TestRegistryBuildEmpty(t *testing.T) {
	registry, _ := NewRegistry()

	rule, err := registry.Build(nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !rule.Match(CheckoutScope{}).Matches {
		t.Error("expected rule without conditions to match")
	}
}
