package rules

import (
	"testing"

	"github.com/opensource-finance/shopcore/internal/domain"
)

func hasMessage(m Match, msg string) bool {
	for _, got := range m.Messages {
		if got == msg {
			return true
		}
	}
	return false
}

func TestLineItemOfTypeRejectsOtherScopes(t *testing.T) {
	rule := &LineItemOfType{LineItemType: domain.LineItemTypeProduct}

	scopes := []struct {
		name  string
		scope Scope
	}{
		{"CartScope", CartScope{Cart: domain.Cart{LineItems: []domain.LineItem{{Type: domain.LineItemTypeProduct}}}}},
		{"CheckoutScope", CheckoutScope{}},
	}

	for _, tc := range scopes {
		t.Run(tc.name, func(t *testing.T) {
			m := rule.Match(tc.scope)
			if m.Matches {
				t.Error("expected no match for non line item scope")
			}
			if len(m.Messages) != 1 || m.Messages[0] != "Invalid Match Context. LineItemScope expected" {
				t.Errorf("unexpected messages: %v", m.Messages)
			}
		})
	}
}

func TestLineItemOfTypeMatch(t *testing.T) {
	rule := &LineItemOfType{LineItemType: domain.LineItemTypePromotion}

	tests := []struct {
		name     string
		itemType string
		want     bool
	}{
		{"SameType", domain.LineItemTypePromotion, true},
		{"OtherType", domain.LineItemTypeProduct, false},
		{"EmptyType", "", false},
		{"CaseDiffers", "Promotion", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := rule.Match(LineItemScope{LineItem: domain.LineItem{ID: "li-1", Type: tc.itemType}})
			if m.Matches != tc.want {
				t.Errorf("expected matches=%v, got %v", tc.want, m.Matches)
			}
			// The message is reported regardless of the verdict.
			if !hasMessage(m, "LineItem type does not match") {
				t.Errorf("expected mismatch message, got %v", m.Messages)
			}
		})
	}
}

func TestContainers(t *testing.T) {
	product := &LineItemOfType{LineItemType: domain.LineItemTypeProduct}
	credit := &LineItemOfType{LineItemType: domain.LineItemTypeCredit}
	scope := LineItemScope{LineItem: domain.LineItem{Type: domain.LineItemTypeProduct}}

	t.Run("And", func(t *testing.T) {
		if !(&And{Rules: []Rule{product, Always{}}}).Match(scope).Matches {
			t.Error("expected AND of matching rules to match")
		}
		if (&And{Rules: []Rule{product, credit}}).Match(scope).Matches {
			t.Error("expected AND with a failing rule not to match")
		}
		if !(&And{}).Match(scope).Matches {
			t.Error("expected empty AND to match")
		}
	})

	t.Run("Or", func(t *testing.T) {
		if !(&Or{Rules: []Rule{credit, product}}).Match(scope).Matches {
			t.Error("expected OR with a matching rule to match")
		}
		if (&Or{Rules: []Rule{credit}}).Match(scope).Matches {
			t.Error("expected OR without a matching rule not to match")
		}
		if (&Or{}).Match(scope).Matches {
			t.Error("expected empty OR not to match")
		}
	})

	t.Run("Not", func(t *testing.T) {
		if !(&Not{Rules: []Rule{credit}}).Match(scope).Matches {
			t.Error("expected NOT of failing rule to match")
		}
		if (&Not{Rules: []Rule{product}}).Match(scope).Matches {
			t.Error("expected NOT of matching rule not to match")
		}
	})

	t.Run("MessagesCollected", func(t *testing.T) {
		m := (&And{Rules: []Rule{product, credit}}).Match(scope)
		if len(m.Messages) != 2 {
			t.Errorf("expected 2 messages, got %v", m.Messages)
		}
	})
}

func TestExpressionRule(t *testing.T) {
	env, err := NewExpressionEnv()
	if err != nil {
		t.Fatalf("failed to create env: %v", err)
	}

	t.Run("LineItem", func(t *testing.T) {
		rule, err := CompileExpression(env, `lineItem.type == "product" && lineItem.quantity >= 2`)
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}

		m := rule.Match(LineItemScope{LineItem: domain.LineItem{Type: "product", Quantity: 3}})
		if !m.Matches {
			t.Errorf("expected match, got %v", m)
		}

		m = rule.Match(LineItemScope{LineItem: domain.LineItem{Type: "product", Quantity: 1}})
		if m.Matches {
			t.Error("expected no match for quantity 1")
		}
	})

	t.Run("Cart", func(t *testing.T) {
		rule, err := CompileExpression(env, `cart.totalPrice > 100.0 && "promotion" in cart.types`)
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}

		cart := domain.Cart{LineItems: []domain.LineItem{
			{Type: "product", Quantity: 2, UnitPrice: 60},
			{Type: "promotion", Quantity: 1, UnitPrice: -5},
		}}
		if !rule.Match(CartScope{Cart: cart}).Matches {
			t.Error("expected cart expression to match")
		}
	})

	t.Run("MissingKeyIsNoMatch", func(t *testing.T) {
		rule, err := CompileExpression(env, `cart.totalPrice > 1.0`)
		if err != nil {
			t.Fatalf("compile failed: %v", err)
		}
		m := rule.Match(CheckoutScope{})
		if m.Matches {
			t.Error("expected no match without a cart")
		}
		if len(m.Messages) != 1 {
			t.Errorf("expected one message, got %v", m.Messages)
		}
	})

	t.Run("NonBoolRejected", func(t *testing.T) {
		if _, err := CompileExpression(env, `lineItem.quantity`); err == nil {
			t.Error("expected error for non bool expression")
		}
	})

	t.Run("InvalidSyntax", func(t *testing.T) {
		if _, err := CompileExpression(env, `this is not valid CEL !!!`); err == nil {
			t.Error("expected error for invalid expression")
		}
	})
}
