// Package rules evaluates rule trees against carts and line items.
package rules

// Rule is a named, configurable predicate over a Scope.
// Match never fails; an unsuitable scope yields a failed Match.
type Rule interface {
	Name() string
	Match(scope Scope) Match
}

// Container is a rule composed of child rules.
type Container interface {
	Rule
	AddRule(rule Rule)
}

// Rule type names as persisted in rule_condition.type.
const (
	TypeLineItemOfType = "lineItemOfType"
	TypeAnd            = "andContainer"
	TypeOr             = "orContainer"
	TypeNot            = "notContainer"
	TypeAlways         = "alwaysValid"
	TypeExpression     = "expression"
)

// LineItemOfType matches line items of a given type.
type LineItemOfType struct {
	LineItemType string `json:"lineItemType"`
}

func (r *LineItemOfType) Name() string { return TypeLineItemOfType }

// Match compares the line item type. The mismatch message is reported
// whatever the verdict; callers rely on that.
func (r *LineItemOfType) Match(scope Scope) Match {
	s, ok := scope.(LineItemScope)
	if !ok {
		return Match{
			Matches:  false,
			Messages: []string{"Invalid Match Context. LineItemScope expected"},
		}
	}

	return Match{
		Matches:  s.LineItem.Type == r.LineItemType,
		Messages: []string{"LineItem type does not match"},
	}
}

// And matches when every child matches. An empty And matches.
type And struct {
	Rules []Rule
}

func (r *And) Name() string      { return TypeAnd }
func (r *And) AddRule(rule Rule) { r.Rules = append(r.Rules, rule) }

func (r *And) Match(scope Scope) Match {
	result := Match{Matches: true, Messages: []string{}}
	for _, child := range r.Rules {
		m := child.Match(scope)
		if !m.Matches {
			result.Matches = false
		}
		result.Messages = append(result.Messages, m.Messages...)
	}
	return result
}

// Or matches when at least one child matches. An empty Or does not match.
type Or struct {
	Rules []Rule
}

func (r *Or) Name() string      { return TypeOr }
func (r *Or) AddRule(rule Rule) { r.Rules = append(r.Rules, rule) }

func (r *Or) Match(scope Scope) Match {
	result := Match{Matches: false, Messages: []string{}}
	for _, child := range r.Rules {
		m := child.Match(scope)
		if m.Matches {
			result.Matches = true
		}
		result.Messages = append(result.Messages, m.Messages...)
	}
	return result
}

// Not inverts the AND of its children.
type Not struct {
	Rules []Rule
}

func (r *Not) Name() string      { return TypeNot }
func (r *Not) AddRule(rule Rule) { r.Rules = append(r.Rules, rule) }

func (r *Not) Match(scope Scope) Match {
	inner := (&And{Rules: r.Rules}).Match(scope)
	return Match{Matches: !inner.Matches, Messages: inner.Messages}
}

// Always matches any scope.
type Always struct{}

func (Always) Name() string            { return TypeAlways }
func (Always) Match(scope Scope) Match { return Match{Matches: true, Messages: []string{}} }
