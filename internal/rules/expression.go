package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/shopcore/internal/domain"
)

// Expression matches when a CEL expression evaluates to true.
//
// Available variables:
//
//	lineItem        map: id, type, referencedId, quantity, unitPrice, totalPrice, payload
//	cart            map: token, lineItemCount, totalPrice, types
//	salesChannelId  string
//	customerId      string (empty for guests)
type Expression struct {
	Source  string `json:"expression"`
	program cel.Program
}

// NewExpressionEnv creates the CEL environment expression rules compile in.
func NewExpressionEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("lineItem", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("cart", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("salesChannelId", cel.StringType),
		cel.Variable("customerId", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// CompileExpression compiles source into an Expression rule.
func CompileExpression(env *cel.Env, source string) (*Expression, error) {
	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return &Expression{Source: source, program: program}, nil
}

func (r *Expression) Name() string { return TypeExpression }

func (r *Expression) Match(scope Scope) Match {
	out, _, err := r.program.Eval(activation(scope))
	if err != nil {
		return Match{Matches: false, Messages: []string{fmt.Sprintf("evaluation error: %v", err)}}
	}

	if b, ok := out.(types.Bool); ok && bool(b) {
		return Match{Matches: true, Messages: []string{}}
	}
	return Match{Matches: false, Messages: []string{"Expression does not match"}}
}

func activation(scope Scope) map[string]any {
	sc := scope.SalesChannel()
	customerID := ""
	if sc.Customer != nil {
		customerID = sc.Customer.ID
	}

	vars := map[string]any{
		"lineItem":       map[string]any{},
		"cart":           map[string]any{},
		"salesChannelId": sc.SalesChannelID,
		"customerId":     customerID,
	}

	switch s := scope.(type) {
	case LineItemScope:
		vars["lineItem"] = lineItemVars(s.LineItem)
	case CartScope:
		lineItemTypes := make([]string, 0, len(s.Cart.LineItems))
		for _, li := range s.Cart.LineItems {
			lineItemTypes = append(lineItemTypes, li.Type)
		}
		vars["cart"] = map[string]any{
			"token":         s.Cart.Token,
			"lineItemCount": int64(len(s.Cart.LineItems)),
			"totalPrice":    s.Cart.TotalPrice(),
			"types":         lineItemTypes,
		}
	}

	return vars
}

func lineItemVars(li domain.LineItem) map[string]any {
	payload := li.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"id":           li.ID,
		"type":         li.Type,
		"referencedId": li.ReferencedID,
		"quantity":     int64(li.Quantity),
		"unitPrice":    li.UnitPrice,
		"totalPrice":   li.TotalPrice(),
		"payload":      payload,
	}
}
