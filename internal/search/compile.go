package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/shopcore/internal/criteria"
	"github.com/opensource-finance/shopcore/internal/schema"
)

// node is a filter with its field paths resolved against the schema.
type node struct {
	filter   criteria.Filter
	path     *schema.Path // leaves only
	op       criteria.Operator
	negate   bool
	children []*node
}

func (n *node) leaf() bool {
	return n.path != nil
}

// compiler renders filter trees into a parameterised WHERE clause.
// Association hops become correlated EXISTS subqueries; leaves of one AND
// group that traverse the same association share a subquery, so that
// conditions on a to-many association must hold for the same row.
type compiler struct {
	registry *schema.Registry
	root     *schema.Definition
	args     []any
	aliases  int
}

func newCompiler(registry *schema.Registry, root *schema.Definition) *compiler {
	return &compiler{registry: registry, root: root}
}

func (c *compiler) nextAlias() string {
	c.aliases++
	return "t" + strconv.Itoa(c.aliases)
}

func (c *compiler) resolve(f criteria.Filter) (*node, error) {
	switch v := f.(type) {
	case criteria.Multi:
		return c.resolveGroup(f, v.Operator, false, v.Queries)
	case criteria.Not:
		return c.resolveGroup(f, v.Operator, true, v.Queries)
	case criteria.Equals, criteria.EqualsAny, criteria.Contains, criteria.Range:
		p, err := c.registry.Resolve(c.root.Entity, f.Fields()[0])
		if err != nil {
			return nil, err
		}
		return &node{filter: f, path: p}, nil
	default:
		return nil, fmt.Errorf("unsupported filter %T", f)
	}
}

func (c *compiler) resolveGroup(f criteria.Filter, op criteria.Operator, negate bool, queries []criteria.Filter) (*node, error) {
	if op != criteria.And && op != criteria.Or {
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
	n := &node{filter: f, op: op, negate: negate}
	for _, q := range queries {
		child, err := c.resolve(q)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
	}
	return n, nil
}

// where compiles top level filters, combined with AND, for the root alias.
func (c *compiler) where(filters []criteria.Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	group, err := c.resolveGroup(criteria.AndOf(filters...), criteria.And, false, filters)
	if err != nil {
		return "", err
	}
	return c.render(group, "t0", 0, "")
}

// render emits SQL for n where alias refers to the entity reached after
// depth hops. column overrides the leaf column expression when set.
func (c *compiler) render(n *node, alias string, depth int, column string) (string, error) {
	if n.leaf() {
		if len(n.path.Hops) > depth {
			return c.exists(n.path.Hops[depth], []*node{n}, alias, depth)
		}
		col := column
		if col == "" {
			col = alias + "." + n.path.Field.Column
		}
		return c.leaf(n, col)
	}

	if len(n.children) == 0 {
		if n.negate {
			return "1=0", nil
		}
		return "1=1", nil
	}

	var parts []string
	if n.op == criteria.And {
		// Group leaves by the association they traverse next.
		var order []string
		shared := make(map[string][]*node)
		for _, child := range n.children {
			if child.leaf() && len(child.path.Hops) > depth {
				key := child.path.Hops[depth].Field.Name
				if _, seen := shared[key]; !seen {
					order = append(order, key)
				}
				shared[key] = append(shared[key], child)
				continue
			}
			sql, err := c.render(child, alias, depth, column)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		for _, key := range order {
			group := shared[key]
			sql, err := c.exists(group[0].path.Hops[depth], group, alias, depth)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
	} else {
		for _, child := range n.children {
			sql, err := c.render(child, alias, depth, column)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
	}

	joined := "(" + strings.Join(parts, " "+string(n.op)+" ") + ")"
	if n.negate {
		return "NOT " + joined, nil
	}
	return joined, nil
}

// exists renders a correlated subquery for one association hop. The given
// nodes are combined with AND inside it.
func (c *compiler) exists(hop schema.Hop, nodes []*node, alias string, depth int) (string, error) {
	rel := hop.Field.Relation
	inner := &node{op: criteria.And, children: nodes}

	if rel.Kind == schema.ManyToMany {
		mapping := c.nextAlias()

		// Conditions on the referenced primary key only need the mapping table.
		if mappingOnly(nodes, depth, hop.To) {
			body, err := c.renderMapped(inner, mapping+"."+rel.MappingReference)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s AND %s)",
				rel.MappingTable, mapping, mapping, rel.MappingLocal, alias, rel.LocalColumn, body), nil
		}

		target := c.nextAlias()
		body, err := c.render(inner, target, depth+1, "")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s JOIN %s %s ON %s.%s = %s.%s WHERE %s.%s = %s.%s AND %s)",
			rel.MappingTable, mapping, hop.To.Table, target, target, rel.ReferenceColumn, mapping, rel.MappingReference,
			mapping, rel.MappingLocal, alias, rel.LocalColumn, body), nil
	}

	target := c.nextAlias()
	body, err := c.render(inner, target, depth+1, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s AND %s)",
		hop.To.Table, target, target, rel.ReferenceColumn, alias, rel.LocalColumn, body), nil
}

func (c *compiler) renderMapped(n *node, column string) (string, error) {
	parts := make([]string, 0, len(n.children))
	for _, child := range n.children {
		sql, err := c.leaf(child, column)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func mappingOnly(nodes []*node, depth int, target *schema.Definition) bool {
	pk, _ := target.PrimaryKey()
	for _, n := range nodes {
		if !n.leaf() || len(n.path.Hops) != depth+1 || n.path.Field.Name != pk.Name {
			return false
		}
	}
	return true
}

func (c *compiler) leaf(n *node, col string) (string, error) {
	field := n.path.Field

	switch f := n.filter.(type) {
	case criteria.Equals:
		if f.Value == nil {
			return col + " IS NULL", nil
		}
		c.args = append(c.args, bindValue(field, f.Value))
		return col + " = ?", nil

	case criteria.EqualsAny:
		if len(f.Values) == 0 {
			return "1=0", nil
		}
		placeholders := make([]string, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = "?"
			c.args = append(c.args, bindValue(field, v))
		}
		return col + " IN (" + strings.Join(placeholders, ", ") + ")", nil

	case criteria.Contains:
		c.args = append(c.args, "%"+f.Value+"%")
		return col + " LIKE ?", nil

	case criteria.Range:
		var parts []string
		bounds := []struct {
			op    string
			value any
		}{{">=", f.GTE}, {">", f.GT}, {"<=", f.LTE}, {"<", f.LT}}
		for _, b := range bounds {
			if b.value == nil {
				continue
			}
			c.args = append(c.args, bindValue(field, b.value))
			parts = append(parts, col+" "+b.op+" ?")
		}
		if len(parts) == 0 {
			return "1=1", nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	}

	return "", fmt.Errorf("unsupported filter %T", n.filter)
}

// bindValue converts filter values to their storage representation.
func bindValue(field schema.Field, v any) any {
	if field.Type == schema.TypeBool {
		switch b := v.(type) {
		case bool:
			if b {
				return 1
			}
			return 0
		case string:
			if b == "true" || b == "1" {
				return 1
			}
			return 0
		}
	}
	return v
}
