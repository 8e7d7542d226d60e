package schema

import (
	"fmt"
	"strings"
)

// Registry holds all entity definitions of the process.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry validates and indexes the given definitions.
// Association references are checked once all definitions are known.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.Entity]; dup {
			return nil, fmt.Errorf("entity %s registered twice", d.Entity)
		}
		if err := d.index(); err != nil {
			return nil, err
		}
		r.defs[d.Entity] = d
	}

	for _, d := range r.defs {
		for _, f := range d.Fields {
			if f.Relation == nil {
				continue
			}
			if _, ok := r.defs[f.Relation.Reference]; !ok {
				return nil, fmt.Errorf("entity %s: field %s references unknown entity %s", d.Entity, f.Name, f.Relation.Reference)
			}
		}
	}

	return r, nil
}

// Get returns the definition of an entity.
func (r *Registry) Get(entity string) (*Definition, error) {
	d, ok := r.defs[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return d, nil
}

// MustGet is Get for entities known at compile time.
func (r *Registry) MustGet(entity string) *Definition {
	d, err := r.Get(entity)
	if err != nil {
		panic(err)
	}
	return d
}

// Entities returns the registered entity names.
func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}

// Hop is one association traversal of a resolved path.
type Hop struct {
	From  *Definition
	Field Field
	To    *Definition
}

// Path is a property path resolved against the registry.
type Path struct {
	Raw   string
	Hops  []Hop
	Field Field
	Owner *Definition // definition that holds Field
}

// ToManyPrefix returns the hops up to and including the first to-many hop,
// and whether the path has one at all.
func (p *Path) ToManyPrefix() ([]Hop, bool) {
	for i, h := range p.Hops {
		if h.Field.Relation.ToMany() {
			return p.Hops[:i+1], true
		}
	}
	return nil, false
}

// Resolve resolves a dotted property path such as
// "product.visibilities.salesChannelId" starting at entity. A leading
// segment equal to the entity name is optional. A path ending in an
// association resolves to the primary key of the referenced entity.
func (r *Registry) Resolve(entity, path string) (*Path, error) {
	def, err := r.Get(entity)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(path, ".")
	if len(parts) > 1 && parts[0] == entity {
		parts = parts[1:]
	}

	resolved := &Path{Raw: path}
	current := def
	for i, part := range parts {
		f, ok := current.Field(part)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s (path %q)", ErrUnknownField, current.Entity, part, path)
		}

		last := i == len(parts)-1
		if !f.IsAssociation() {
			if !last {
				return nil, fmt.Errorf("%w: %s.%s is not an association (path %q)", ErrUnknownField, current.Entity, part, path)
			}
			resolved.Field = f
			resolved.Owner = current
			return resolved, nil
		}

		next := r.defs[f.Relation.Reference]
		resolved.Hops = append(resolved.Hops, Hop{From: current, Field: f, To: next})
		current = next

		if last {
			pk, _ := current.PrimaryKey()
			resolved.Field = pk
			resolved.Owner = current
			return resolved, nil
		}
	}

	return nil, fmt.Errorf("%w: empty path", ErrUnknownField)
}
