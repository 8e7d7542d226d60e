// Package schema describes entities declaratively: their fields, storage
// columns, flags and relations. Definitions are registered once at startup
// and are read-only afterwards, so a Registry may be shared between
// goroutines without locking.
package schema

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrUnknownField  = errors.New("unknown field")
)

// FieldType is the storage and search type of a field.
type FieldType string

const (
	TypeID          FieldType = "id"
	TypeString      FieldType = "string"
	TypeInt         FieldType = "int"
	TypeFloat       FieldType = "float"
	TypeBool        FieldType = "bool"
	TypeJSON        FieldType = "json"
	TypeDateTime    FieldType = "datetime"
	TypeFK          FieldType = "fk"
	TypeAssociation FieldType = "association"
)

// Flag marks write or identity constraints on a field.
type Flag uint8

const (
	PrimaryKey Flag = 1 << iota
	Required
)

// RelationKind is the cardinality of an association.
type RelationKind string

const (
	ManyToOne  RelationKind = "many-to-one"
	OneToMany  RelationKind = "one-to-many"
	ManyToMany RelationKind = "many-to-many"
	ParentOf   RelationKind = "parent"
	ChildrenOf RelationKind = "children"
)

// Relation describes how an association field joins to its reference entity.
//
// For ManyToOne and Parent, LocalColumn lives on this entity and
// ReferenceColumn on the target. For OneToMany and Children, LocalColumn is
// this entity's key and ReferenceColumn the foreign key on the target.
// ManyToMany goes through MappingTable.
type Relation struct {
	Kind             RelationKind
	Reference        string
	LocalColumn      string
	ReferenceColumn  string
	MappingTable     string
	MappingLocal     string
	MappingReference string
}

// ToMany reports whether the relation may match several rows.
func (r *Relation) ToMany() bool {
	return r.Kind == OneToMany || r.Kind == ManyToMany || r.Kind == ChildrenOf
}

// Field describes one entity property.
type Field struct {
	Name     string // property name, camelCase
	Column   string // storage column, snake_case; empty for associations
	Type     FieldType
	Flags    Flag
	Relation *Relation
}

// Is reports whether all given flags are set.
func (f Field) Is(flag Flag) bool {
	return f.Flags&flag == flag
}

// IsAssociation reports whether the field points at another entity.
func (f Field) IsAssociation() bool {
	return f.Relation != nil
}

// Definition describes one entity type.
type Definition struct {
	Entity string
	Table  string
	Parent string // owning entity, if any
	Fields []Field

	byName map[string]int
}

// Field looks up a field by property name.
func (d *Definition) Field(name string) (Field, bool) {
	if d.byName == nil {
		for _, f := range d.Fields {
			if f.Name == name {
				return f, true
			}
		}
		return Field{}, false
	}
	idx, ok := d.byName[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[idx], true
}

// PrimaryKey returns the primary key field.
func (d *Definition) PrimaryKey() (Field, bool) {
	for _, f := range d.Fields {
		if f.Is(PrimaryKey) {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the names of all required fields.
func (d *Definition) RequiredFields() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Is(Required) {
			names = append(names, f.Name)
		}
	}
	return names
}

func (d *Definition) index() error {
	d.byName = make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		if _, dup := d.byName[f.Name]; dup {
			return fmt.Errorf("entity %s: duplicate field %s", d.Entity, f.Name)
		}
		if f.Relation == nil && f.Column == "" {
			return fmt.Errorf("entity %s: field %s has no column", d.Entity, f.Name)
		}
		d.byName[f.Name] = i
	}
	if _, ok := d.PrimaryKey(); !ok {
		return fmt.Errorf("entity %s: no primary key", d.Entity)
	}
	return nil
}
