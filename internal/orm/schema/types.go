// Package schema provides the storage-level description of models: table
// columns with their schema kinds, relationships between resources, and
// the static table mapping schema kinds to output property kinds.
package schema

import (
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// Column is a physical table column and its declared schema kind
// (e.g. "integer", "string", "datetime")
type Column struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Relationship represents a relationship between resources
type Relationship struct {
	Type           orm.RelationType
	TargetResource string
	FieldName      string
	Nullable       bool

	// Foreign key configuration
	ForeignKey string

	// For has_many
	OrderBy string

	// For has_many_through and belongs_to_many
	JoinTable      string
	AssociationKey string
}

// ResourceSchema represents the storage schema of a model
type ResourceSchema struct {
	Name          string
	TableName     string
	Columns       []Column
	Relationships map[string]*Relationship
}

// NewResourceSchema creates a new ResourceSchema with the conventional
// table name
func NewResourceSchema(name string) *ResourceSchema {
	return &ResourceSchema{
		Name:          name,
		TableName:     orm.DefaultTableName(name),
		Relationships: make(map[string]*Relationship),
	}
}

// Column returns the column with the given name
func (r *ResourceSchema) Column(name string) (Column, bool) {
	for _, col := range r.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in table order
func (r *ResourceSchema) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, col := range r.Columns {
		names[i] = col.Name
	}
	return names
}

// HasColumn returns true if the resource has a column with the given name
func (r *ResourceSchema) HasColumn(name string) bool {
	_, ok := r.Column(name)
	return ok
}

// HasRelationship returns true if the resource has a relationship with the given name
func (r *ResourceSchema) HasRelationship(name string) bool {
	_, exists := r.Relationships[name]
	return exists
}
