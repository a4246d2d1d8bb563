package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the resource schemas known to the application
type Registry struct {
	schemas map[string]*ResourceSchema
	tables  map[string]string
	mu      sync.RWMutex
}

// NewRegistry creates a new schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*ResourceSchema),
		tables:  make(map[string]string),
	}
}

// Register registers a new resource schema
func (r *Registry) Register(schema *ResourceSchema) error {
	if schema == nil || schema.Name == "" {
		return fmt.Errorf("resource schema must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[schema.Name]; exists {
		return fmt.Errorf("resource %s is already registered", schema.Name)
	}
	if owner, exists := r.tables[schema.TableName]; exists {
		return fmt.Errorf("table %s is already registered by %s", schema.TableName, owner)
	}

	seen := make(map[string]bool, len(schema.Columns))
	for _, col := range schema.Columns {
		if seen[col.Name] {
			return fmt.Errorf("resource %s declares column %s twice", schema.Name, col.Name)
		}
		seen[col.Name] = true
	}

	r.schemas[schema.Name] = schema
	r.tables[schema.TableName] = schema.Name
	return nil
}

// Get retrieves a resource schema by name
func (r *Registry) Get(name string) (*ResourceSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.schemas[name]
	return schema, exists
}

// GetByTable retrieves a resource schema by its table name
func (r *Registry) GetByTable(table string) (*ResourceSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, exists := r.tables[table]
	if !exists {
		return nil, false
	}
	return r.schemas[name], true
}

// All returns a copy of all registered schemas
func (r *Registry) All() map[string]*ResourceSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ResourceSchema, len(r.schemas))
	for k, v := range r.schemas {
		result[k] = v
	}
	return result
}

// List returns the sorted names of all registered resources
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered schemas
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.schemas)
}

// GetRelationships returns all relationships for a resource
func (r *Registry) GetRelationships(resourceName string) (map[string]*Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.schemas[resourceName]
	if !exists {
		return nil, fmt.Errorf("resource %s not found", resourceName)
	}

	return schema.Relationships, nil
}

// Clear removes all registered schemas (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas = make(map[string]*ResourceSchema)
	r.tables = make(map[string]string)
}
