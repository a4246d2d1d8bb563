package introspect

import (
	"fmt"
	"sort"
	"sync"
	"unicode"

	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// FindModels lists the exported struct types of index that declare a
// TableName method themselves, sorted by package and name
func FindModels(index *SourceIndex) []*TypeSource {
	var models []*TypeSource
	for _, ts := range index.Types() {
		if !ts.IsStruct || !isExported(ts.Name) {
			continue
		}
		if _, ok := ts.Method("TableName"); ok {
			models = append(models, ts)
		}
	}
	return models
}

func isExported(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// ModelRegistry maps model names to prototype instances
type ModelRegistry struct {
	models map[string]orm.Model
	mu     sync.RWMutex
}

// NewModelRegistry creates a registry holding models
func NewModelRegistry(models ...orm.Model) *ModelRegistry {
	r := &ModelRegistry{models: make(map[string]orm.Model)}
	for _, m := range models {
		r.Register(m)
	}
	return r
}

// Register adds a model under its short type name
func (r *ModelRegistry) Register(model orm.Model) {
	r.RegisterAs(orm.ShortName(model), model)
}

// RegisterAs adds a model under an explicit name
func (r *ModelRegistry) RegisterAs(name string, model orm.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = model
}

// Get returns the model registered under name
func (r *ModelRegistry) Get(name string) (orm.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, ok := r.models[name]
	if !ok || model == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return model, nil
}

// Names returns the sorted registered names
func (r *ModelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
