// Package registry holds the process catalog of declared schemas and the
// migrations between their versions.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tordrt/schemasync/internal/migration"
	"github.com/tordrt/schemasync/internal/schema"
)

var (
	// ErrAlreadyRegistered indicates a second registration for the same key
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrSealed indicates a registration after Seal
	ErrSealed = errors.New("registry is sealed")
)

type versionPair struct {
	from, to int
}

// Registry is the catalog of schemas by name and migrations by (from, to).
// It is populated once by the composition root and read-only afterwards.
type Registry struct {
	mu         sync.RWMutex
	schemas    map[string]*schema.SchemaSpec
	migrations map[versionPair]*migration.Spec
	sealed     bool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		schemas:    make(map[string]*schema.SchemaSpec),
		migrations: make(map[versionPair]*migration.Spec),
	}
}

// DefineSchema builds a schema via fn and registers it under name
func (r *Registry) DefineSchema(name string, version int, fn func(s *schema.SchemaBuilder)) (*schema.SchemaSpec, error) {
	spec, err := schema.NewSchema(name, version, fn)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil, fmt.Errorf("define schema %s: %w", name, ErrSealed)
	}
	if _, exists := r.schemas[name]; exists {
		return nil, fmt.Errorf("schema %s: %w", name, ErrAlreadyRegistered)
	}
	r.schemas[name] = spec
	return spec, nil
}

// AddMigration builds a migration via fn and registers it under (from, to)
func (r *Registry) AddMigration(from, to int, fn func(b *migration.Builder)) (*migration.Spec, error) {
	m, err := migration.New(from, to, fn)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil, fmt.Errorf("add migration %d->%d: %w", from, to, ErrSealed)
	}
	key := versionPair{from: from, to: to}
	if _, exists := r.migrations[key]; exists {
		return nil, fmt.Errorf("migration %d->%d: %w", from, to, ErrAlreadyRegistered)
	}
	r.migrations[key] = m
	return m, nil
}

// Seal ends the population phase
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Schema returns the schema registered under name
func (r *Registry) Schema(name string) (*schema.SchemaSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Migration returns the migration registered for (from, to)
func (r *Registry) Migration(from, to int) (*migration.Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.migrations[versionPair{from: from, to: to}]
	return m, ok
}

// SchemaNames returns the registered schema names, sorted
func (r *Registry) SchemaNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Migrations returns every registered migration ordered by (from, to)
func (r *Registry) Migrations() []*migration.Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*migration.Spec, 0, len(r.migrations))
	for _, m := range r.migrations {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].From != list[j].From {
			return list[i].From < list[j].From
		}
		return list[i].To < list[j].To
	})
	return list
}

// MigrationPath chains registered migrations from one version to another.
// At each step the largest jump that does not overshoot is taken. It
// returns false when no chain reaches to exactly.
func (r *Registry) MigrationPath(from, to int) ([]*migration.Spec, bool) {
	if from == to {
		return nil, true
	}
	if to < from {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// outgoing steps per version, largest target first
	steps := make(map[int][]*migration.Spec)
	for key, m := range r.migrations {
		if key.from >= from && key.to <= to {
			steps[key.from] = append(steps[key.from], m)
		}
	}
	for _, list := range steps {
		sort.Slice(list, func(i, j int) bool { return list[i].To > list[j].To })
	}

	dead := make(map[int]bool)
	var walk func(v int) ([]*migration.Spec, bool)
	walk = func(v int) ([]*migration.Spec, bool) {
		if v == to {
			return nil, true
		}
		if dead[v] {
			return nil, false
		}
		for _, m := range steps[v] {
			if rest, ok := walk(m.To); ok {
				return append([]*migration.Spec{m}, rest...), true
			}
		}
		dead[v] = true
		return nil, false
	}
	return walk(from)
}
