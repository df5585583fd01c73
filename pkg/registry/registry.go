// Package registry provides a central schema registry for table metadata.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/marshallshelly/conduit/pkg/schema"
)

// Registry is a thread-safe registry for table metadata.
type Registry struct {
	mu     sync.RWMutex
	parser *schema.Parser
	tables map[reflect.Type]*schema.TableMetadata
	names  map[string]*schema.TableMetadata
}

// NewRegistry creates a new Registry instance.
func NewRegistry() *Registry {
	return &Registry{
		parser: schema.NewParser(),
		tables: make(map[reflect.Type]*schema.TableMetadata),
		names:  make(map[string]*schema.TableMetadata),
	}
}

// Register registers model types and extracts their metadata. Registering
// a type twice is a no-op.
func (r *Registry) Register(models ...any) error {
	for _, model := range models {
		if _, err := r.register(reflect.TypeOf(model)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) register(modelType reflect.Type) (*schema.TableMetadata, error) {
	if modelType == nil {
		return nil, fmt.Errorf("model must be a struct, got nil")
	}
	modelType = indirect(modelType)
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if table, ok := r.tables[modelType]; ok {
		return table, nil
	}

	table, err := r.parser.Parse(modelType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", modelType.Name(), err)
	}
	if other, ok := r.names[table.Name]; ok && other.GoType != modelType {
		return nil, fmt.Errorf("table %s already registered by %s", table.Name, other.GoType)
	}

	r.tables[modelType] = table
	r.names[table.Name] = table
	return table, nil
}

// Get retrieves TableMetadata by Go type.
func (r *Registry) Get(modelType reflect.Type) (*schema.TableMetadata, error) {
	modelType = indirect(modelType)

	r.mu.RLock()
	table, ok := r.tables[modelType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model type %s not registered", modelType.Name())
	}
	return table, nil
}

// GetByName retrieves TableMetadata by table name.
func (r *Registry) GetByName(tableName string) (*schema.TableMetadata, error) {
	r.mu.RLock()
	table, ok := r.names[tableName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("table %s not registered", tableName)
	}
	return table, nil
}

// GetOrRegister retrieves TableMetadata or registers it if not found.
func (r *Registry) GetOrRegister(model any) (*schema.TableMetadata, error) {
	return r.register(reflect.TypeOf(model))
}

// Has checks if a model type is registered.
func (r *Registry) Has(modelType reflect.Type) bool {
	r.mu.RLock()
	_, ok := r.tables[indirect(modelType)]
	r.mu.RUnlock()
	return ok
}

// HasTable checks if a table name is registered.
func (r *Registry) HasTable(tableName string) bool {
	r.mu.RLock()
	_, ok := r.names[tableName]
	r.mu.RUnlock()
	return ok
}

// All returns all registered tables, sorted by name.
func (r *Registry) All() []*schema.TableMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tables := make([]*schema.TableMetadata, 0, len(r.names))
	for _, table := range r.names {
		tables = append(tables, table)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables
}

// AllNames returns all registered table names, sorted.
func (r *Registry) AllNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Graph builds the foreign-key dependency graph of every registered table.
func (r *Registry) Graph() (*schema.Graph, error) {
	return schema.NewGraph(r.All())
}

// Clear removes all registered models.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tables = make(map[reflect.Type]*schema.TableMetadata)
	r.names = make(map[string]*schema.TableMetadata)
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
