package render

import (
	"sort"
	"sync"
)

// Helper is a named transform callable from templates
type Helper func(args ...any) (any, error)

// Environment holds the helpers and partials shared by template executions
type Environment struct {
	helpers  map[string]Helper
	partials map[string]string
	mu       sync.RWMutex
}

// NewEnvironment creates an empty environment
func NewEnvironment() *Environment {
	return &Environment{
		helpers:  make(map[string]Helper),
		partials: make(map[string]string),
	}
}

// RegisterHelper registers a helper, replacing any previous one with that name
func (e *Environment) RegisterHelper(name string, fn Helper) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.helpers[name] = fn
}

// RegisterPartial registers a partial's template source, replacing any
// previous one with that name
func (e *Environment) RegisterPartial(name, source string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.partials[name] = source
}

// Helper looks up a helper by name
func (e *Environment) Helper(name string) (Helper, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.helpers[name]
	return fn, ok
}

// Partial looks up a partial's source by name
func (e *Environment) Partial(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	source, ok := e.partials[name]
	return source, ok
}

// HelperNames returns the registered helper names, sorted
func (e *Environment) HelperNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedKeys(e.helpers)
}

// PartialNames returns the registered partial names, sorted
func (e *Environment) PartialNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedKeys(e.partials)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
