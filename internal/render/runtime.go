package render

import (
	"context"
	"fmt"
	"math"
	"reflect"
)

// Shape describes which form a Runtime's content has taken
type Shape int

const (
	// ShapeUnset means nothing has been set yet
	ShapeUnset Shape = iota

	// ShapeKeyed means the content is an *Object built by keyed writes
	ShapeKeyed

	// ShapeValue means the content was replaced as a whole
	ShapeValue
)

func (s Shape) String() string {
	switch s {
	case ShapeKeyed:
		return "keyed"
	case ShapeValue:
		return "whole-value"
	default:
		return "unset"
	}
}

// Continuation fills a scope by calling builder methods on the Runtime it
// receives, instead of returning a value.
type Continuation func(*Runtime) error

// ItemFunc builds one array entry from an input element
type ItemFunc func(item *Runtime, element any) error

// Runtime is the builder a template body manipulates. It owns a single content
// slot; nested slots get their own child Runtime.
type Runtime struct {
	env      *Environment
	executor *Executor
	ctx      context.Context
	depth    int

	shape  Shape
	object *Object
	value  any
}

// NewRuntime creates a standalone builder. A nil environment is replaced with
// an empty one. Partials cannot be rendered without an Executor; use
// Executor.NewRuntime for that.
func NewRuntime(env *Environment) *Runtime {
	if env == nil {
		env = NewEnvironment()
	}
	return &Runtime{
		env: env,
		ctx: context.Background(),
	}
}

// child creates a runtime for a nested slot sharing this runtime's bindings
func (r *Runtime) child() *Runtime {
	return &Runtime{
		env:      r.env,
		executor: r.executor,
		ctx:      r.ctx,
		depth:    r.depth,
	}
}

// Child returns a fresh builder for a nested slot. Passing it to Set or SetKey
// attaches its content.
func (r *Runtime) Child() *Runtime {
	return r.child()
}

// Environment returns the environment the runtime resolves names against
func (r *Runtime) Environment() *Environment {
	return r.env
}

// Context returns the context of the execution that owns the runtime
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// Depth returns the partial nesting depth of the runtime
func (r *Runtime) Depth() int {
	return r.depth
}

// Shape returns the current shape of the content
func (r *Runtime) Shape() Shape {
	return r.shape
}

// IsSet reports whether anything has been set
func (r *Runtime) IsSet() bool {
	return r.shape != ShapeUnset
}

// Content returns the accumulated content, or nil when unset
func (r *Runtime) Content() any {
	switch r.shape {
	case ShapeKeyed:
		return r.object
	case ShapeValue:
		return r.value
	default:
		return nil
	}
}

// Set replaces the whole content.
//
// A Continuation is invoked with this runtime so its own writes define the
// content. A *Runtime contributes its content. Anything else is stored as is.
func (r *Runtime) Set(value any) error {
	if fn, ok := asContinuation(value); ok {
		return fn(r)
	}

	if r.shape == ShapeKeyed {
		return &ContentShapeConflictError{Have: ShapeKeyed, Want: ShapeValue}
	}

	r.value = contentOf(value)
	r.shape = ShapeValue
	return nil
}

// SetKey assigns content[key], switching the content to keyed shape.
//
// A Continuation is invoked with a child runtime scoped to the key and the
// child's content is stored.
func (r *Runtime) SetKey(key string, value any) error {
	if r.shape == ShapeValue {
		return &ContentShapeConflictError{Have: ShapeValue, Want: ShapeKeyed, Key: key}
	}

	// A failed continuation leaves the receiver untouched
	resolved, err := r.resolve(value)
	if err != nil {
		return err
	}

	if err := r.ensureKeyed(key); err != nil {
		return err
	}

	r.object.Set(key, resolved)
	return nil
}

// Array builds a sequence from items. Each element gets its own child runtime
// passed to fn; without fn the element is used unchanged. Nil, false, zero,
// NaN, "" and empty sequences yield an empty sequence. Array never modifies the receiver's content.
func (r *Runtime) Array(items any, fn ItemFunc) ([]any, error) {
	elements, err := elementsOf(items)
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(elements))
	for i, element := range elements {
		if fn == nil {
			out = append(out, contentOf(element))
			continue
		}

		item := r.child()
		if err := fn(item, element); err != nil {
			return nil, fmt.Errorf("array item %d: %w", i, err)
		}
		out = append(out, item.Content())
	}

	return out, nil
}

// Extract copies the listed keys from source into the keyed content. Keys
// missing from source are skipped.
func (r *Runtime) Extract(source any, keys ...string) error {
	if err := r.ensureKeyed(""); err != nil {
		return err
	}

	for _, key := range keys {
		if value, ok := lookup(source, key); ok {
			r.object.Set(key, value)
		}
	}

	return nil
}

// Helper calls a registered helper and returns its result
func (r *Runtime) Helper(name string, args ...any) (any, error) {
	fn, ok := r.env.Helper(name)
	if !ok {
		return nil, &UnknownHelperError{Name: name}
	}

	result, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("helper %q: %w", name, err)
	}

	return result, nil
}

// Partial renders a registered partial with data as its context and returns
// the rendered content
func (r *Runtime) Partial(name string, data any) (any, error) {
	source, ok := r.env.Partial(name)
	if !ok {
		return nil, &UnknownPartialError{Name: name}
	}

	if r.executor == nil {
		return nil, fmt.Errorf("partial %q: %w", name, ErrNoEngine)
	}

	return r.executor.runPartial(r.ctx, name, source, data, r.depth+1)
}

// ensureKeyed switches unset content to keyed shape
func (r *Runtime) ensureKeyed(key string) error {
	switch r.shape {
	case ShapeKeyed:
		return nil
	case ShapeValue:
		return &ContentShapeConflictError{Have: ShapeValue, Want: ShapeKeyed, Key: key}
	}

	r.object = NewObject()
	r.shape = ShapeKeyed
	return nil
}

// resolve turns a value passed to SetKey into content
func (r *Runtime) resolve(value any) (any, error) {
	fn, ok := asContinuation(value)
	if !ok {
		return contentOf(value), nil
	}

	scope := r.child()
	if err := fn(scope); err != nil {
		return nil, err
	}
	return scope.Content(), nil
}

func asContinuation(value any) (Continuation, bool) {
	switch fn := value.(type) {
	case Continuation:
		return fn, fn != nil
	case func(*Runtime) error:
		return fn, fn != nil
	default:
		return nil, false
	}
}

// contentOf unwraps child runtimes passed as values
func contentOf(value any) any {
	if rt, ok := value.(*Runtime); ok && rt != nil {
		return rt.Content()
	}
	return value
}

// elementsOf lists the elements of a sequence value
func elementsOf(items any) ([]any, error) {
	switch v := items.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case bool:
		if !v {
			return nil, nil
		}
	case string:
		if v == "" {
			return nil, nil
		}
	}

	rv := reflect.ValueOf(items)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if rv.IsZero() {
			return nil, nil
		}
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f == 0 || math.IsNaN(f) {
			return nil, nil
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	case reflect.Pointer, reflect.Map, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
	}

	return nil, fmt.Errorf("cannot iterate over %T", items)
}

// lookup reads a key from a mapping value
func lookup(source any, key string) (any, bool) {
	switch v := source.(type) {
	case nil:
		return nil, false
	case *Object:
		if v == nil {
			return nil, false
		}
		return v.Get(key)
	case map[string]any:
		value, ok := v[key]
		return value, ok
	}

	rv := reflect.ValueOf(source)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
	if !value.IsValid() {
		return nil, false
	}
	return value.Interface(), true
}
