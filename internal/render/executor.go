package render

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxDepth bounds nested partial rendering
const DefaultMaxDepth = 32

// Engine executes a template source against a builder. The data value is the
// context visible to the template body.
type Engine interface {
	Execute(ctx context.Context, source string, builder *Runtime, data any) error
}

// EngineFunc adapts a function to the Engine interface
type EngineFunc func(ctx context.Context, source string, builder *Runtime, data any) error

// Execute calls f
func (f EngineFunc) Execute(ctx context.Context, source string, builder *Runtime, data any) error {
	return f(ctx, source, builder, data)
}

// Option configures an Executor
type Option func(*Executor)

// WithMaxDepth sets how many partials may be nested before rendering fails
func WithMaxDepth(depth int) Option {
	return func(e *Executor) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithLogger sets the executor's logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Executor runs templates against fresh builders bound to an environment
type Executor struct {
	env      *Environment
	engine   Engine
	maxDepth int
	logger   *zap.Logger
}

// NewExecutor creates a new executor. A nil environment is replaced with an
// empty one.
func NewExecutor(env *Environment, engine Engine, opts ...Option) *Executor {
	if env == nil {
		env = NewEnvironment()
	}

	e := &Executor{
		env:      env,
		engine:   engine,
		maxDepth: DefaultMaxDepth,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Environment returns the executor's environment
func (e *Executor) Environment() *Environment {
	return e.env
}

// MaxDepth returns the partial nesting limit
func (e *Executor) MaxDepth() int {
	return e.maxDepth
}

// NewRuntime creates a root builder whose partials render through this
// executor
func (e *Executor) NewRuntime(ctx context.Context) *Runtime {
	return e.newRuntime(ctx, 0)
}

func (e *Executor) newRuntime(ctx context.Context, depth int) *Runtime {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Runtime{
		env:      e.env,
		executor: e,
		ctx:      ctx,
		depth:    depth,
	}
}

// Run executes source once with data as its context and returns the final
// content. A template that never sets anything yields nil. On error no
// content is returned.
func (e *Executor) Run(ctx context.Context, source string, data any) (any, error) {
	content, err := e.run(ctx, source, data, 0)
	if err != nil {
		return nil, err
	}
	return content, nil
}

// runPartial renders a named partial at the given depth
func (e *Executor) runPartial(ctx context.Context, name, source string, data any, depth int) (any, error) {
	if depth > e.maxDepth {
		return nil, &RecursionLimitError{Name: name, Limit: e.maxDepth}
	}

	e.logger.Debug("rendering partial",
		zap.String("partial", name),
		zap.Int("depth", depth),
	)

	content, err := e.run(ctx, source, data, depth)
	if err != nil {
		return nil, fmt.Errorf("partial %q: %w", name, err)
	}
	return content, nil
}

func (e *Executor) run(ctx context.Context, source string, data any, depth int) (any, error) {
	if e.engine == nil {
		return nil, ErrNoEngine
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	builder := e.newRuntime(ctx, depth)
	if err := e.engine.Execute(ctx, source, builder, data); err != nil {
		return nil, err
	}

	return builder.Content(), nil
}
