package cel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

const (
	// DefaultBuilderName is the variable templates use for the builder
	DefaultBuilderName = "json"

	// DefaultContextName is the variable holding the whole context value
	DefaultContextName = "context"

	// interruptCheckFrequency is how many comprehension iterations run
	// between checks of the context passed to Execute
	interruptCheckFrequency = 100
)

// Option configures an Engine
type Option func(*Engine)

// WithBuilderName renames the builder variable
func WithBuilderName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.builderName = name
		}
	}
}

// WithContextName renames the variable holding the whole context
func WithContextName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.contextName = name
		}
	}
}

// WithLogger sets the engine's logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// compiledStatement is a statement ready to evaluate
type compiledStatement struct {
	statement
	program cel.Program
}

// Engine executes templates written as CEL statements
type Engine struct {
	base        *cel.Env
	builderName string
	contextName string
	logger      *zap.Logger

	envs  map[string]*cel.Env
	cache map[string][]compiledStatement
	mu    sync.RWMutex
}

var _ render.Engine = (*Engine)(nil)

// NewEngine creates a new CEL template engine
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		builderName: DefaultBuilderName,
		contextName: DefaultContextName,
		logger:      zap.NewNop(),
		envs:        make(map[string]*cel.Env),
		cache:       make(map[string][]compiledStatement),
	}
	for _, opt := range opts {
		opt(e)
	}

	if !isIdentifier(e.builderName) || !isIdentifier(e.contextName) || e.builderName == e.contextName {
		return nil, fmt.Errorf("invalid variable names %q and %q", e.builderName, e.contextName)
	}

	envOpts := []cel.EnvOption{
		cel.CustomTypeAdapter(adapter{}),
		cel.Variable(e.builderName, BuilderType),
		cel.Variable(e.contextName, cel.DynType),
		ext.Strings(),
		ext.Encoders(),
		ext.Math(),
		ext.Bindings(),
	}
	envOpts = append(envOpts, builderFunctions()...)

	base, err := cel.NewEnv(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	e.base = base

	return e, nil
}

// Execute runs source against builder. The context is bound as a whole and,
// when it is a mapping, each top-level key that is a valid identifier is bound
// as its own variable.
func (e *Engine) Execute(ctx context.Context, source string, builder *render.Runtime, data any) error {
	data = render.Plain(data)
	names := e.variableNames(data)

	statements, err := e.getStatements(source, names)
	if err != nil {
		return fmt.Errorf("failed to compile template: %w", err)
	}

	exec := &execution{}
	vars := map[string]any{
		e.builderName: builderVal{rt: builder, exec: exec},
		e.contextName: adapter{}.NativeToValue(data),
	}
	if fields, ok := data.(map[string]any); ok {
		for _, name := range names {
			vars[name] = adapter{}.NativeToValue(fields[name])
		}
	}

	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, _, err := stmt.program.ContextEval(ctx, vars)

		// Errors raised by builder calls keep their original type
		if exec.err != nil {
			return exec.err
		}
		if err != nil {
			// An interrupted comprehension reports why through ctx
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("statement %d (line %d): %w: %w", i+1, stmt.line, ctxErr, err)
			}
			return fmt.Errorf("statement %d (line %d): evaluation failed: %w", i+1, stmt.line, err)
		}
	}

	return nil
}

// Validate compiles a template without executing it. Names lists the context
// keys the template may reference directly.
func (e *Engine) Validate(source string, names ...string) error {
	_, err := e.compile(source, validNames(names, e.builderName, e.contextName))
	return err
}

// ClearCache clears compiled templates
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.envs = make(map[string]*cel.Env)
	e.cache = make(map[string][]compiledStatement)
}

// variableNames lists the context keys bound as variables
func (e *Engine) variableNames(data any) []string {
	fields, ok := data.(map[string]any)
	if !ok {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return validNames(names, e.builderName, e.contextName)
}

func validNames(names []string, builderName, contextName string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == builderName || name == contextName || !isIdentifier(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// getStatements gets compiled statements from cache or compiles them
func (e *Engine) getStatements(source string, names []string) ([]compiledStatement, error) {
	key := strings.Join(names, ",") + "\x00" + source

	// Check cache first (read lock)
	e.mu.RLock()
	if statements, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return statements, nil
	}
	e.mu.RUnlock()

	statements, err := e.compile(source, names)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[key] = statements
	e.mu.Unlock()

	e.logger.Debug("compiled template",
		zap.Int("statements", len(statements)),
		zap.Strings("variables", names),
	)

	return statements, nil
}

// compile parses and plans every statement of source
func (e *Engine) compile(source string, names []string) ([]compiledStatement, error) {
	env, err := e.envFor(names)
	if err != nil {
		return nil, err
	}

	statements, err := splitStatements(source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	compiled := make([]compiledStatement, 0, len(statements))
	for i, stmt := range statements {
		ast, issues := env.Compile(stmt.source)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("statement %d (line %d): parse error: %w", i+1, stmt.line, issues.Err())
		}

		program, err := env.Program(ast, cel.InterruptCheckFrequency(interruptCheckFrequency))
		if err != nil {
			return nil, fmt.Errorf("statement %d (line %d): program generation error: %w", i+1, stmt.line, err)
		}

		compiled = append(compiled, compiledStatement{statement: stmt, program: program})
	}

	return compiled, nil
}

// envFor returns the base environment extended with the given variables
func (e *Engine) envFor(names []string) (*cel.Env, error) {
	if len(names) == 0 {
		return e.base, nil
	}

	key := strings.Join(names, ",")

	e.mu.RLock()
	env, ok := e.envs[key]
	e.mu.RUnlock()
	if ok {
		return env, nil
	}

	vars := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		vars = append(vars, cel.Variable(name, cel.DynType))
	}

	env, err := e.base.Extend(vars...)
	if err != nil {
		return nil, fmt.Errorf("failed to declare context variables: %w", err)
	}

	e.mu.Lock()
	e.envs[key] = env
	e.mu.Unlock()

	return env, nil
}
