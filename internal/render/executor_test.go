package render

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// closureEngine runs Go functions registered under a source string
type closureEngine map[string]func(b *Runtime, data any) error

func (c closureEngine) Execute(_ context.Context, source string, builder *Runtime, data any) error {
	if source == "" {
		return nil
	}
	fn, ok := c[source]
	if !ok {
		return fmt.Errorf("unknown source %q", source)
	}
	return fn(builder, data)
}

func field(data any, key string) any {
	value, _ := lookup(data, key)
	return value
}

func setAuthorName(b *Runtime, data any) error {
	return b.SetKey("name", field(field(data, "author"), "name"))
}

func TestRun(t *testing.T) {
	engine := closureEngine{"set name": setAuthorName}
	executor := NewExecutor(nil, engine)

	data := map[string]any{"author": map[string]any{"name": "example"}}
	out, err := executor.Run(context.Background(), "set name", data)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if diff := cmp.Diff(`{"name":"example"}`, mustJSON(t, out)); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestRunEmptyTemplateReturnsUnset(t *testing.T) {
	executor := NewExecutor(nil, closureEngine{})
	out, err := executor.Run(context.Background(), "", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output, got %#v", out)
	}
}

func TestRunWithoutEngine(t *testing.T) {
	_, err := NewExecutor(nil, nil).Run(context.Background(), "x", nil)
	if !errors.Is(err, ErrNoEngine) {
		t.Fatalf("expected ErrNoEngine, got %v", err)
	}
}

func TestRunDiscardsContentOnError(t *testing.T) {
	boom := errors.New("boom")
	engine := closureEngine{"fail": func(b *Runtime, _ any) error {
		_ = b.SetKey("partial", true)
		return boom
	}}

	out, err := NewExecutor(nil, engine).Run(context.Background(), "fail", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected no output on error, got %#v", out)
	}
}

func TestRunLeavesErrorLoggingToCaller(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine := closureEngine{"fail": func(*Runtime, any) error { return errors.New("boom") }}

	executor := NewExecutor(nil, engine, WithLogger(zap.New(core)))
	if _, err := executor.Run(context.Background(), "fail", nil); err == nil {
		t.Fatal("expected an error")
	}
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
		t.Fatalf("expected no error-level entries, got %d", n)
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(nil, closureEngine{}).Run(ctx, "anything", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPartial(t *testing.T) {
	env := NewEnvironment()
	env.RegisterPartial("author", "set name")
	executor := NewExecutor(env, closureEngine{"set name": setAuthorName})

	rt := executor.NewRuntime(context.Background())
	out, err := rt.Partial("author", map[string]any{"author": map[string]any{"name": "example"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_ = rt.SetKey("author", out)

	if diff := cmp.Diff(`{"author":{"name":"example"}}`, mustJSON(t, rt.Content())); diff != "" {
		t.Fatalf("unexpected content (-want +got):\n%s", diff)
	}
}

func TestPartialInsideTemplate(t *testing.T) {
	env := NewEnvironment()
	env.RegisterPartial("item", "item")
	engine := closureEngine{
		"item": func(b *Runtime, data any) error {
			return b.SetKey("value", data)
		},
		"list": func(b *Runtime, data any) error {
			items, err := b.Array(data, func(item *Runtime, element any) error {
				out, err := item.Partial("item", element)
				if err != nil {
					return err
				}
				return item.Set(out)
			})
			if err != nil {
				return err
			}
			return b.SetKey("items", items)
		},
	}

	out, err := NewExecutor(env, engine).Run(context.Background(), "list", []any{1, 2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if diff := cmp.Diff(`{"items":[{"value":1},{"value":2}]}`, mustJSON(t, out)); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestUnknownPartialSurfacesFromRun(t *testing.T) {
	engine := closureEngine{"use": func(b *Runtime, _ any) error {
		_, err := b.Partial("missing", nil)
		return err
	}}

	_, err := NewExecutor(nil, engine).Run(context.Background(), "use", nil)
	var unknown *UnknownPartialError
	if !errors.As(err, &unknown) || unknown.Name != "missing" {
		t.Fatalf("expected UnknownPartialError, got %v", err)
	}
}

func TestRecursivePartialHitsDepthLimit(t *testing.T) {
	env := NewEnvironment()
	env.RegisterPartial("self", "recurse")

	depths := 0
	engine := closureEngine{"recurse": func(b *Runtime, data any) error {
		depths++
		out, err := b.Partial("self", data)
		if err != nil {
			return err
		}
		return b.Set(out)
	}}

	executor := NewExecutor(env, engine, WithMaxDepth(5))
	_, err := executor.Run(context.Background(), "recurse", nil)

	var limit *RecursionLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("expected RecursionLimitError, got %v", err)
	}
	if limit.Limit != 5 || limit.Name != "self" {
		t.Fatalf("unexpected limit error: %+v", limit)
	}
	if depths != 6 {
		t.Fatalf("expected 6 executions (root + 5 partials), got %d", depths)
	}
}

func TestChildRuntimesInheritDepth(t *testing.T) {
	env := NewEnvironment()
	env.RegisterPartial("depth", "depth")
	engine := closureEngine{"depth": func(b *Runtime, _ any) error {
		return b.SetKey("depth", Continuation(func(child *Runtime) error {
			return child.Set(child.Depth())
		}))
	}}

	rt := NewExecutor(env, engine).NewRuntime(context.Background())
	out, err := rt.Partial("depth", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if diff := cmp.Diff(`{"depth":1}`, mustJSON(t, out)); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}
