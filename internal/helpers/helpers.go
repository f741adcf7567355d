// Package helpers provides the built-in helpers registered into every
// environment.
//
//	uppercase(s)             "JOHN"
//	lowercase(s)             "user@example.com"
//	trim(s)                  strips surrounding whitespace
//	default(value, fallback) fallback when value is null or ""
//	eq(a, b) / ne(a, b)      deep (in)equality, numbers compared by value
//	gt(a, b) / lt(a, b)      numeric comparison
//	contains(s, substr)      substring test
//	join(list, sep)          "a, b, c"
//	len(value)               length of a string, list or map
//	format(tmpl, data)       renders a Handlebars string against data
package helpers

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aescanero/dago-node-jsonrender/internal/eval/template"
	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

// Register installs the built-in helpers into env. The engine renders the
// format helper's Handlebars strings.
func Register(env *render.Environment, engine *template.Engine) {
	env.RegisterHelper("uppercase", stringFunc("uppercase", strings.ToUpper))
	env.RegisterHelper("lowercase", stringFunc("lowercase", strings.ToLower))
	env.RegisterHelper("trim", stringFunc("trim", strings.TrimSpace))
	env.RegisterHelper("default", defaultValue)
	env.RegisterHelper("eq", func(args ...any) (any, error) {
		if err := arity("eq", args, 2); err != nil {
			return nil, err
		}
		return equal(args[0], args[1]), nil
	})
	env.RegisterHelper("ne", func(args ...any) (any, error) {
		if err := arity("ne", args, 2); err != nil {
			return nil, err
		}
		return !equal(args[0], args[1]), nil
	})
	env.RegisterHelper("gt", compare("gt", func(a, b float64) bool { return a > b }))
	env.RegisterHelper("lt", compare("lt", func(a, b float64) bool { return a < b }))
	env.RegisterHelper("contains", contains)
	env.RegisterHelper("join", join)
	env.RegisterHelper("len", length)

	if engine != nil {
		env.RegisterHelper("format", func(args ...any) (any, error) {
			if err := arity("format", args, 2); err != nil {
				return nil, err
			}
			tmpl, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("format: template must be a string, got %T", args[0])
			}
			return engine.Render(tmpl, args[1])
		})
	}
}

func arity(name string, args []any, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s: expected %d arguments, got %d", name, want, len(args))
	}
	return nil
}

func stringFunc(name string, fn func(string) string) render.Helper {
	return func(args ...any) (any, error) {
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected a string, got %T", name, args[0])
		}
		return fn(s), nil
	}
}

func defaultValue(args ...any) (any, error) {
	if err := arity("default", args, 2); err != nil {
		return nil, err
	}
	if args[0] == nil || args[0] == "" {
		return args[1], nil
	}
	return args[0], nil
}

func compare(name string, fn func(a, b float64) bool) render.Helper {
	return func(args ...any) (any, error) {
		if err := arity(name, args, 2); err != nil {
			return nil, err
		}
		a, ok := toFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: expected a number, got %T", name, args[0])
		}
		b, ok := toFloat(args[1])
		if !ok {
			return nil, fmt.Errorf("%s: expected a number, got %T", name, args[1])
		}
		return fn(a, b), nil
	}
}

func contains(args ...any) (any, error) {
	if err := arity("contains", args, 2); err != nil {
		return nil, err
	}
	s, ok1 := args[0].(string)
	substr, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("contains: expected strings, got %T and %T", args[0], args[1])
	}
	return strings.Contains(s, substr), nil
}

func join(args ...any) (any, error) {
	if err := arity("join", args, 2); err != nil {
		return nil, err
	}
	sep, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("join: separator must be a string, got %T", args[1])
	}

	rv := reflect.ValueOf(args[0])
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("join: expected a list, got %T", args[0])
	}

	strs := make([]string, rv.Len())
	for i := range strs {
		strs[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return strings.Join(strs, sep), nil
}

func length(args ...any) (any, error) {
	if err := arity("len", args, 1); err != nil {
		return nil, err
	}

	switch v := args[0].(type) {
	case nil:
		return 0, nil
	case string:
		return len([]rune(v)), nil
	case *render.Object:
		return v.Len(), nil
	}

	rv := reflect.ValueOf(args[0])
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return nil, fmt.Errorf("len: unsupported type %T", args[0])
}

// equal compares two values, treating numbers of different types as equal
// when their values match
func equal(a, b any) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(render.Plain(a), render.Plain(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
