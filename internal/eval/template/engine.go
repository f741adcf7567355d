package template

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aymerick/raymond"

	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

// Option configures an Engine
type Option func(*Engine)

// WithHelper adds a Handlebars helper. fn follows raymond's helper rules: any
// function returning a single value.
func WithHelper(name string, fn interface{}) Option {
	return func(e *Engine) {
		e.helpers[name] = fn
	}
}

// WithEscaping keeps raymond's HTML escaping of {{value}} output. Without it
// every {{value}} behaves like {{&value}}, since the output usually ends up
// inside a JSON string. Literal template text is never altered.
func WithEscaping() Option {
	return func(e *Engine) {
		e.escape = true
	}
}

// Engine renders Handlebars strings used by the format helper
type Engine struct {
	helpers map[string]interface{}
	escape  bool

	cache map[string]*raymond.Template
	mu    sync.RWMutex
}

// NewEngine creates a template engine with the text helpers installed
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		helpers: textHelpers(),
		cache:   make(map[string]*raymond.Template),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render renders source with data. Ordered objects produced by the builder are
// converted to plain maps first.
func (e *Engine) Render(source string, data interface{}) (string, error) {
	tmpl, err := e.template(source)
	if err != nil {
		return "", fmt.Errorf("failed to compile template: %w", err)
	}

	out, err := tmpl.Exec(render.Plain(data))
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return out, nil
}

// template returns the compiled form of source, compiling it on first use
func (e *Engine) template(source string) (*raymond.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.cache[source]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	parsed := source
	if !e.escape {
		parsed = unescaped(source)
	}

	tmpl, err := raymond.Parse(parsed)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	// raymond's global registry panics on duplicates, so helpers stay per template
	tmpl.RegisterHelpers(e.helpers)

	e.mu.Lock()
	e.cache[source] = tmpl
	e.mu.Unlock()

	return tmpl, nil
}

// ValidateTemplate checks that source parses
func (e *Engine) ValidateTemplate(source string) error {
	_, err := raymond.Parse(source)
	return err
}

// ClearCache drops compiled templates
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*raymond.Template)
}

// unescaped rewrites plain {{expr}} mustaches into {{&expr}}. Blocks, comments,
// partials, else and already unescaped forms are left alone.
func unescaped(source string) string {
	var b strings.Builder
	b.Grow(len(source) + 8)

	for i := 0; i < len(source); {
		j := strings.Index(source[i:], "{{")
		if j < 0 {
			b.WriteString(source[i:])
			break
		}
		j += i
		b.WriteString(source[i : j+2])
		i = j + 2

		if j > 0 && (source[j-1] == '\\' || source[j-1] == '{') {
			continue
		}
		if i < len(source) && source[i] == '~' {
			b.WriteByte('~')
			i++
		}

		rest := strings.TrimLeft(source[i:], " \t\r\n")
		if rest == "" || strings.ContainsRune("{!#/^>&*", rune(rest[0])) || isElse(rest) {
			continue
		}
		b.WriteByte('&')
	}

	return b.String()
}

func isElse(s string) bool {
	if !strings.HasPrefix(s, "else") {
		return false
	}
	if len(s) == 4 {
		return true
	}
	c := s[4]
	return !(c == '_' || c == '-' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z')
}

func textHelpers() map[string]interface{} {
	return map[string]interface{}{
		"uppercase": strings.ToUpper,
		"lowercase": strings.ToLower,
		"trim":      strings.TrimSpace,
		"default": func(value, fallback interface{}) interface{} {
			if value == nil || value == "" {
				return fallback
			}
			return value
		},
		"join": func(items []interface{}, sep string) string {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = fmt.Sprint(item)
			}
			return strings.Join(parts, sep)
		},
	}
}
