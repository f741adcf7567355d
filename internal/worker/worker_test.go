package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-jsonrender/internal/config"
	"github.com/aescanero/dago-node-jsonrender/internal/eval/cel"
	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

// nameEngine sets "name" from the context's name field
var nameEngine = render.EngineFunc(func(ctx context.Context, source string, b *render.Runtime, data any) error {
	switch source {
	case "name":
		fields, _ := data.(map[string]interface{})
		return b.SetKey("name", fields["name"])
	case "slow":
		<-ctx.Done()
		return ctx.Err()
	default:
		return fmt.Errorf("unknown source %q", source)
	}
})

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	env := render.NewEnvironment()
	env.RegisterPartial("named", "name")

	cfg := &config.Config{WorkerID: "test", Render: config.Render{Timeout: 50 * time.Millisecond}}
	return NewWorker(cfg, nil, render.NewExecutor(env, nameEngine), zap.NewNop())
}

func TestParseRenderRequest(t *testing.T) {
	request, err := parseRenderRequest(map[string]interface{}{
		"data": `{"request_id":"42","template":"name","context":{"name":"example"}}`,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if request.RequestID != "42" || request.Template != "name" {
		t.Fatalf("unexpected request: %+v", request)
	}
}

func TestParseRenderRequestAssignsID(t *testing.T) {
	request, err := parseRenderRequest(map[string]interface{}{
		"data": `{"template_name":"named"}`,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if request.RequestID == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestParseRenderRequestErrors(t *testing.T) {
	for _, values := range []map[string]interface{}{
		{},
		{"data": 42},
		{"data": "{not json"},
		{"data": `{"request_id":"1"}`},
	} {
		if _, err := parseRenderRequest(values); err == nil {
			t.Fatalf("expected an error for %v", values)
		}
	}
}

func TestRender(t *testing.T) {
	w := newTestWorker(t)
	data := map[string]interface{}{"name": "example"}

	for _, request := range []*RenderRequest{
		{Template: "name", Context: data},
		{TemplateName: "named", Context: data},
	} {
		out, err := w.Render(context.Background(), request)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		encoded, _ := json.Marshal(out)
		if string(encoded) != `{"name":"example"}` {
			t.Fatalf("unexpected output %s", encoded)
		}
	}
}

func TestRenderUnknownTemplateName(t *testing.T) {
	_, err := newTestWorker(t).Render(context.Background(), &RenderRequest{TemplateName: "missing"})
	if kind := errorKind(err); kind != "unknown_partial" {
		t.Fatalf("expected unknown_partial, got %s (%v)", kind, err)
	}
}

func TestRenderTimeout(t *testing.T) {
	_, err := newTestWorker(t).Render(context.Background(), &RenderRequest{Template: "slow"})
	if kind := errorKind(err); kind != "timeout" {
		t.Fatalf("expected timeout, got %s (%v)", kind, err)
	}
}

func TestRenderTimeoutInsideTemplate(t *testing.T) {
	engine, err := cel.NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	cfg := &config.Config{WorkerID: "test", Render: config.Render{Timeout: 50 * time.Millisecond}}
	w := NewWorker(cfg, nil, render.NewExecutor(render.NewEnvironment(), engine), zap.NewNop())

	items := make([]interface{}, 3000)
	for i := range items {
		items[i] = i
	}

	_, err = w.Render(context.Background(), &RenderRequest{
		Template: "json.set('n', items.map(i, items.map(j, j)).size())",
		Context:  map[string]interface{}{"items": items},
	})
	if kind := errorKind(err); kind != "timeout" {
		t.Fatalf("expected timeout, got %s (%v)", kind, err)
	}
}

func TestErrorKind(t *testing.T) {
	tests := map[string]error{
		"unknown_helper":         fmt.Errorf("wrapped: %w", &render.UnknownHelperError{Name: "x"}),
		"unknown_partial":        &render.UnknownPartialError{Name: "x"},
		"recursion_limit":        &render.RecursionLimitError{Name: "x", Limit: 1},
		"content_shape_conflict": &render.ContentShapeConflictError{Have: render.ShapeKeyed, Want: render.ShapeValue},
		"template_error":         errors.New("boom"),
	}
	for want, err := range tests {
		if got := errorKind(err); got != want {
			t.Fatalf("errorKind(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestHealthReportsUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	hs := NewHealthServer(0, client, render.NewEnvironment(), zap.NewNop())

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		hs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", path, rec.Code)
		}
	}
}

func TestHealthWithPassingChecks(t *testing.T) {
	env := render.NewEnvironment()
	env.RegisterPartial("item", "json.set(context)")
	env.RegisterHelper("noop", func(args ...any) (any, error) { return nil, nil })

	hs := &HealthServer{env: env, checks: map[string]Check{}, logger: zap.NewNop()}
	hs.AddCheck("stub", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	hs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var response HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "healthy" || response.Checks["stub"] != "healthy" {
		t.Fatalf("unexpected response: %+v", response)
	}
	if response.Helpers != 1 || response.Partials != 1 {
		t.Fatalf("expected registry counts 1/1, got %d/%d", response.Helpers, response.Partials)
	}
}

func TestHealthRegistry(t *testing.T) {
	env := render.NewEnvironment()
	env.RegisterPartial("b", "")
	env.RegisterPartial("a", "")

	hs := &HealthServer{env: env, checks: map[string]Check{}, logger: zap.NewNop()}

	rec := httptest.NewRecorder()
	hs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registry", nil))

	var response RegistryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Helpers) != 0 || len(response.Partials) != 2 || response.Partials[0] != "a" {
		t.Fatalf("unexpected registry: %+v", response)
	}
}
