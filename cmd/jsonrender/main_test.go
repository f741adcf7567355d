package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestRunRenderJSONContext(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	err := runRender(context.Background(), renderParams{
		stdout:      &out,
		template:    writeFile(t, dir, "user.cel", "json.set('name', json.helper('uppercase', user.name))"),
		context:     writeFile(t, dir, "user.json", `{"user": {"name": "example"}}`),
		maxDepth:    render.DefaultMaxDepth,
		builderName: "json",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if diff := cmp.Diff("{\"name\":\"EXAMPLE\"}\n", out.String()); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestRunRenderYAMLContextWithPartials(t *testing.T) {
	dir := t.TempDir()
	partialsDir := filepath.Join(dir, "partials")
	if err := os.Mkdir(partialsDir, 0o700); err != nil {
		t.Fatalf("failed to create partials dir: %v", err)
	}
	writeFile(t, partialsDir, "item.cel", "json.set('item', context)")

	var out bytes.Buffer
	err := runRender(context.Background(), renderParams{
		stdout:      &out,
		template:    writeFile(t, dir, "list.cel", "json.set('items', json.array(items, 'item'))"),
		context:     writeFile(t, dir, "list.yaml", "items:\n  - a\n  - b\n"),
		partials:    partialsDir,
		indent:      2,
		maxDepth:    render.DefaultMaxDepth,
		builderName: "json",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := `{
  "items": [
    {
      "item": "a"
    },
    {
      "item": "b"
    }
  ]
}
`
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestRunRenderStdinContext(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	err := runRender(context.Background(), renderParams{
		stdin:       strings.NewReader(`{"title": "hello"}`),
		stdout:      &out,
		template:    writeFile(t, dir, "t.cel", "json.set('title', title)"),
		context:     "-",
		maxDepth:    render.DefaultMaxDepth,
		builderName: "data",
	})
	if err == nil {
		t.Fatal("expected an error when the template uses a different builder name")
	}

	out.Reset()
	err = runRender(context.Background(), renderParams{
		stdin:       strings.NewReader(`{"title": "hello"}`),
		stdout:      &out,
		template:    writeFile(t, dir, "t2.cel", "data.set('title', title)"),
		context:     "-",
		maxDepth:    render.DefaultMaxDepth,
		builderName: "data",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if diff := cmp.Diff("{\"title\":\"hello\"}\n", out.String()); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestRunRenderUnknownPartial(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	err := runRender(context.Background(), renderParams{
		stdout:      &out,
		template:    writeFile(t, dir, "t.cel", "json.set(json.partial('missing', {}))"),
		maxDepth:    render.DefaultMaxDepth,
		builderName: "json",
	})
	var unknown *render.UnknownPartialError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownPartialError, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output on error, got %q", out.String())
	}
}

func TestReadContextInvalidJSON(t *testing.T) {
	if _, err := readContext(strings.NewReader("{"), "-"); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestRootCommandRequiresTemplate(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error without --template")
	}
}
