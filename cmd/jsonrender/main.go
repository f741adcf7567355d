package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aescanero/dago-node-jsonrender/internal/eval/cel"
	"github.com/aescanero/dago-node-jsonrender/internal/eval/template"
	"github.com/aescanero/dago-node-jsonrender/internal/helpers"
	"github.com/aescanero/dago-node-jsonrender/internal/partials"
	"github.com/aescanero/dago-node-jsonrender/internal/render"
)

// Version is set at build time
var Version = "dev"

// renderParams bundles the inputs of a single render so that runRender can be
// exercised without a cobra command.
type renderParams struct {
	stdin       io.Reader
	stdout      io.Writer
	template    string // template file path
	context     string // context file path, "-" for stdin, empty for null
	partials    string // directory of *.cel partials
	indent      int
	maxDepth    int
	builderName string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	p := renderParams{}

	cmd := &cobra.Command{
		Use:     "jsonrender",
		Short:   "Render a JSON document from a template and a context",
		Version: Version,
		Example: `  # Render with a JSON context
  jsonrender --template user.cel --context user.json

  # Read the context from stdin and load partials
  cat data.yaml | jsonrender -t page.cel -c - --partials ./partials --indent 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			p.stdin = cmd.InOrStdin()
			p.stdout = cmd.OutOrStdout()
			return runRender(cmd.Context(), p)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&p.template, "template", "t", "", "template file")
	flags.StringVarP(&p.context, "context", "c", "", `context file (JSON or YAML), "-" reads JSON from stdin`)
	flags.StringVar(&p.partials, "partials", "", "directory of *.cel partials")
	flags.IntVar(&p.indent, "indent", 0, "indent output by this many spaces")
	flags.IntVar(&p.maxDepth, "max-depth", render.DefaultMaxDepth, "maximum partial nesting depth")
	flags.StringVar(&p.builderName, "builder", "json", "name of the builder variable in templates")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runRender(ctx context.Context, p renderParams) error {
	if ctx == nil {
		ctx = context.Background()
	}

	source, err := os.ReadFile(p.template)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	data, err := readContext(p.stdin, p.context)
	if err != nil {
		return err
	}

	env := render.NewEnvironment()
	helpers.Register(env, template.NewEngine())
	if p.partials != "" {
		if _, err := partials.LoadDir(os.DirFS(p.partials), env); err != nil {
			return err
		}
	}

	engine, err := cel.NewEngine(cel.WithBuilderName(p.builderName))
	if err != nil {
		return err
	}
	executor := render.NewExecutor(env, engine, render.WithMaxDepth(p.maxDepth))

	output, err := executor.Run(ctx, string(source), data)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(p.stdout)
	if p.indent > 0 {
		encoder.SetIndent("", strings.Repeat(" ", p.indent))
	}
	return encoder.Encode(output)
}

func readContext(stdin io.Reader, path string) (any, error) {
	var (
		raw []byte
		err error
	)
	switch path {
	case "":
		return nil, nil
	case "-":
		raw, err = io.ReadAll(stdin)
	default:
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read context: %w", err)
	}

	var data any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse YAML context: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse JSON context: %w", err)
		}
	}
	return data, nil
}
