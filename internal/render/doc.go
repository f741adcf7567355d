// Package render implements the builder runtime used by JSON templates.
//
// A template body manipulates a Runtime (the builder) to accumulate structured
// output. Helpers and partials are resolved through a shared Environment, and
// an Executor runs template sources through an injected Engine.
//
// Example usage:
//
//	env := render.NewEnvironment()
//	env.RegisterHelper("uppercase", func(args ...any) (any, error) {
//	    return strings.ToUpper(args[0].(string)), nil
//	})
//	env.RegisterPartial("author", "json.set('name', author.name)")
//
//	executor := render.NewExecutor(env, engine, render.WithMaxDepth(16))
//	out, err := executor.Run(ctx, "json.set('author', json.partial('author', context))", data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The builder can also be driven directly from Go:
//
//	rt := render.NewRuntime(env)
//	_ = rt.SetKey("title", "example")
//	_ = rt.SetKey("author", render.Continuation(func(child *render.Runtime) error {
//	    return child.SetKey("name", "example")
//	}))
//	// rt.Content() => {"title":"example","author":{"name":"example"}}
//
// Content shapes:
//   - unset - nothing was set yet, Content returns nil
//   - keyed - SetKey or Extract was called, Content returns *Object
//   - whole value - Set was called, Content returns that value
//
// Mixing keyed and whole-value writes on the same Runtime fails with
// *ContentShapeConflictError.
package render
