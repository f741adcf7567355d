// Package cel executes JSON templates written as CEL (Common Expression
// Language) statements.
//
// A template body is a list of CEL expressions separated by ';' or newlines.
// Each expression calls methods on the builder variable (json by default) to
// shape the output. The whole context is bound as context, and each top-level
// key of a map context is bound as its own variable.
//
// Example usage:
//
//	engine, err := cel.NewEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	executor := render.NewExecutor(env, engine)
//
//	data := map[string]interface{}{
//	    "author": map[string]interface{}{"name": "example"},
//	    "posts":  []interface{}{"one", "two"},
//	}
//
//	out, err := executor.Run(ctx, `
//	    json.set('name', author.name)
//	    json.set('posts', json.array(posts.map(p, json.child().set('title', p))))
//	`, data)
//	// out => {"name":"example","posts":[{"title":"one"},{"title":"two"}]}
//
// Builder methods:
//   - json.set(value) - replace the whole content
//   - json.set(key, value) - set one key of the content
//   - json.child() - a fresh builder for a nested scope, usable as a value
//   - json.array(items) - copy a list
//   - json.array(items, partial) - render a partial for every element
//   - json.extract(source, [keys]) - copy the listed keys from a map
//   - json.helper(name, args...) - call a registered helper (up to 5 args)
//   - json.partial(name, context) - render a registered partial
//
// set and extract return the builder, so calls can be chained:
//
//	json.set('a', 1).set('b', 2)
//
// The ext string, encoder, math and binding libraries are available, so
// expressions such as author.name.upperAscii() or
// cel.bind(a, json.child(), a.set('x', 1)) work as in any CEL program.
package cel
