// Package template renders Handlebars strings for the format helper.
//
// Example usage:
//
//	engine := template.NewEngine()
//
//	data := map[string]interface{}{
//	    "name": "example",
//	    "tags": []interface{}{"a", "b"},
//	}
//
//	result, err := engine.Render("{{uppercase name}}: {{join tags \", \"}}", data)
//	// result => "EXAMPLE: a, b"
//
// Built-in helpers:
//   - uppercase - Convert string to uppercase
//   - lowercase - Convert string to lowercase
//   - trim - Trim whitespace from string
//   - default - Return default value if first arg is empty
//   - join - Join array elements with separator
//
// Output is not HTML-escaped unless the engine is built WithEscaping, and
// WithHelper adds helpers of your own.
package template
