package cel

import (
	"fmt"
	"strings"
)

// statement is one CEL expression of a template body
type statement struct {
	source string
	line   int
}

// splitStatements splits a template body into statements at ';' and newlines
// that sit outside brackets and string literals. Line comments are dropped.
func splitStatements(src string) ([]statement, error) {
	var (
		out   []statement
		cur   strings.Builder
		depth int
		line  = 1
		start = 1
	)

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text != "" {
			out = append(out, statement{source: text, line: start})
		}
		cur.Reset()
		start = line
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			i--
		case c == '\'' || c == '"':
			end, err := scanString(src, i)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			cur.WriteString(src[i:end])
			line += strings.Count(src[i:end], "\n")
			i = end - 1
		case c == '(' || c == '[' || c == '{':
			depth++
			cur.WriteByte(c)
		case c == ')' || c == ']' || c == '}':
			if depth == 0 {
				return nil, fmt.Errorf("line %d: unbalanced %q", line, c)
			}
			depth--
			cur.WriteByte(c)
		case c == '\n':
			line++
			if depth == 0 {
				flush()
			} else {
				cur.WriteByte(c)
			}
		case c == ';' && depth == 0:
			flush()
		default:
			cur.WriteByte(c)
		}
	}

	if depth != 0 {
		return nil, fmt.Errorf("line %d: unclosed bracket", line)
	}
	flush()

	return out, nil
}

// scanString returns the offset just past the string literal starting at i.
// Triple-quoted and raw (r-prefixed) literals are supported.
func scanString(src string, i int) (int, error) {
	quote := src[i]
	raw := i > 0 && (src[i-1] == 'r' || src[i-1] == 'R') && (i < 2 || !isIdentChar(src[i-2]))

	delim := string(quote)
	if strings.HasPrefix(src[i:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}

	for j := i + len(delim); j < len(src); j++ {
		switch {
		case src[j] == '\\' && !raw:
			j++
		case src[j] == '\n' && len(delim) == 1:
			return 0, fmt.Errorf("unterminated string literal")
		case strings.HasPrefix(src[j:], delim):
			return j + len(delim), nil
		}
	}

	return 0, fmt.Errorf("unterminated string literal")
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// isIdentifier reports whether name can be declared as a CEL variable
func isIdentifier(name string) bool {
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isIdentChar(name[i]) {
			return false
		}
	}
	return !reserved[name]
}

var reserved = map[string]bool{
	"true": true, "false": true, "null": true, "in": true,
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"for": true, "function": true, "if": true, "import": true, "let": true,
	"loop": true, "package": true, "namespace": true, "return": true,
	"var": true, "void": true, "while": true,
}
