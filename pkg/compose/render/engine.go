package render

import (
	"fmt"
	"strings"

	"mercator-hq/atlas/pkg/compose/layout"
	"mercator-hq/atlas/pkg/compose/service"
)

// Layer renders every file of a layer against the bindings and returns
// path → content. The layer manifest's required variables are pre-checked
// before any file renders, so a missing required variable aborts with
// nothing produced.
func Layer(layer layout.TemplateLayer, bindings map[string]service.Value) (map[string]string, error) {
	for _, name := range layer.Manifest.Required {
		if _, ok := bindings[name]; !ok {
			return nil, &MissingVariableError{Variable: name, File: layer.ID + "/layer.yaml"}
		}
	}

	out := make(map[string]string, len(layer.Files))
	for _, path := range layer.Paths() {
		rendered, err := File(layer.Files[path], layer.ID+"/"+path, bindings)
		if err != nil {
			return nil, err
		}
		out[path] = rendered
	}
	return out, nil
}

// File renders one template string. The file name only labels errors.
func File(input, file string, bindings map[string]service.Value) (string, error) {
	var out strings.Builder
	out.Grow(len(input))

	// Conditional block stack. A frame is live only while every
	// enclosing frame is live; references inside a suppressed branch are
	// skipped, not resolved.
	type frame struct {
		tag  string // "if" or "if_eq"
		live bool
	}
	var stack []frame
	live := func() bool {
		for _, f := range stack {
			if !f.live {
				return false
			}
		}
		return true
	}

	pos := 0
	for {
		idx := strings.Index(input[pos:], "{{")
		if idx < 0 {
			if live() {
				out.WriteString(input[pos:])
			}
			break
		}
		if live() {
			out.WriteString(input[pos : pos+idx])
		}

		rest := input[pos+idx:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return "", &SyntaxError{File: file, Message: "unclosed {{ tag"}
		}
		tag := strings.TrimSpace(rest[2:end])
		pos += idx + end + 2

		switch {
		case strings.HasPrefix(tag, "#if_eq "):
			name, literal, err := parseIfEq(tag, file)
			if err != nil {
				return "", err
			}
			branch := false
			if live() {
				value, ok := bindings[name]
				if !ok {
					return "", &MissingVariableError{Variable: name, File: file}
				}
				branch = value.Text() == literal
			}
			stack = append(stack, frame{tag: "if_eq", live: branch})

		case strings.HasPrefix(tag, "#if "):
			name := strings.TrimSpace(strings.TrimPrefix(tag, "#if "))
			if !validName(name) {
				return "", &SyntaxError{File: file, Message: fmt.Sprintf("invalid variable name in %q", tag)}
			}
			branch := false
			if live() {
				value, ok := bindings[name]
				if !ok {
					return "", &MissingVariableError{Variable: name, File: file}
				}
				branch = value.Truthy()
			}
			stack = append(stack, frame{tag: "if", live: branch})

		case tag == "/if", tag == "/if_eq":
			if len(stack) == 0 {
				return "", &SyntaxError{File: file, Message: fmt.Sprintf("unmatched {{%s}}", tag)}
			}
			top := stack[len(stack)-1]
			if "/"+top.tag != tag {
				return "", &SyntaxError{File: file,
					Message: fmt.Sprintf("mismatched block close {{%s}} for {{#%s}}", tag, top.tag)}
			}
			stack = stack[:len(stack)-1]

		default:
			if !validName(tag) {
				return "", &SyntaxError{File: file, Message: fmt.Sprintf("invalid tag %q", tag)}
			}
			if live() {
				value, ok := bindings[tag]
				if !ok {
					return "", &MissingVariableError{Variable: tag, File: file}
				}
				out.WriteString(value.Text())
			}
		}
	}

	if len(stack) != 0 {
		return "", &SyntaxError{File: file,
			Message: fmt.Sprintf("unterminated {{#%s}} block", stack[len(stack)-1].tag)}
	}
	return out.String(), nil
}

// parseIfEq parses `#if_eq name "literal"`.
func parseIfEq(tag, file string) (name, literal string, err error) {
	rest := strings.TrimSpace(strings.TrimPrefix(tag, "#if_eq "))
	space := strings.IndexByte(rest, ' ')
	if space < 0 {
		return "", "", &SyntaxError{File: file, Message: fmt.Sprintf("malformed %q: want name and literal", tag)}
	}
	name = rest[:space]
	lit := strings.TrimSpace(rest[space+1:])
	if !validName(name) {
		return "", "", &SyntaxError{File: file, Message: fmt.Sprintf("invalid variable name in %q", tag)}
	}
	if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
		return "", "", &SyntaxError{File: file, Message: fmt.Sprintf("malformed %q: literal must be double-quoted", tag)}
	}
	return name, lit[1 : len(lit)-1], nil
}

// validName accepts the variable name grammar: letters, digits, and
// underscores, starting with a letter or underscore.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
