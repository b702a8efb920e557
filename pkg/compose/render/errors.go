package render

import "fmt"

// MissingVariableError reports a template reference to a variable that no
// layer bound. It is fatal for the composition request.
type MissingVariableError struct {
	// Variable is the unbound variable name.
	Variable string

	// File is the template file (or manifest) containing the reference.
	File string
}

// Error implements the error interface.
func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %q references unbound variable %q", e.File, e.Variable)
}

// SyntaxError reports a malformed template construct: an unclosed tag, an
// unterminated block, or a mismatched block close.
type SyntaxError struct {
	File    string
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template %q: %s", e.File, e.Message)
}
