// Package render is the variable substitution engine for template layers.
//
// It supports three constructs: plain substitution ({{name}}), boolean
// conditional blocks ({{#if name}}...{{/if}}), and equality conditional
// blocks ({{#if_eq name "literal"}}...{{/if_eq}}). Blocks nest.
//
// Rendering is strict and deterministic. A reference to an unbound
// variable in live output is a fatal MissingVariableError naming the
// variable and the template file; there are no silent defaults. Inside a
// suppressed conditional branch references are skipped, which is what
// makes a layer's optional variables genuinely optional. Identical
// (layer, bindings) inputs always produce byte-identical output: the
// engine emits no timestamps, no generated ids, and iterates files in
// sorted path order.
package render
