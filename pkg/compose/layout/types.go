package layout

import (
	"fmt"
	"sort"
	"strings"

	"mercator-hq/atlas/pkg/compose/service"
)

// Well-known layer ids. Language layers are "lang-" + language name,
// extension layers "ext-" + extension name.
const (
	LayerBase     = "base"
	LayerPlatform = "platform"

	langPrefix = "lang-"
	extPrefix  = "ext-"
)

// LanguageLayerID returns the layer id for a language name.
func LanguageLayerID(language string) string { return langPrefix + language }

// ExtensionLayerID returns the layer id for an extension name.
func ExtensionLayerID(name string) string { return extPrefix + name }

// IsExtensionLayer reports whether a layer id names an extension layer.
func IsExtensionLayer(id string) bool { return strings.HasPrefix(id, extPrefix) }

// Manifest is the parsed layer.yaml of one layer. It is authoritative for
// variable pre-checks and for expert-mode mandatory file injection.
type Manifest struct {
	// Rank orders layers; lower ranks render first and higher layers
	// shadow their variables and files.
	Rank int `yaml:"rank"`

	// Required lists variables that must be bound before the layer
	// renders. An unbound required variable aborts the composition
	// before any file is rendered.
	Required []string `yaml:"required"`

	// Optional lists variables the layer references inside conditional
	// blocks only; they may be unbound.
	Optional []string `yaml:"optional"`

	// MandatoryFiles lists template paths (with the .tmpl suffix
	// stripped) that enforce policy. In expert mode these files are
	// injected into the caller's artifact set unless individually
	// exempted by a signed override.
	MandatoryFiles []string `yaml:"mandatory_files"`

	// Outputs declares an extension layer's output variables. Each value
	// is itself a template rendered against the extension's bindings;
	// the result becomes referencable through the extension's wiring.
	Outputs map[string]string `yaml:"outputs"`

	// Defaults are the variable values this layer contributes. Stacking
	// follows layer order: a higher layer's default shadows a lower
	// layer's for the same name, and caller bindings shadow them all.
	Defaults map[string]any `yaml:"defaults"`
}

// DefaultBindings converts the manifest's defaults into typed values.
// YAML booleans become boolean values; everything else is stringified.
func (m Manifest) DefaultBindings() map[string]service.Value {
	if len(m.Defaults) == 0 {
		return nil
	}
	out := make(map[string]service.Value, len(m.Defaults))
	for name, raw := range m.Defaults {
		switch v := raw.(type) {
		case bool:
			out[name] = service.Bool(v)
		case string:
			out[name] = service.String(v)
		default:
			out[name] = service.String(fmt.Sprintf("%v", v))
		}
	}
	return out
}

// TemplateLayer is one named, ordered template bundle, loaded once per
// template version and immutable afterwards.
type TemplateLayer struct {
	ID       string
	Manifest Manifest

	// Files maps output path (template path with the .tmpl suffix
	// stripped) to raw template content.
	Files map[string]string
}

// Paths returns the layer's file paths in sorted order. Rendering iterates
// this so output and error order are deterministic.
func (l TemplateLayer) Paths() []string {
	paths := make([]string, 0, len(l.Files))
	for p := range l.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TemplateNotFoundError reports a requested layer that the template root
// does not provide. It is fatal for the composition request; the resolver
// never substitutes a different language's layer.
type TemplateNotFoundError struct {
	// Layer is the missing layer id.
	Layer string

	// Language is set when the missing layer is a language layer.
	Language string
}

// Error implements the error interface.
func (e *TemplateNotFoundError) Error() string {
	if e.Language != "" {
		return fmt.Sprintf("no template layer for language %q (layer %q)", e.Language, e.Layer)
	}
	return fmt.Sprintf("template layer %q not found", e.Layer)
}

// ManifestError reports a corrupt or inconsistent layer manifest. It
// aborts loading: a template root with a broken manifest is a deployment
// defect, not a per-request condition.
type ManifestError struct {
	Layer   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ManifestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("layer %q manifest: %s: %v", e.Layer, e.Message, e.Cause)
	}
	return fmt.Sprintf("layer %q manifest: %s", e.Layer, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ManifestError) Unwrap() error {
	return e.Cause
}
