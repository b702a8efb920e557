package service

import "fmt"

// Descriptor is the caller's declared intent for one service. It is
// immutable within a composition request: the pipeline reads it, never
// writes it. The Name is the merge key everywhere in the control plane;
// reconciliation and composition never rename or alias a service.
type Descriptor struct {
	// Name uniquely identifies the service across all backing systems.
	Name string `yaml:"name"`

	// Language selects the language template layer. There is no fallback:
	// a missing layer for the language is a fatal error.
	Language Language `yaml:"-"`

	// Framework optionally narrows the language layer variant
	// (e.g. "gin" for Go, "spring" for Java). Informational for layer
	// selection; the language layer's manifest decides whether it is used.
	Framework string `yaml:"framework,omitempty"`

	// Mode is the customization tier the caller is requesting.
	Mode Mode `yaml:"-"`

	// Overrides rebinds variables already bound by lower layers. Only
	// meaningful at ModeConfigured and above; a name not present in the
	// lower layers' namespace is rejected.
	Overrides map[string]Value `yaml:"-"`

	// Extensions are the caller-declared extension modules, applied in
	// the order given. Only meaningful at ModeExtended. Expert mode
	// supplies its artifacts whole, so extensions are rejected there
	// rather than ignored.
	Extensions []Extension `yaml:"-"`

	// Expert is the caller-supplied raw artifact set. Required at
	// ModeExpert, forbidden below it.
	Expert *ExpertPayload `yaml:"-"`
}

// Extension declares one extension module: which bundle to apply, the
// variables it is invoked with, and how its outputs wire into the rest of
// the composition.
type Extension struct {
	// Name selects the extension template bundle ("ext-" + Name layer).
	Name string

	// Bindings are the extension's own variable values.
	Bindings map[string]Value

	// Wiring maps an extension output variable (From) into a variable
	// name visible to lower layers (To). A From that names an output the
	// extension set never produced is a fatal missing-variable error.
	Wiring []Wire
}

// Wire connects one extension output variable to one input variable name.
type Wire struct {
	From string
	To   string
}

// ExpertPayload is a caller-supplied artifact set for expert mode. The
// platform's mandatory files are still injected unless individually
// exempted, and the payload always passes through policy validation.
type ExpertPayload struct {
	// Artifacts maps output path to file content.
	Artifacts map[string]string

	// Exemptions are signed opt-outs from individual mandatory platform
	// files. Each exemption names one path and carries a signature over
	// "<service>:<path>" verifiable with the platform exemption key.
	Exemptions []Exemption
}

// Exemption is a signed opt-out from one mandatory platform file.
type Exemption struct {
	Path      string
	Signature string
}

// Validate checks the descriptor's internal consistency: required fields,
// closed-enum membership, and mode/payload agreement. It does not consult
// template layers; the resolver does that.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor: name is required")
	}
	if !d.Language.Valid() {
		return fmt.Errorf("descriptor %q: invalid language", d.Name)
	}
	if !d.Mode.Valid() {
		return fmt.Errorf("descriptor %q: invalid mode", d.Name)
	}
	if len(d.Overrides) > 0 && d.Mode < ModeConfigured {
		return fmt.Errorf("descriptor %q: overrides require mode configured or above", d.Name)
	}
	if len(d.Extensions) > 0 && d.Mode < ModeExtended {
		return fmt.Errorf("descriptor %q: extensions require mode extended or above", d.Name)
	}
	if len(d.Extensions) > 0 && d.Mode == ModeExpert {
		return fmt.Errorf("descriptor %q: expert mode supplies artifacts directly, extensions are not applied", d.Name)
	}
	if d.Mode == ModeExpert && d.Expert == nil {
		return fmt.Errorf("descriptor %q: expert mode requires an expert payload", d.Name)
	}
	if d.Mode != ModeExpert && d.Expert != nil {
		return fmt.Errorf("descriptor %q: expert payload requires expert mode", d.Name)
	}
	for i, ext := range d.Extensions {
		if ext.Name == "" {
			return fmt.Errorf("descriptor %q: extension %d has no name", d.Name, i)
		}
	}
	return nil
}
