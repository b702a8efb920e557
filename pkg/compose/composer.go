package compose

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/atlas/pkg/compose/layout"
	"mercator-hq/atlas/pkg/compose/policy"
	"mercator-hq/atlas/pkg/compose/render"
	"mercator-hq/atlas/pkg/compose/service"
)

// Result is the outcome of one composition. Exactly one of Artifacts
// and Violations is populated: a composition with violations produces
// no artifacts at all.
type Result struct {
	Service string
	Mode    service.Mode

	// Artifacts maps output path to rendered content.
	Artifacts map[string]string

	// Violations are the policy findings when validation failed. All
	// rules run to completion, so a single result reports every
	// violated rule, not just the first.
	Violations []policy.Violation

	// Bindings is the final variable set with per-name provenance,
	// sorted by name.
	Bindings []service.Binding
}

// Composer runs the composition pipeline for one descriptor at a time.
// It is safe for concurrent use; the template library behind the
// resolver may be swapped while compositions are in flight.
type Composer struct {
	mu       sync.RWMutex
	resolver *layout.Resolver

	validator *policy.Validator
	ledger    *ModeLedger
	logger    *slog.Logger
}

// NewComposer creates a composer over a resolver and validator.
func NewComposer(resolver *layout.Resolver, validator *policy.Validator, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		resolver:  resolver,
		validator: validator,
		ledger:    NewModeLedger(),
		logger:    logger.With("component", "compose"),
	}
}

// Ledger exposes the mode ledger for administrative resets and status
// queries.
func (c *Composer) Ledger() *ModeLedger { return c.ledger }

// SetResolver swaps the resolver, typically after a template library
// reload. In-flight compositions keep the resolver they started with.
func (c *Composer) SetResolver(resolver *layout.Resolver) {
	c.mu.Lock()
	c.resolver = resolver
	c.mu.Unlock()
}

func (c *Composer) currentResolver() *layout.Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolver
}

// Compose runs the full pipeline: resolve layers, assemble bindings,
// apply overrides, render, process extensions or the expert payload,
// and validate. The result is total or nothing; on any error no
// artifacts are returned and the mode ledger is untouched.
func (c *Composer) Compose(ctx context.Context, desc *service.Descriptor, callerBindings map[string]service.Value) (*Result, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if err := c.ledger.Check(desc.Name, desc.Mode); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	layers, err := c.currentResolver().Resolve(desc)
	if err != nil {
		return nil, err
	}

	bindings := c.assembleBindings(desc, layers, callerBindings)
	if err := c.applyOverrides(desc, bindings); err != nil {
		return nil, err
	}

	var artifacts map[string]string
	if desc.Mode == service.ModeExpert {
		artifacts, err = c.composeExpert(ctx, desc, layers, bindings)
	} else {
		artifacts, err = c.composeLayered(ctx, desc, layers, bindings)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Service:  desc.Name,
		Mode:     desc.Mode,
		Bindings: bindings.provenance(),
	}
	if violations := c.validator.Validate(artifacts); len(violations) > 0 {
		c.logger.Warn("composition rejected by policy",
			"service", desc.Name, "mode", desc.Mode.String(), "violations", len(violations))
		result.Violations = violations
		return result, nil
	}

	c.ledger.Record(desc.Name, desc.Mode)
	c.logger.Info("composition complete",
		"service", desc.Name, "mode", desc.Mode.String(), "artifacts", len(artifacts))
	result.Artifacts = artifacts
	return result, nil
}

// assembleBindings stacks the variable namespace bottom up: descriptor
// identity, then each layer's manifest defaults in layer order, then
// the caller's request bindings on top.
func (c *Composer) assembleBindings(desc *service.Descriptor, layers []layout.TemplateLayer, caller map[string]service.Value) *bindingSet {
	bindings := newBindingSet()
	bindings.bind("service_name", service.String(desc.Name), bindingLayerDescriptor)
	bindings.bind("language", service.String(desc.Language.String()), bindingLayerDescriptor)
	if desc.Framework != "" {
		bindings.bind("framework", service.String(desc.Framework), bindingLayerDescriptor)
	}
	for _, layer := range layers {
		bindings.bindAll(layer.Manifest.DefaultBindings(), layer.ID)
	}
	bindings.bindAll(caller, bindingLayerCaller)
	return bindings
}

// applyOverrides rebinds variables from the descriptor's override set.
// Overrides only rebind names some lower layer already bound; an
// unknown name is an OverrideMismatchError.
func (c *Composer) applyOverrides(desc *service.Descriptor, bindings *bindingSet) error {
	if len(desc.Overrides) == 0 {
		return nil
	}
	names := make([]string, 0, len(desc.Overrides))
	for name := range desc.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !bindings.has(name) {
			return &OverrideMismatchError{Service: desc.Name, Variable: name}
		}
		bindings.bind(name, desc.Overrides[name], bindingLayerOverride)
	}
	return nil
}

// composeLayered renders the stack layers in order, then processes the
// extension set. Later layers override earlier ones on path collisions.
func (c *Composer) composeLayered(ctx context.Context, desc *service.Descriptor, layers []layout.TemplateLayer, bindings *bindingSet) (map[string]string, error) {
	artifacts := make(map[string]string)
	extensions := make(map[string]layout.TemplateLayer)

	for _, layer := range layers {
		if layout.IsExtensionLayer(layer.ID) {
			extensions[layer.ID] = layer
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rendered, err := render.Layer(layer, bindings.flat())
		if err != nil {
			return nil, err
		}
		for path, content := range rendered {
			artifacts[path] = content
		}
	}

	if desc.Mode >= service.ModeExtended {
		if err := c.applyExtensions(ctx, desc, extensions, bindings, artifacts); err != nil {
			return nil, err
		}
	}
	return artifacts, nil
}

// applyExtensions runs the extension processors in declaration order.
// Every extension's outputs are computed before any wiring resolves, so
// wiring may reference outputs of any extension in the set regardless
// of order. A wire whose source no extension produced is a
// MissingVariableError naming the wired variable.
func (c *Composer) applyExtensions(ctx context.Context, desc *service.Descriptor, extLayers map[string]layout.TemplateLayer, bindings *bindingSet, artifacts map[string]string) error {
	outputs := make(map[string]service.Value)
	for _, ext := range desc.Extensions {
		layerID := layout.ExtensionLayerID(ext.Name)
		layer := extLayers[layerID]
		local := overlay(bindings.flat(), ext.Bindings)
		names := make([]string, 0, len(layer.Manifest.Outputs))
		for name := range layer.Manifest.Outputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rendered, err := render.File(layer.Manifest.Outputs[name], layerID+"/layer.yaml", local)
			if err != nil {
				return err
			}
			outputs[name] = service.String(rendered)
		}
	}

	for _, ext := range desc.Extensions {
		layerID := layout.ExtensionLayerID(ext.Name)
		for _, wire := range ext.Wiring {
			value, ok := outputs[wire.From]
			if !ok {
				return &render.MissingVariableError{Variable: wire.From, File: layerID + "/layer.yaml"}
			}
			bindings.bind(wire.To, value, layerID)
		}
	}

	for _, ext := range desc.Extensions {
		if err := ctx.Err(); err != nil {
			return err
		}
		layerID := layout.ExtensionLayerID(ext.Name)
		layer := extLayers[layerID]
		local := overlay(bindings.flat(), ext.Bindings)
		for name, value := range outputs {
			if _, shadowed := local[name]; !shadowed {
				local[name] = value
			}
		}
		rendered, err := render.Layer(layer, local)
		if err != nil {
			return err
		}
		for path, content := range rendered {
			artifacts[path] = content
		}
	}
	return nil
}

// composeExpert merges the caller's raw artifacts with the injected
// mandatory platform files. Injection wins on path collisions: a
// caller-supplied file cannot displace a mandatory file the caller was
// not exempted from.
func (c *Composer) composeExpert(ctx context.Context, desc *service.Descriptor, layers []layout.TemplateLayer, bindings *bindingSet) (map[string]string, error) {
	artifacts := make(map[string]string, len(desc.Expert.Artifacts))
	for path, content := range desc.Expert.Artifacts {
		artifacts[path] = content
	}
	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rendered, err := render.Layer(layer, bindings.flat())
		if err != nil {
			return nil, err
		}
		for path, content := range rendered {
			artifacts[path] = content
		}
	}
	return artifacts, nil
}

func overlay(base, over map[string]service.Value) map[string]service.Value {
	out := make(map[string]service.Value, len(base)+len(over))
	for name, value := range base {
		out[name] = value
	}
	for name, value := range over {
		out[name] = value
	}
	return out
}
