package compose

import (
	"sort"

	"mercator-hq/atlas/pkg/compose/service"
)

// Layer labels for bindings that do not come from a template layer.
const (
	bindingLayerDescriptor = "descriptor"
	bindingLayerCaller     = "caller"
	bindingLayerOverride   = "override"
)

// bindingSet accumulates variable bindings in stacking order. A later
// bind for the same name shadows the earlier one, and the set remembers
// which layer last bound each name so audit output can explain where a
// value came from.
type bindingSet struct {
	values map[string]service.Binding
}

func newBindingSet() *bindingSet {
	return &bindingSet{values: make(map[string]service.Binding)}
}

func (b *bindingSet) bind(name string, value service.Value, layer string) {
	b.values[name] = service.Binding{Name: name, Value: value, Layer: layer}
}

func (b *bindingSet) bindAll(values map[string]service.Value, layer string) {
	// Deterministic application order; last write would win on
	// duplicate names otherwise, and map iteration order is random.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.bind(name, values[name], layer)
	}
}

func (b *bindingSet) has(name string) bool {
	_, ok := b.values[name]
	return ok
}

func (b *bindingSet) get(name string) (service.Value, bool) {
	binding, ok := b.values[name]
	return binding.Value, ok
}

// flat returns the plain name → value view the render engine consumes.
func (b *bindingSet) flat() map[string]service.Value {
	out := make(map[string]service.Value, len(b.values))
	for name, binding := range b.values {
		out[name] = binding.Value
	}
	return out
}

// provenance returns all bindings sorted by name.
func (b *bindingSet) provenance() []service.Binding {
	out := make([]service.Binding, 0, len(b.values))
	for _, binding := range b.values {
		out = append(out, binding)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
