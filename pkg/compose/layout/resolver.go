package layout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"

	"mercator-hq/atlas/pkg/compose/service"
)

// ResolverConfig is the resolver's immutable construction-time
// configuration. There are no module-level defaults to mutate.
type ResolverConfig struct {
	// ExemptionKey verifies signed mandatory-file exemptions in expert
	// mode. An empty key rejects all exemptions.
	ExemptionKey []byte
}

// Resolver selects the ordered list of template layers for a descriptor.
type Resolver struct {
	library *Library
	config  ResolverConfig
	logger  *slog.Logger
}

// NewResolver creates a resolver over a loaded library.
func NewResolver(library *Library, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		library: library,
		config:  cfg,
		logger:  logger.With("component", "layout.resolver"),
	}
}

// Resolve returns the layers to apply, lowest first. The order is fixed:
// base, platform, language, extensions in declaration order. Configured
// mode selects the same layers as simple; its parameter overrides rebind
// variables, they never add files. Expert mode returns only the mandatory
// slice of the platform layer: the caller's own artifacts replace
// everything else, but policy-enforcing files are still injected unless
// individually exempted by a signed override.
func (r *Resolver) Resolve(desc *service.Descriptor) ([]TemplateLayer, error) {
	if desc.Mode == service.ModeExpert {
		return r.resolveExpert(desc)
	}

	layers := make([]TemplateLayer, 0, 3+len(desc.Extensions))
	for _, id := range []string{LayerBase, LayerPlatform} {
		layer, ok := r.library.Get(id)
		if !ok {
			return nil, &TemplateNotFoundError{Layer: id}
		}
		layers = append(layers, layer)
	}

	langID := LanguageLayerID(desc.Language.String())
	langLayer, ok := r.library.Get(langID)
	if !ok {
		// No cross-language fallback, ever.
		return nil, &TemplateNotFoundError{Layer: langID, Language: desc.Language.String()}
	}
	layers = append(layers, langLayer)

	if desc.Mode >= service.ModeExtended {
		for _, ext := range desc.Extensions {
			extID := ExtensionLayerID(ext.Name)
			extLayer, ok := r.library.Get(extID)
			if !ok {
				return nil, &TemplateNotFoundError{Layer: extID}
			}
			layers = append(layers, extLayer)
		}
	}

	sort.SliceStable(layers, func(i, j int) bool {
		return layers[i].Manifest.Rank < layers[j].Manifest.Rank
	})
	return layers, nil
}

// resolveExpert builds the mandatory platform injection for expert mode.
func (r *Resolver) resolveExpert(desc *service.Descriptor) ([]TemplateLayer, error) {
	platform, ok := r.library.Get(LayerPlatform)
	if !ok {
		return nil, &TemplateNotFoundError{Layer: LayerPlatform}
	}

	exempted := make(map[string]bool)
	for _, ex := range desc.Expert.Exemptions {
		if err := r.verifyExemption(desc.Name, ex); err != nil {
			return nil, err
		}
		exempted[ex.Path] = true
		r.logger.Warn("mandatory file exempted by signed override",
			"service", desc.Name, "path", ex.Path)
	}

	files := make(map[string]string)
	for _, path := range platform.Manifest.MandatoryFiles {
		if exempted[path] {
			continue
		}
		files[path] = platform.Files[path]
	}

	injected := TemplateLayer{
		ID: platform.ID,
		Manifest: Manifest{
			Rank:           platform.Manifest.Rank,
			Required:       platform.Manifest.Required,
			Optional:       platform.Manifest.Optional,
			MandatoryFiles: remaining(platform.Manifest.MandatoryFiles, exempted),
			Defaults:       platform.Manifest.Defaults,
		},
		Files: files,
	}
	return []TemplateLayer{injected}, nil
}

// verifyExemption checks one signed exemption. The signature is an
// HMAC-SHA256 over "<service>:<path>" with the platform exemption key,
// hex encoded.
func (r *Resolver) verifyExemption(svc string, ex service.Exemption) error {
	if len(r.config.ExemptionKey) == 0 {
		return fmt.Errorf("exemption for %q rejected: no exemption key configured", ex.Path)
	}
	mac := hmac.New(sha256.New, r.config.ExemptionKey)
	fmt.Fprintf(mac, "%s:%s", svc, ex.Path)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(ex.Signature)) {
		return fmt.Errorf("exemption for %q rejected: invalid signature", ex.Path)
	}
	return nil
}

// SignExemption produces the signature a valid exemption must carry. It
// lives next to verifyExemption so the two cannot drift; the platform
// tooling that issues exemptions calls it.
func SignExemption(key []byte, svc, path string) string {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s:%s", svc, path)
	return hex.EncodeToString(mac.Sum(nil))
}

func remaining(paths []string, exempted map[string]bool) []string {
	var out []string
	for _, p := range paths {
		if !exempted[p] {
			out = append(out, p)
		}
	}
	return out
}
