package layout

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateSuffix is the recognizable suffix template files carry on disk.
const TemplateSuffix = ".tmpl"

// manifestFile is the per-layer manifest name.
const manifestFile = "layer.yaml"

// Library is an immutable set of loaded template layers. A library is
// built once by Load and shared read-only across composition requests;
// reloading produces a new Library rather than mutating the old one.
type Library struct {
	layers map[string]TemplateLayer
}

// Loader reads template layers from a fixed on-disk layout: one directory
// per layer id under the root.
type Loader struct {
	root   string
	logger *slog.Logger
}

// NewLoader creates a loader over the template root directory.
func NewLoader(root string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{root: root, logger: logger.With("component", "layout.loader")}
}

// Load reads every layer directory under the root. A directory without a
// manifest is skipped with a warning; a corrupt manifest aborts the load.
func (l *Loader) Load() (*Library, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("template root %q: %w", l.root, err)
	}

	layers := make(map[string]TemplateLayer)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		layer, ok, err := l.loadLayer(entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		layers[layer.ID] = layer
	}

	l.logger.Info("template library loaded", "root", l.root, "layers", len(layers))
	return &Library{layers: layers}, nil
}

// loadLayer reads one layer directory. The bool result is false when the
// directory carries no manifest and is not a layer.
func (l *Loader) loadLayer(id string) (TemplateLayer, bool, error) {
	dir := filepath.Join(l.root, id)

	manifestData, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if os.IsNotExist(err) {
		l.logger.Warn("skipping directory without layer manifest", "dir", dir)
		return TemplateLayer{}, false, nil
	}
	if err != nil {
		return TemplateLayer{}, false, &ManifestError{Layer: id, Message: "unreadable", Cause: err}
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestData, &manifest); err != nil {
		return TemplateLayer{}, false, &ManifestError{Layer: id, Message: "unparseable", Cause: err}
	}

	files := make(map[string]string)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, TemplateSuffix) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(strings.TrimSuffix(rel, TemplateSuffix))] = string(content)
		return nil
	})
	if err != nil {
		return TemplateLayer{}, false, fmt.Errorf("layer %q: %w", id, err)
	}

	for _, mandatory := range manifest.MandatoryFiles {
		if _, ok := files[mandatory]; !ok {
			return TemplateLayer{}, false, &ManifestError{
				Layer:   id,
				Message: fmt.Sprintf("mandatory file %q has no template", mandatory),
			}
		}
	}

	return TemplateLayer{ID: id, Manifest: manifest, Files: files}, true, nil
}

// Get returns a layer by id.
func (lib *Library) Get(id string) (TemplateLayer, bool) {
	layer, ok := lib.layers[id]
	return layer, ok
}

// IDs returns all layer ids in sorted order.
func (lib *Library) IDs() []string {
	ids := make([]string, 0, len(lib.layers))
	for id := range lib.layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of loaded layers.
func (lib *Library) Len() int { return len(lib.layers) }
