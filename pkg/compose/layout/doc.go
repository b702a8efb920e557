// Package layout loads template layers from disk and resolves which layers
// apply to a composition request.
//
// A layer is one directory under the template root: template files with a
// .tmpl suffix plus a layer.yaml manifest declaring the layer's rank, its
// required and optional variables, its policy-mandatory files, and (for
// extension layers) its output variables. The manifest is authoritative
// for missing-variable pre-checks; the engine refuses to render a layer
// whose required variables are not all bound.
//
// Layer order is fixed: base infrastructure, then platform standards, then
// the language layer, then declared extensions, then expert overrides. The
// resolver never falls back across languages: a missing language layer is
// a fatal TemplateNotFoundError.
package layout
