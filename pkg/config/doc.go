// Package config defines the Atlas control plane configuration: the
// root Config structure, default values, validation, and loading from
// YAML files with ATLAS_* environment variable overrides.
//
// The loading sequence is always file, then defaults, then environment
// overrides, then validation. Validation collects every field error
// rather than stopping at the first.
package config
