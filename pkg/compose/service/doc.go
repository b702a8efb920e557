// Package service defines the shared types that describe a composition
// request: the service descriptor, the customization mode, languages, and
// the variable value/binding model used throughout the composition pipeline.
//
// The package sits at the bottom of the compose dependency graph. The layer
// resolver, the substitution engine, the policy validator, and the pipeline
// all import it; it imports nothing but the standard library.
package service
