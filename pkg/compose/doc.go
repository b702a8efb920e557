// Package compose orchestrates the composition pipeline: layer
// resolution, binding assembly, overrides, extensions, expert payloads,
// rendering, and policy validation.
//
// A composition is total or nothing. Either every artifact renders and
// the full set passes through policy validation, or the caller gets an
// error (or violations) and no artifacts at all. The pipeline is
// deterministic: the same descriptor, bindings, and template library
// always produce byte-identical artifacts.
//
// The mode ledger enforces the customization ratchet. A service that
// has composed at a mode may compose again at the same or a higher
// mode, never lower, until the ledger is reset out of band.
package compose
