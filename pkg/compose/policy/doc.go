// Package policy validates composed artifact sets against the platform's
// mandatory invariants.
//
// The validator runs every rule against the full artifact set and returns
// the complete violation list; it never stops at the first failure,
// because callers need all failures to fix a service in one pass.
// Violations are values, not errors: a rejected composition is an expected
// outcome, reported as data.
//
// Language-specific constraints come from a static registry mapping the
// closed Language enum to a LanguagePolicy. Adding a language is a
// registry entry, not a runtime branch on a string tag.
package policy
