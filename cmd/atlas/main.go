// Atlas is a service control plane: it reconciles service facts from the
// platform's backing systems into a single registry and composes
// policy-validated infrastructure configuration from layered templates.
//
// Usage:
//
//	# Start the control plane with default configuration
//	atlas run
//
//	# Start with a custom configuration file
//	atlas run --config /path/to/config.yaml
//
//	# Show the reconciled view of a service
//	atlas status checkout
//
//	# Compose infrastructure artifacts for a service descriptor
//	atlas compose --descriptor service.yaml --out ./artifacts
//
//	# Lint the template layer library
//	atlas layers lint
//
//	# Query the audit trail
//	atlas audit query --service checkout --kind conflict
package main

func main() {
	Execute()
}
