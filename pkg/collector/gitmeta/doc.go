// Package gitmeta collects service facts from the platform's service
// catalog repository: one directory per service, each carrying a
// service.yaml manifest with identity and declared-configuration facts.
//
// The collector clones the catalog on first fetch and pulls afterwards,
// so a cycle normally costs one fetch round-trip. It is authoritative for
// identity facts (owner as a shared authority with the config store,
// created_at, repo_url, language, framework) and is the declared fallback
// for runtime_version, which the scheduler observes authoritatively.
package gitmeta
