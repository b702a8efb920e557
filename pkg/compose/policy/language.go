package policy

import "mercator-hq/atlas/pkg/compose/service"

// LanguagePolicy is the per-language constraint set. Policies are
// immutable and selected through the static registry below.
type LanguagePolicy struct {
	// AllowedRuntimes is the closed allow-list of runtime versions for
	// the language. No open-ended ranges: a new runtime is admitted by
	// adding it here, deliberately.
	AllowedRuntimes []string
}

// Allows reports whether the runtime version is in the allow-list.
func (p LanguagePolicy) Allows(runtime string) bool {
	for _, v := range p.AllowedRuntimes {
		if v == runtime {
			return true
		}
	}
	return false
}

// languagePolicies is the static registry. It is keyed by the closed
// Language enum and never mutated at runtime.
var languagePolicies = map[service.Language]LanguagePolicy{
	service.LanguageGo:     {AllowedRuntimes: []string{"1.24", "1.25"}},
	service.LanguageJava:   {AllowedRuntimes: []string{"17", "21", "22"}},
	service.LanguagePython: {AllowedRuntimes: []string{"3.12", "3.13"}},
	service.LanguageNode:   {AllowedRuntimes: []string{"20", "22"}},
}

// ForLanguage returns the policy for a language. The bool result is false
// for a language the registry does not know, which for a closed enum
// means a registry entry was forgotten.
func ForLanguage(lang service.Language) (LanguagePolicy, bool) {
	p, ok := languagePolicies[lang]
	return p, ok
}
