package service

import "fmt"

// Language is the closed set of languages the platform composes templates
// for. Adding a language means adding a constant here, a language policy
// registry entry, and a template layer directory; there is no string-tag
// dispatch at runtime.
type Language int

const (
	// LanguageGo selects the Go language layer.
	LanguageGo Language = iota

	// LanguageJava selects the Java language layer.
	LanguageJava

	// LanguagePython selects the Python language layer.
	LanguagePython

	// LanguageNode selects the Node.js language layer.
	LanguageNode
)

var languageNames = map[Language]string{
	LanguageGo:     "go",
	LanguageJava:   "java",
	LanguagePython: "python",
	LanguageNode:   "node",
}

// String returns the wire name of the language.
func (l Language) String() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return fmt.Sprintf("language(%d)", int(l))
}

// Valid reports whether l is one of the defined languages.
func (l Language) Valid() bool {
	_, ok := languageNames[l]
	return ok
}

// ParseLanguage parses a wire name ("go", "java", "python", "node") into a
// Language.
func ParseLanguage(s string) (Language, error) {
	for l, name := range languageNames {
		if name == s {
			return l, nil
		}
	}
	return LanguageGo, fmt.Errorf("unknown language %q", s)
}

// Languages returns all defined languages. The order is stable.
func Languages() []Language {
	return []Language{LanguageGo, LanguageJava, LanguagePython, LanguageNode}
}
