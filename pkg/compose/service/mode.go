package service

import "fmt"

// Mode is the caller's declared customization tier. Modes form a total
// order: simple < configured < extended < expert. A service's mode may only
// move up over time; moving down requires an explicit reset, because lower
// modes assume fewer variables are in scope than a higher mode may already
// have bound.
type Mode int

const (
	// ModeSimple composes base, platform, and language layers only.
	ModeSimple Mode = iota

	// ModeConfigured adds caller parameter overrides on top of simple.
	// Overrides rebind existing variables; they never add files.
	ModeConfigured

	// ModeExtended adds caller-declared extension modules, each an
	// independent template bundle with its own variables and wiring.
	ModeExtended

	// ModeExpert replaces the composed templates with a caller-supplied
	// artifact set. Mandatory platform files are still injected unless
	// individually exempted, and validation is never bypassed.
	ModeExpert
)

var modeNames = map[Mode]string{
	ModeSimple:     "simple",
	ModeConfigured: "configured",
	ModeExtended:   "extended",
	ModeExpert:     "expert",
}

// String returns the wire name of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid reports whether m is one of the four defined modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode parses a wire name ("simple", "configured", "extended",
// "expert") into a Mode.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeSimple, fmt.Errorf("unknown mode %q", s)
}

// ModeDowngradeError reports a composition request at a lower mode than the
// service was previously composed at. Downgrades are rejected rather than
// silently ignored; the caller must reset the service first.
type ModeDowngradeError struct {
	// Service is the service whose mode would be lowered.
	Service string

	// Previous is the highest mode previously recorded for the service.
	Previous Mode

	// Requested is the mode the caller asked for.
	Requested Mode
}

// Error implements the error interface.
func (e *ModeDowngradeError) Error() string {
	return fmt.Sprintf("service %q: mode downgrade from %s to %s requires an explicit reset",
		e.Service, e.Previous, e.Requested)
}
