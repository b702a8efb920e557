package compose

import (
	"sync"

	"mercator-hq/atlas/pkg/compose/service"
)

// ModeLedger records the highest customization mode each service has
// composed at. Mode changes are a one-way ratchet: once a service has
// composed at a mode, requests for a lower mode fail until the entry is
// reset through an explicit administrative action.
type ModeLedger struct {
	mu    sync.Mutex
	modes map[string]service.Mode
}

// NewModeLedger creates an empty ledger.
func NewModeLedger() *ModeLedger {
	return &ModeLedger{modes: make(map[string]service.Mode)}
}

// Check verifies that a composition at the requested mode is allowed
// for the service. It does not record anything; Record does that after
// the composition succeeds.
func (l *ModeLedger) Check(name string, requested service.Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if previous, ok := l.modes[name]; ok && requested < previous {
		return &service.ModeDowngradeError{
			Service:   name,
			Previous:  previous,
			Requested: requested,
		}
	}
	return nil
}

// Record stores the service's mode after a successful composition. A
// lower mode than the recorded one is ignored; Check should have
// rejected it already.
func (l *ModeLedger) Record(name string, mode service.Mode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if previous, ok := l.modes[name]; ok && mode < previous {
		return
	}
	l.modes[name] = mode
}

// Mode returns the recorded mode for a service, if any.
func (l *ModeLedger) Mode(name string) (service.Mode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mode, ok := l.modes[name]
	return mode, ok
}

// Reset clears the recorded mode for one service. This is the explicit
// administrative escape hatch from the ratchet.
func (l *ModeLedger) Reset(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.modes, name)
}
