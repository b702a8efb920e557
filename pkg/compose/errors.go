package compose

import "fmt"

// OverrideMismatchError reports a parameter override that names a
// variable no lower layer ever bound. Overrides rebind existing names;
// they never introduce new ones.
type OverrideMismatchError struct {
	Service  string
	Variable string
}

func (e *OverrideMismatchError) Error() string {
	return fmt.Sprintf("service %q: override names unknown variable %q", e.Service, e.Variable)
}
