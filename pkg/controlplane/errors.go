package controlplane

import "fmt"

// ServiceNotFoundError reports a lookup for a service no source claims.
type ServiceNotFoundError struct {
	Name string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service %q not found in any source", e.Name)
}
