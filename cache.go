package injector

import "reflect"

// ServiceCacheKey identifies the call site of one registration of a service type.
type ServiceCacheKey struct {
	// Type of service being cached
	ServiceType reflect.Type

	// Reverse index of the service when resolved in slice where default instance gets slot 0.
	Slot int
}
