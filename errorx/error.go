package errorx

import (
	"fmt"
	"reflect"
)

type ArgumentNilError struct {
	Name string
}

func (e *ArgumentNilError) Error() string {
	return fmt.Sprintf("ArgumentNilError: %v", e.Name)
}

func NewArgumentNilError(name string) *ArgumentNilError {
	return &ArgumentNilError{name}
}

type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("ArgumentError: %v", e.Message)
}

func NewArgumentError(message string) *ArgumentError {
	return &ArgumentError{message}
}

type CircularDependencyError struct {
	Message string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("CircularDependencyError: %v", e.Message)
}

type FuncSignatureError struct {
	Message string
}

func (e *FuncSignatureError) Error() string {
	return fmt.Sprintf("FuncSignatureError: %v", e.Message)
}

type ServiceNotFound struct {
	ServiceType reflect.Type
}

func (e *ServiceNotFound) Error() string {
	return fmt.Sprintf("ServiceNotFound '%v'", e.ServiceType)
}

type InvalidDescriptor struct {
	ServiceType reflect.Type
}

func (e *InvalidDescriptor) Error() string {
	return fmt.Sprintf("InvalidDescriptor '%v'", e.ServiceType)
}

type TypeIncompatibilityError struct {
	To   reflect.Type
	From reflect.Type
}

func (e *TypeIncompatibilityError) Error() string {
	return fmt.Sprintf("the value of type '%v' can not assignable to type '%v'", e.From, e.To)
}

type ObjectDisposedError struct {
	Message string
}

func (e *ObjectDisposedError) Error() string {
	return fmt.Sprintf("ObjectDisposedError: %v", e.Message)
}

// NoActiveScopeError is returned when a scoped registration is resolved while its
// lifestyle reports no current scope.
type NoActiveScopeError struct {
	ImplementationType reflect.Type
	Lifestyle          string
}

func (e *NoActiveScopeError) Error() string {
	return fmt.Sprintf("NoActiveScopeError: '%v' is registered with the '%v' lifestyle, but is resolved outside of an active scope",
		e.ImplementationType, e.Lifestyle)
}

type NilInstanceError struct {
	ImplementationType reflect.Type
}

func (e *NilInstanceError) Error() string {
	return fmt.Sprintf("NilInstanceError: the registered factory for '%v' returned nil", e.ImplementationType)
}

// Stage identifies the step of a resolution that failed.
type Stage string

const (
	StageCompile      Stage = "compile"
	StageScopeLookup  Stage = "scope lookup"
	StageConstruction Stage = "construction"
)

type ResolutionError struct {
	ImplementationType reflect.Type
	Stage              Stage
	Err                error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("ResolutionError: resolving '%v' failed during %v: %v", e.ImplementationType, e.Stage, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
