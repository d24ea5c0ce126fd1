package injector

import (
	"context"
	"reflect"

	"github.com/dozm/injector/errorx"
	"github.com/dozm/injector/reflectx"
	"github.com/pkg/errors"
)

type Container interface {
	Get(reflect.Type) (any, error)
	GetContext(context.Context, reflect.Type) (any, error)
}

type ScopeFactory interface {
	CreateScope() *Scope
}

// RootContainer is the container returned by ContainerBuilder.Build.
type RootContainer interface {
	Container
	ScopeFactory
	Disposable

	// RootScope holds singletons and the disposables resolved outside of any scope.
	RootScope() *Scope
	// Registration returns the registration used to resolve a single service of serviceType.
	Registration(serviceType reflect.Type) (Registration, error)
}

// Optional service used to determine if the specified type is available from the Container.
type IsService interface {
	IsService(serviceType reflect.Type) bool
}

type Disposable interface {
	Dispose()
}

// Get service of the type T from the container c
func Get[T any](c Container) T {
	result, err := TryGet[T](c)
	if err != nil {
		panic(err)
	}
	return result
}

func TryGet[T any](c Container) (result T, err error) {
	v, err := c.Get(reflectx.TypeOf[T]())
	if err != nil {
		return
	}

	return cast[T](v)
}

// GetWithContext resolves T with ctx as the ambient context, so scoped services
// resolve against the scope carried by ctx.
func GetWithContext[T any](ctx context.Context, c Container) T {
	result, err := TryGetWithContext[T](ctx, c)
	if err != nil {
		panic(err)
	}
	return result
}

func TryGetWithContext[T any](ctx context.Context, c Container) (result T, err error) {
	t := reflectx.TypeOf[T]()
	v, err := c.GetContext(ctx, t)
	if err != nil {
		return
	}

	return cast[T](v)
}

// RegistrationOf returns the registration the container uses for the service type T.
func RegistrationOf[T any](c RootContainer) (Registration, error) {
	return c.Registration(reflectx.TypeOf[T]())
}

func cast[T any](v any) (result T, err error) {
	if v == nil {
		return
	}

	result, ok := v.(T)
	if !ok {
		err = &errorx.TypeIncompatibilityError{To: reflectx.TypeOf[T](), From: reflect.TypeOf(v)}
	}
	return
}

// Invoke the function fn.
// the input paramenters of the fn function will be resolved from the Container c.
func Invoke(c Container, fn any) ([]any, error) {
	return invoke(c.Get, fn)
}

func InvokeWithContext(ctx context.Context, c Container, fn any) ([]any, error) {
	return invoke(func(t reflect.Type) (any, error) { return c.GetContext(ctx, t) }, fn)
}

func invoke(get func(reflect.Type) (any, error), fn any) (fnReturn []any, err error) {
	vfn := reflect.ValueOf(fn)
	if vfn.Kind() != reflect.Func {
		err = errors.New("fn is not a function")
		return
	}

	inputTypes := reflectx.GetInParameters(vfn.Type())

	inputs := make([]reflect.Value, len(inputTypes))
	for i, t := range inputTypes {
		v, e := get(t)
		if e != nil {
			err = e
			return
		}

		inputs[i] = valueOf(v, t)
	}

	ouputs := vfn.Call(inputs)
	numOutputs := len(ouputs)
	if numOutputs > 0 {
		fnReturn = make([]any, numOutputs)
		for i, v := range ouputs {
			fnReturn[i] = v.Interface()
		}
	}

	return
}

// valueOf keeps nil values callable as arguments of type t.
func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}
