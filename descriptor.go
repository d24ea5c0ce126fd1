package injector

import (
	"fmt"
	"reflect"

	"github.com/dozm/injector/errorx"
	"github.com/dozm/injector/reflectx"
	"github.com/pkg/errors"
)

// Factory creates a service. The container it receives resolves in the same scope
// as the service being created.
type Factory func(Container) any

type ConstructorInfo struct {
	FuncType  reflect.Type
	FuncValue reflect.Value
	// input parameter types
	In []reflect.Type
	// output parameter types
	Out []reflect.Type
}

func (c *ConstructorInfo) Call(params []reflect.Value) []reflect.Value {
	return c.FuncValue.Call(params)
}

func newConstructorInfo(ctor any) *ConstructorInfo {
	ft := reflect.TypeOf(ctor)
	return &ConstructorInfo{
		FuncValue: reflect.ValueOf(ctor),
		FuncType:  ft,
		In:        reflectx.GetInParameters(ft),
		Out:       reflectx.GetOutParameters(ft),
	}
}

// service descriptor
type Descriptor struct {
	ServiceType reflect.Type
	Lifestyle   Lifestyle
	Ctor        *ConstructorInfo
	Instance    any
	Factory     Factory
}

// ImplementationType is the type the registration of d creates.
func (d *Descriptor) ImplementationType() reflect.Type {
	switch {
	case d.Ctor != nil:
		return d.Ctor.Out[0]
	case d.Instance != nil:
		return reflect.TypeOf(d.Instance)
	default:
		return d.ServiceType
	}
}

func (d *Descriptor) String() string {
	s := fmt.Sprintf("ServiceType: %v Lifestyle: %v ", d.ServiceType, d.Lifestyle.Name())

	switch {
	case d.Ctor != nil:
		s += fmt.Sprintf("Constructor: %v", d.Ctor.FuncType)
	case d.Factory != nil:
		s += fmt.Sprintf("Factory: %v", reflectx.GetFuncName(d.Factory))
	default:
		s += fmt.Sprintf("Instance: %v", d.Instance)
	}

	return s
}

func NewInstanceDescriptor(serviceType reflect.Type, instance any) *Descriptor {
	if instance == nil {
		panic(errorx.NewArgumentNilError("instance"))
	}
	if err := instanceAssignable(instance, serviceType); err != nil {
		panic(err)
	}

	return &Descriptor{
		ServiceType: serviceType,
		Lifestyle:   Lifestyle_Singleton,
		Instance:    instance,
	}
}

func NewConstructorDescriptor(serviceType reflect.Type, lifestyle Lifestyle, ctor any) *Descriptor {
	if lifestyle == nil {
		panic(errorx.NewArgumentNilError("lifestyle"))
	}
	if ctor == nil {
		panic(errorx.NewArgumentNilError("ctor"))
	}

	if reflect.TypeOf(ctor).Kind() != reflect.Func {
		panic(&errorx.FuncSignatureError{
			Message: fmt.Sprintf("the constructor of the service '%v' is not a function", serviceType),
		})
	}

	ci := newConstructorInfo(ctor)
	if err := checkConstructor(ci, serviceType); err != nil {
		panic(errors.Wrapf(err, "registering '%v'", serviceType))
	}

	return &Descriptor{
		ServiceType: serviceType,
		Lifestyle:   lifestyle,
		Ctor:        ci,
	}
}

func checkConstructor(ctor *ConstructorInfo, serviceType reflect.Type) (err error) {
	out := ctor.Out
	numOut := len(out)
	if (numOut == 0 || numOut > 2) ||
		!out[0].AssignableTo(serviceType) ||
		(numOut == 2 && !reflectx.IsErrorType(out[1])) {
		return &errorx.FuncSignatureError{
			Message: fmt.Sprintf("the constructor must returns a '%v' and an optional error", serviceType),
		}
	}

	return
}

func instanceAssignable(instance any, to reflect.Type) (err error) {
	if t := reflect.TypeOf(instance); !t.AssignableTo(to) {
		err = &errorx.TypeIncompatibilityError{To: to, From: t}
	}
	return
}

func NewFactoryDescriptor(serviceType reflect.Type, lifestyle Lifestyle, factory Factory) *Descriptor {
	if lifestyle == nil {
		panic(errorx.NewArgumentNilError("lifestyle"))
	}
	if factory == nil {
		panic(errorx.NewArgumentNilError("factory"))
	}

	return &Descriptor{
		ServiceType: serviceType,
		Lifestyle:   lifestyle,
		Factory:     factory,
	}
}
