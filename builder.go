package injector

import (
	"reflect"

	"github.com/dozm/injector/reflectx"
	"github.com/dozm/injector/syncx"
	"go.uber.org/zap"
)

type ContainerBuilder interface {
	Add(...*Descriptor)
	// Contains reports whether a service of serviceType has been added.
	Contains(serviceType reflect.Type) bool
	// Remove removes every descriptor of serviceType.
	Remove(serviceType reflect.Type)
	Build() RootContainer
	ConfigureOptions(func(*Options))
}

type containerBuilder struct {
	descriptors          []*Descriptor
	optionsConfigurators []func(*Options)
}

func (b *containerBuilder) ConfigureOptions(f func(*Options)) {
	b.optionsConfigurators = append(b.optionsConfigurators, f)
}

func (b *containerBuilder) Add(d ...*Descriptor) {
	b.descriptors = append(b.descriptors, d...)
}

func (b *containerBuilder) Contains(serviceType reflect.Type) bool {
	for _, d := range b.descriptors {
		if d.ServiceType == serviceType {
			return true
		}
	}
	return false
}

func (b *containerBuilder) Remove(serviceType reflect.Type) {
	kept := b.descriptors[:0]
	for _, d := range b.descriptors {
		if d.ServiceType != serviceType {
			kept = append(kept, d)
		}
	}
	for i := len(kept); i < len(b.descriptors); i++ {
		b.descriptors[i] = nil
	}
	b.descriptors = kept
}

func (b *containerBuilder) builtInServices(c *container) {
	csf := c.CallSiteFactory

	csf.Add(ContainerType, &ContainerCallSite{})
	csf.Add(ScopeFactoryType, newConstantCallSite(ScopeFactoryType, c))
	csf.Add(RootContainerType, newConstantCallSite(RootContainerType, c))
	csf.Add(IsServiceType, newConstantCallSite(IsServiceType, csf))
}

func (b *containerBuilder) configureOptions(options *Options) {
	for _, f := range b.optionsConfigurators {
		f(options)
	}
	options.normalize()
}

// Build creates the container. It panics when a descriptor cannot be turned into a
// registration, or, with Options.CompileOnBuild, when a registration fails to compile.
func (b *containerBuilder) Build() RootContainer {
	options := DefaultOptions()
	b.configureOptions(&options)

	c := &container{
		realizedServices: syncx.NewMap[reflect.Type, ServiceAccessor](),
		options:          options,
		logger:           options.Logger,
	}
	c.Root = newScope(c, true)
	c.engine = newContainerEngine(c)

	csf, err := newCallSiteFactory(c, b.descriptors)
	if err != nil {
		panic(err)
	}
	c.CallSiteFactory = csf

	b.builtInServices(c)

	if options.CompileOnBuild {
		if err := c.compileAll(); err != nil {
			panic(err)
		}
	}

	c.logger.Debug("container built",
		zap.Int("registrations", len(b.descriptors)),
		zap.String("scopedLifestyle", options.DefaultScopedLifestyle.Name()),
		zap.Bool("compileOnBuild", options.CompileOnBuild))
	return c
}

// Create a ContainerBuilder
func Builder() ContainerBuilder {
	return &containerBuilder{}
}

// New a descriptor with instance
func Instance[T any](instance any) *Descriptor {
	return NewInstanceDescriptor(reflectx.TypeOf[T](), instance)
}

// New a transient constructor descriptor
func Transient[T any](ctor any) *Descriptor {
	return NewConstructorDescriptor(reflectx.TypeOf[T](), Lifestyle_Transient, ctor)
}

// New a scoped constructor descriptor, using the container's default scoped lifestyle.
func Scoped[T any](ctor any) *Descriptor {
	return NewConstructorDescriptor(reflectx.TypeOf[T](), Lifestyle_Scoped, ctor)
}

// New a singleton constructor descriptor
func Singleton[T any](ctor any) *Descriptor {
	return NewConstructorDescriptor(reflectx.TypeOf[T](), Lifestyle_Singleton, ctor)
}

// WithLifestyle creates a constructor descriptor with an explicit lifestyle,
// e.g. RootFallbackScopedLifestyle() or one created with NewScopedLifestyle.
func WithLifestyle[T any](l Lifestyle, ctor any) *Descriptor {
	return NewConstructorDescriptor(reflectx.TypeOf[T](), l, ctor)
}

// Add a transient service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddTransient[T any](cb ContainerBuilder, ctor any) {
	cb.Add(Transient[T](ctor))
}

// Add a scoped service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddScoped[T any](cb ContainerBuilder, ctor any) {
	cb.Add(Scoped[T](ctor))
}

// Add a singleton service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// ctor is the constructor of the service T.
func AddSingleton[T any](cb ContainerBuilder, ctor any) {
	cb.Add(Singleton[T](ctor))
}

// Add an instance service descriptor to the ContainerBuilder.
// T is the service type,
// cb is the ContainerBuilder,
// the instance must be assignable to the service T.
func AddInstance[T any](cb ContainerBuilder, instance any) {
	cb.Add(Instance[T](instance))
}

// New a transient factory descriptor
func TransientFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(reflectx.TypeOf[T](), Lifestyle_Transient, factory)
}

// New a scoped factory descriptor
func ScopedFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(reflectx.TypeOf[T](), Lifestyle_Scoped, factory)
}

// New a singleton factory descriptor
func SingletonFactory[T any](factory Factory) *Descriptor {
	return NewFactoryDescriptor(reflectx.TypeOf[T](), Lifestyle_Singleton, factory)
}

// Func creates a factory descriptor from a function that needs nothing from the container.
func Func[T any](l Lifestyle, fn func() T) *Descriptor {
	if fn == nil {
		return NewFactoryDescriptor(reflectx.TypeOf[T](), l, nil)
	}
	return NewFactoryDescriptor(reflectx.TypeOf[T](), l, func(Container) any { return fn() })
}

// ScopedFunc is Func with the default scoped lifestyle.
func ScopedFunc[T any](fn func() T) *Descriptor {
	return Func[T](Lifestyle_Scoped, fn)
}

func AddTransientFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(TransientFactory[T](factory))
}

func AddScopedFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(ScopedFactory[T](factory))
}

func AddSingletonFactory[T any](cb ContainerBuilder, factory Factory) {
	cb.Add(SingletonFactory[T](factory))
}

func AddScopedFunc[T any](cb ContainerBuilder, fn func() T) {
	cb.Add(ScopedFunc[T](fn))
}
