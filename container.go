package injector

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/dozm/injector/errorx"
	"github.com/dozm/injector/reflectx"
	"github.com/dozm/injector/syncx"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ContainerType = reflectx.TypeOf[Container]()
var RootContainerType = reflectx.TypeOf[RootContainer]()
var ScopeFactoryType = reflectx.TypeOf[ScopeFactory]()
var IsServiceType = reflectx.TypeOf[IsService]()

// Container options.
type Options struct {
	// CompileOnBuild builds the expression of every registration in Build and panics
	// with the combined errors.
	CompileOnBuild bool

	// DefaultScopedLifestyle is the lifestyle of services registered as Lifestyle_Scoped.
	DefaultScopedLifestyle ScopedLifestyle

	Logger *zap.Logger
}

// Get default container options. A nil Logger becomes a no-op logger when the
// container is built.
func DefaultOptions() Options {
	return Options{
		DefaultScopedLifestyle: ContextScopedLifestyle(),
	}
}

func (o *Options) normalize() {
	if o.DefaultScopedLifestyle == nil || o.DefaultScopedLifestyle == Lifestyle_Scoped {
		o.DefaultScopedLifestyle = ContextScopedLifestyle()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Container implementation
type container struct {
	Root             *Scope
	CallSiteFactory  *CallSiteFactory
	engine           ContainerEngine
	realizedServices *syncx.Map[reflect.Type, ServiceAccessor]
	disposed         atomic.Bool
	options          Options
	logger           *zap.Logger
}

func (c *container) Get(serviceType reflect.Type) (any, error) {
	return c.GetContext(context.Background(), serviceType)
}

// GetContext resolves serviceType. Scoped services resolve against the scope carried
// by ctx, see WithScope.
func (c *container) GetContext(ctx context.Context, serviceType reflect.Type) (result any, err error) {
	if c.disposed.Load() {
		err = &errorx.ObjectDisposedError{Message: reflect.TypeOf(c).Elem().String()}
		return
	}
	ctx = orBackground(ctx)

	defer func() {
		if p := recover(); p != nil {
			result, err = nil, recoverError(p)
		}
		if err != nil {
			c.logger.Debug("resolution failed", zap.Stringer("service", serviceType), zap.Error(err))
		}
	}()

	accessor, ok := c.realizedServices.Load(serviceType)
	if !ok {
		accessor, err = c.createServiceAccessor(serviceType)
		if err != nil {
			return
		}
		accessor, _ = c.realizedServices.LoadOrStore(serviceType, accessor)
	}

	return accessor(ctx)
}

func (c *container) CreateScope() *Scope {
	if c.disposed.Load() {
		panic(&errorx.ObjectDisposedError{Message: reflect.TypeOf(c).Elem().String()})
	}

	c.logger.Debug("scope opened")
	return newScope(c, false)
}

func (c *container) RootScope() *Scope {
	return c.Root
}

func (c *container) Registration(serviceType reflect.Type) (Registration, error) {
	return c.CallSiteFactory.GetRegistration(serviceType)
}

// Dispose disposes the root scope, and with it every singleton the container created.
func (c *container) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.Root.Dispose()
}

func (c *container) IsDisposed() bool {
	return c.disposed.Load()
}

func (c *container) createServiceAccessor(serviceType reflect.Type) (ServiceAccessor, error) {
	callSite, err := c.CallSiteFactory.GetCallSite(serviceType, newCallSiteChain())
	if err != nil {
		return nil, err
	}

	return c.engine.RealizeService(callSite)
}

// compileAll builds the expression of every registration.
func (c *container) compileAll() error {
	var err error
	for _, r := range c.CallSiteFactory.Registrations() {
		if _, e := r.BuildExpression(); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// bind returns a Container that resolves with ctx as the ambient context.
func (c *container) bind(ctx context.Context) Container {
	return &boundContainer{container: c, ctx: ctx}
}

// boundContainer is handed to factories and to constructors that take a Container,
// so what they resolve shares the scope and the construction path of their caller.
type boundContainer struct {
	container *container
	ctx       context.Context
}

func (b *boundContainer) Get(serviceType reflect.Type) (any, error) {
	return b.container.GetContext(b.ctx, serviceType)
}

func (b *boundContainer) GetContext(ctx context.Context, serviceType reflect.Type) (any, error) {
	return b.container.GetContext(ctx, serviceType)
}

// CreateScope opens a new scope of the container.
func (b *boundContainer) CreateScope() *Scope {
	return b.container.CreateScope()
}

func recoverError(p any) error {
	if e, ok := p.(error); ok {
		return e
	}
	return errors.Errorf("%v", p)
}
