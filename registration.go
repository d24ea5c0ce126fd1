package injector

import (
	"context"
	"reflect"

	"github.com/dozm/injector/errorx"
	"github.com/dozm/injector/reflectx"
	"github.com/dozm/injector/syncx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// InstanceCreator creates one instance of an implementation type. The context only
// carries the ambient state of the resolution (the current scope); everything needed
// to construct the instance is bound when the creator is built.
type InstanceCreator func(ctx context.Context) (any, error)

// Registration binds one implementation type to the policy that creates and shares
// its instances.
type Registration interface {
	ImplementationType() reflect.Type
	Lifestyle() Lifestyle

	// BuildExpression compiles the registration on first use and returns the call site
	// that yields its instance. Every call returns the same call site.
	BuildExpression() (CallSite, error)

	// GetInstance returns the instance for the resolution context ctx.
	// The call site returned by BuildExpression evaluates to this method.
	GetInstance(ctx context.Context) (any, error)

	buildExpression(chain *callSiteChain) (CallSite, error)
}

// GetInstanceOf calls r.GetInstance and converts the result to T.
func GetInstanceOf[T any](ctx context.Context, r Registration) (T, error) {
	if r == nil {
		var zero T
		return zero, errorx.NewArgumentNilError("registration")
	}

	v, err := r.GetInstance(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](v)
}

// creatorStrategy builds the instance creator of a registration.
type creatorStrategy func(r *registration, chain *callSiteChain) (InstanceCreator, error)

func autoWired(ctor *ConstructorInfo) creatorStrategy {
	return func(r *registration, chain *callSiteChain) (InstanceCreator, error) {
		return r.buildTransientDelegate(ctor, chain)
	}
}

func delegate(factory Factory) creatorStrategy {
	return func(r *registration, _ *callSiteChain) (InstanceCreator, error) {
		return r.buildTransientDelegateFromFactory(factory), nil
	}
}

// registration holds what all registrations share.
type registration struct {
	implementationType reflect.Type
	lifestyle          Lifestyle
	container          *container
	self               Registration
	expression         *RegistrationCallSite
}

func (r *registration) init(self Registration, l Lifestyle, c *container, implementationType reflect.Type) {
	r.self = self
	r.lifestyle = l
	r.container = c
	r.implementationType = implementationType
	r.expression = newRegistrationCallSite(self)
}

func (r *registration) ImplementationType() reflect.Type {
	return r.implementationType
}

func (r *registration) Lifestyle() Lifestyle {
	return r.lifestyle
}

// Container returns the container the registration belongs to.
func (r *registration) Container() RootContainer {
	return r.container
}

// buildTransientDelegate builds a creator that runs ctor with its parameters resolved
// through the call-site graph.
func (r *registration) buildTransientDelegate(ctor *ConstructorInfo, chain *callSiteChain) (InstanceCreator, error) {
	callSite, err := r.container.CallSiteFactory.createConstructorCallSite(r.implementationType, ctor, chain)
	if err != nil {
		return nil, err
	}

	c := r.container
	return func(ctx context.Context) (instance any, err error) {
		defer func() {
			if p := recover(); p != nil {
				instance, err = nil, recoverError(p)
			}
		}()

		return CallSiteResolverInstance.Resolve(callSite, c, ctx)
	}, nil
}

// buildTransientDelegateFromFactory wraps a user factory. The factory receives a
// container bound to the resolution context, so the services it resolves share the
// caller's scope.
func (r *registration) buildTransientDelegateFromFactory(factory Factory) InstanceCreator {
	c := r.container
	implementationType := r.implementationType

	return func(ctx context.Context) (instance any, err error) {
		defer func() {
			if p := recover(); p != nil {
				instance, err = nil, recoverError(p)
			}
		}()

		instance = factory(c.bind(ctx))
		if reflectx.IsNil(instance) {
			return nil, &errorx.NilInstanceError{ImplementationType: implementationType}
		}

		if t := reflect.TypeOf(instance); !t.AssignableTo(implementationType) {
			return nil, &errorx.TypeIncompatibilityError{To: implementationType, From: t}
		}
		return instance, nil
	}
}

// enter marks the registration as being constructed on the path of ctx.
func (r *registration) enter(ctx context.Context) (context.Context, error) {
	if isResolving(ctx, r.self) {
		return nil, r.fail(errorx.StageConstruction, &errorx.CircularDependencyError{
			Message: "a circular dependency was detected while constructing '" + r.implementationType.String() + "'.",
		})
	}
	return withResolving(ctx, r.self), nil
}

func (r *registration) fail(stage errorx.Stage, err error) error {
	return &errorx.ResolutionError{
		ImplementationType: r.implementationType,
		Stage:              stage,
		Err:                err,
	}
}

// compileOnce runs build once per registration. A registration already on chain is
// being compiled further up the stack, which means the graph has a cycle. Waiting on
// a compile that waits on chain is a cycle as well, split across two chains.
func compileOnce[T any](r *registration, chain *callSiteChain, lazy *syncx.Lazy[T], build func(*callSiteChain) (T, error)) (T, error) {
	if v, ok := lazy.Load(); ok {
		return v, nil
	}

	if chain == nil {
		chain = newCallSiteChain()
	}
	if err := chain.CheckCircularDependency(r.self); err != nil {
		var zero T
		return zero, r.fail(errorx.StageCompile, err)
	}
	if chain.Add(r.self, nil) {
		defer chain.Remove(r.self)
	}

	v, err := lazy.GetAs(&chain.owner, func() (T, error) {
		v, err := build(chain)
		if err != nil {
			return v, r.fail(errorx.StageCompile, err)
		}

		r.container.logger.Debug("registration compiled",
			zap.Stringer("implementation", r.implementationType),
			zap.String("lifestyle", r.lifestyle.Name()))
		return v, nil
	})
	if errors.Is(err, syncx.ErrDeadlock) {
		return v, r.fail(errorx.StageCompile, &errorx.CircularDependencyError{
			Message: "a circular dependency was detected for the service of type '" + r.implementationType.String() + "' while another goroutine was compiling it.",
		})
	}
	return v, err
}

// singletonRegistration creates its instance once per container.
type singletonRegistration struct {
	registration
	strategy creatorStrategy
	// external instances are owned by the caller and never disposed.
	external bool
	creator  syncx.Lazy[InstanceCreator]
	instance syncx.Lazy[any]
}

func newSingletonRegistration(l Lifestyle, c *container, implementationType reflect.Type, strategy creatorStrategy) *singletonRegistration {
	r := &singletonRegistration{strategy: strategy}
	r.init(r, l, c, implementationType)
	return r
}

func newInstanceRegistration(c *container, instance any) *singletonRegistration {
	r := newSingletonRegistration(Lifestyle_Singleton, c, reflect.TypeOf(instance),
		func(*registration, *callSiteChain) (InstanceCreator, error) {
			return func(context.Context) (any, error) { return instance, nil }, nil
		})
	r.external = true
	return r
}

func (r *singletonRegistration) BuildExpression() (CallSite, error) {
	return r.buildExpression(nil)
}

func (r *singletonRegistration) buildExpression(chain *callSiteChain) (CallSite, error) {
	if _, err := r.compile(chain); err != nil {
		return nil, err
	}
	return r.expression, nil
}

func (r *singletonRegistration) compile(chain *callSiteChain) (InstanceCreator, error) {
	return compileOnce(&r.registration, chain, &r.creator, func(chain *callSiteChain) (InstanceCreator, error) {
		return r.strategy(&r.registration, chain)
	})
}

func (r *singletonRegistration) GetInstance(ctx context.Context) (any, error) {
	if v, ok := r.instance.Load(); ok {
		return v, nil
	}

	creator, err := r.compile(nil)
	if err != nil {
		return nil, err
	}

	ctx, err = r.enter(orBackground(ctx))
	if err != nil {
		return nil, err
	}

	return r.instance.Get(func() (any, error) {
		// singletons outlive every scope, so their dependencies never see the caller's scope.
		v, err := creator(withoutScope(ctx))
		if err != nil {
			return nil, r.fail(errorx.StageConstruction, err)
		}

		if !r.external {
			if err := r.container.Root.captureDisposable(v); err != nil {
				return nil, r.fail(errorx.StageConstruction, err)
			}
		}
		return v, nil
	})
}

// transientRegistration creates a new instance on every resolution.
type transientRegistration struct {
	registration
	strategy creatorStrategy
	creator  syncx.Lazy[InstanceCreator]
}

func newTransientRegistration(l Lifestyle, c *container, implementationType reflect.Type, strategy creatorStrategy) *transientRegistration {
	r := &transientRegistration{strategy: strategy}
	r.init(r, l, c, implementationType)
	return r
}

func (r *transientRegistration) BuildExpression() (CallSite, error) {
	return r.buildExpression(nil)
}

func (r *transientRegistration) buildExpression(chain *callSiteChain) (CallSite, error) {
	if _, err := r.compile(chain); err != nil {
		return nil, err
	}
	return r.expression, nil
}

func (r *transientRegistration) compile(chain *callSiteChain) (InstanceCreator, error) {
	return compileOnce(&r.registration, chain, &r.creator, func(chain *callSiteChain) (InstanceCreator, error) {
		return r.strategy(&r.registration, chain)
	})
}

func (r *transientRegistration) GetInstance(ctx context.Context) (any, error) {
	creator, err := r.compile(nil)
	if err != nil {
		return nil, err
	}

	ctx, err = r.enter(orBackground(ctx))
	if err != nil {
		return nil, err
	}

	v, err := creator(ctx)
	if err != nil {
		return nil, r.fail(errorx.StageConstruction, err)
	}

	// transient disposables live as long as the scope they were resolved in.
	owner := ScopeFrom(ctx)
	if owner == nil {
		owner = r.container.Root
	}
	if err := owner.captureDisposable(v); err != nil {
		return nil, r.fail(errorx.StageConstruction, err)
	}
	return v, nil
}
