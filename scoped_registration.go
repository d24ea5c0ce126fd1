package injector

import (
	"context"
	"reflect"

	"github.com/dozm/injector/errorx"
	"github.com/dozm/injector/reflectx"
	"github.com/dozm/injector/syncx"
)

// scopedState is the compiled form of a scoped registration. It is published once
// and never modified, so the accessor and the creator are always seen together.
type scopedState struct {
	scopeAccessor   ScopeAccessor
	instanceCreator InstanceCreator
}

// ScopedRegistration creates at most one instance per scope. The scope is found at
// resolution time with the accessor of its lifestyle; the instance is created with
// the creator built by the concrete registration.
type ScopedRegistration struct {
	registration
	scopedLifestyle ScopedLifestyle
	creatorBuilder  func(chain *callSiteChain) (InstanceCreator, error)
	state           syncx.Lazy[*scopedState]
}

func newScopedRegistration(l ScopedLifestyle) *ScopedRegistration {
	return &ScopedRegistration{scopedLifestyle: l}
}

func (r *ScopedRegistration) ScopedLifestyle() ScopedLifestyle {
	return r.scopedLifestyle
}

func (r *ScopedRegistration) BuildExpression() (CallSite, error) {
	return r.buildExpression(nil)
}

func (r *ScopedRegistration) buildExpression(chain *callSiteChain) (CallSite, error) {
	if _, err := r.initialize(chain); err != nil {
		return nil, err
	}
	return r.expression, nil
}

// initialize asks the lifestyle for the scope accessor and builds the instance
// creator. Both happen under one lock and are stored as a single value.
func (r *ScopedRegistration) initialize(chain *callSiteChain) (*scopedState, error) {
	return compileOnce(&r.registration, chain, &r.state, func(chain *callSiteChain) (*scopedState, error) {
		accessor := r.scopedLifestyle.CreateCurrentScopeProvider(r.container)
		if accessor == nil {
			return nil, errorx.NewArgumentError("lifestyle '" + r.scopedLifestyle.Name() + "' returned no scope accessor")
		}

		creator, err := r.creatorBuilder(chain)
		if err != nil {
			return nil, err
		}

		return &scopedState{scopeAccessor: accessor, instanceCreator: creator}, nil
	})
}

// GetInstance resolves the current scope and returns the instance that scope holds
// for r, creating it on first request. When the accessor reports no scope, the
// outcome is decided by GetScopedInstance.
func (r *ScopedRegistration) GetInstance(ctx context.Context) (any, error) {
	ctx = orBackground(ctx)
	s, err := r.initialize(nil)
	if err != nil {
		return nil, err
	}
	return GetScopedInstance(ctx, r, s.scopeAccessor(ctx))
}

// AutoWiredScopedRegistration creates its instances with a registered constructor
// whose parameters are resolved from the container.
type AutoWiredScopedRegistration struct {
	*ScopedRegistration
	ctor *ConstructorInfo
}

// NewAutoWiredScopedRegistration creates a registration for the implementation type
// returned by ctor, bound to c. Parameters of ctor are resolved from c.
func NewAutoWiredScopedRegistration(l ScopedLifestyle, c RootContainer, ctor any) (*AutoWiredScopedRegistration, error) {
	if l == nil {
		return nil, errorx.NewArgumentNilError("lifestyle")
	}
	rc, err := ownContainer(c)
	if err != nil {
		return nil, err
	}
	if ctor == nil || reflect.TypeOf(ctor).Kind() != reflect.Func {
		return nil, &errorx.FuncSignatureError{Message: "the constructor is not a function"}
	}

	ci := newConstructorInfo(ctor)
	if len(ci.Out) == 0 {
		return nil, &errorx.FuncSignatureError{Message: "the constructor returns nothing"}
	}
	if err := checkConstructor(ci, ci.Out[0]); err != nil {
		return nil, err
	}
	return newAutoWiredScopedRegistration(l, rc, ci.Out[0], ci), nil
}

func newAutoWiredScopedRegistration(l ScopedLifestyle, c *container, implementationType reflect.Type, ctor *ConstructorInfo) *AutoWiredScopedRegistration {
	r := &AutoWiredScopedRegistration{
		ScopedRegistration: newScopedRegistration(l),
		ctor:               ctor,
	}
	r.init(r, l, c, implementationType)
	r.creatorBuilder = r.buildInstanceCreator
	return r
}

func (r *AutoWiredScopedRegistration) buildInstanceCreator(chain *callSiteChain) (InstanceCreator, error) {
	return r.buildTransientDelegate(r.ctor, chain)
}

// DelegateScopedRegistration creates its instances with a user supplied factory.
type DelegateScopedRegistration struct {
	*ScopedRegistration
	userFactory Factory
}

// NewDelegateScopedRegistration creates a registration for T whose instances are
// created by fn, bound to c.
func NewDelegateScopedRegistration[T any](l ScopedLifestyle, c RootContainer, fn func() T) (*DelegateScopedRegistration, error) {
	if l == nil {
		return nil, errorx.NewArgumentNilError("lifestyle")
	}
	if fn == nil {
		return nil, errorx.NewArgumentNilError("factory")
	}
	rc, err := ownContainer(c)
	if err != nil {
		return nil, err
	}
	return newDelegateScopedRegistration(l, rc, reflectx.TypeOf[T](), func(Container) any { return fn() }), nil
}

func newDelegateScopedRegistration(l ScopedLifestyle, c *container, implementationType reflect.Type, factory Factory) *DelegateScopedRegistration {
	if factory == nil {
		panic(errorx.NewArgumentNilError("factory"))
	}

	r := &DelegateScopedRegistration{
		ScopedRegistration: newScopedRegistration(l),
		userFactory:        factory,
	}
	r.init(r, l, c, implementationType)
	r.creatorBuilder = r.buildInstanceCreator
	return r
}

func (r *DelegateScopedRegistration) buildInstanceCreator(*callSiteChain) (InstanceCreator, error) {
	return r.buildTransientDelegateFromFactory(r.userFactory), nil
}

func ownContainer(c RootContainer) (*container, error) {
	if c == nil {
		return nil, errorx.NewArgumentNilError("container")
	}
	rc, ok := c.(*container)
	if !ok {
		return nil, errorx.NewArgumentError("the container was not created by a ContainerBuilder")
	}
	return rc, nil
}
