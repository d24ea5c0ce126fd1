package injector

import (
	"context"

	"github.com/dozm/injector/errorx"
)

// ScopeAccessor returns the scope that is current for ctx, or nil when there is none.
type ScopeAccessor func(ctx context.Context) *Scope

// ScopeProviderFactory creates the ScopeAccessor of a scoped lifestyle for one container.
type ScopeProviderFactory func(c RootContainer) ScopeAccessor

// Lifestyle decides how instances of a registration are shared.
type Lifestyle interface {
	Name() string
	createRegistration(c *container, d *Descriptor) (Registration, error)
}

// ScopedLifestyle shares one instance per scope. The scope in effect for a resolution
// is found by the accessor returned from CreateCurrentScopeProvider, which is requested
// once per registration and then cached by it.
type ScopedLifestyle interface {
	Lifestyle
	CreateCurrentScopeProvider(c RootContainer) ScopeAccessor
}

var (
	Lifestyle_Singleton Lifestyle = singletonLifestyle{}
	Lifestyle_Transient Lifestyle = transientLifestyle{}

	// Lifestyle_Scoped resolves to Options.DefaultScopedLifestyle of the container the
	// service is registered in.
	Lifestyle_Scoped ScopedLifestyle = defaultScopedLifestyle{}
)

var (
	contextScoped = &scopedLifestyle{
		name: "Context Scoped",
		provider: func(RootContainer) ScopeAccessor {
			return ScopeFrom
		},
	}

	rootFallbackScoped = &scopedLifestyle{
		name: "Root Fallback Scoped",
		provider: func(c RootContainer) ScopeAccessor {
			root := c.RootScope()
			return func(ctx context.Context) *Scope {
				if s := ScopeFrom(ctx); s != nil {
					return s
				}
				return root
			}
		},
	}
)

// ContextScopedLifestyle returns the lifestyle whose current scope is the one attached
// to the resolution context with WithScope. Resolving outside of a scope fails with
// errorx.NoActiveScopeError.
func ContextScopedLifestyle() ScopedLifestyle {
	return contextScoped
}

// RootFallbackScopedLifestyle returns a lifestyle that behaves like ContextScopedLifestyle
// inside a scope and caches in the container's root scope outside of one.
func RootFallbackScopedLifestyle() ScopedLifestyle {
	return rootFallbackScoped
}

// NewScopedLifestyle creates a scoped lifestyle backed by a custom scope provider,
// e.g. one bound to a request of a web framework.
func NewScopedLifestyle(name string, provider ScopeProviderFactory) ScopedLifestyle {
	if provider == nil {
		panic(errorx.NewArgumentNilError("provider"))
	}
	return &scopedLifestyle{name: name, provider: provider}
}

type scopedLifestyle struct {
	name     string
	provider ScopeProviderFactory
}

func (l *scopedLifestyle) Name() string   { return l.name }
func (l *scopedLifestyle) String() string { return l.name }

func (l *scopedLifestyle) CreateCurrentScopeProvider(c RootContainer) ScopeAccessor {
	return l.provider(c)
}

func (l *scopedLifestyle) createRegistration(c *container, d *Descriptor) (Registration, error) {
	switch {
	case d.Ctor != nil:
		return newAutoWiredScopedRegistration(l, c, d.ImplementationType(), d.Ctor), nil
	case d.Factory != nil:
		return newDelegateScopedRegistration(l, c, d.ServiceType, d.Factory), nil
	default:
		return nil, &errorx.InvalidDescriptor{ServiceType: d.ServiceType}
	}
}

type defaultScopedLifestyle struct{}

func (defaultScopedLifestyle) Name() string   { return "Scoped" }
func (defaultScopedLifestyle) String() string { return "Scoped" }

func (defaultScopedLifestyle) CreateCurrentScopeProvider(c RootContainer) ScopeAccessor {
	if rc, ok := c.(*container); ok {
		return rc.options.DefaultScopedLifestyle.CreateCurrentScopeProvider(c)
	}
	return contextScoped.CreateCurrentScopeProvider(c)
}

func (defaultScopedLifestyle) createRegistration(c *container, d *Descriptor) (Registration, error) {
	return c.options.DefaultScopedLifestyle.createRegistration(c, d)
}

type singletonLifestyle struct{}

func (singletonLifestyle) Name() string   { return "Singleton" }
func (singletonLifestyle) String() string { return "Singleton" }

func (l singletonLifestyle) createRegistration(c *container, d *Descriptor) (Registration, error) {
	switch {
	case d.Instance != nil:
		return newInstanceRegistration(c, d.Instance), nil
	case d.Ctor != nil:
		return newSingletonRegistration(l, c, d.ImplementationType(), autoWired(d.Ctor)), nil
	case d.Factory != nil:
		return newSingletonRegistration(l, c, d.ServiceType, delegate(d.Factory)), nil
	default:
		return nil, &errorx.InvalidDescriptor{ServiceType: d.ServiceType}
	}
}

type transientLifestyle struct{}

func (transientLifestyle) Name() string   { return "Transient" }
func (transientLifestyle) String() string { return "Transient" }

func (l transientLifestyle) createRegistration(c *container, d *Descriptor) (Registration, error) {
	switch {
	case d.Ctor != nil:
		return newTransientRegistration(l, c, d.ImplementationType(), autoWired(d.Ctor)), nil
	case d.Factory != nil:
		return newTransientRegistration(l, c, d.ServiceType, delegate(d.Factory)), nil
	default:
		return nil, &errorx.InvalidDescriptor{ServiceType: d.ServiceType}
	}
}
