package injector

import "context"

// ServiceAccessor resolves one service type for the resolution context ctx.
type ServiceAccessor func(ctx context.Context) (any, error)

type ContainerEngine interface {
	RealizeService(CallSite) (ServiceAccessor, error)
}

type containerEngine struct {
	container *container
}

func (engine *containerEngine) RealizeService(callSite CallSite) (ServiceAccessor, error) {
	c := engine.container

	// registrations already cache what they compiled, the accessor only skips the graph walk.
	if rcs, ok := callSite.(*RegistrationCallSite); ok {
		return rcs.Registration.GetInstance, nil
	}

	return func(ctx context.Context) (any, error) {
		return CallSiteResolverInstance.Resolve(callSite, c, ctx)
	}, nil
}

func newContainerEngine(c *container) ContainerEngine {
	return &containerEngine{container: c}
}
