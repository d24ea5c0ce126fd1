package injector

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
)

var CallSiteResolverInstance *CallSiteResolver = newCallSiteResolver()

type resolverContext struct {
	Ctx       context.Context
	Container *container
}

// CallSiteResolver evaluates call-site graphs. Sharing of instances is not its
// concern: registration call sites delegate to the registration, which applies its
// lifestyle.
type CallSiteResolver struct{}

func (r *CallSiteResolver) Resolve(callSite CallSite, c *container, ctx context.Context) (any, error) {
	return r.visitCallSite(callSite, resolverContext{Ctx: ctx, Container: c})
}

func (r *CallSiteResolver) visitCallSite(callSite CallSite, ctx resolverContext) (any, error) {
	switch callSite.Kind() {
	case CallSiteKind_Registration:
		return r.visitRegistration(callSite.(*RegistrationCallSite), ctx)
	case CallSiteKind_Slice:
		return r.visitSlice(callSite.(*SliceCallSite), ctx)
	case CallSiteKind_Constructor:
		return r.visitConstructor(callSite.(*ConstructorCallSite), ctx)
	case CallSiteKind_Constant:
		return r.visitConstant(callSite.(*ConstantCallSite), ctx)
	case CallSiteKind_Container:
		return r.visitContainer(callSite.(*ContainerCallSite), ctx)
	default:
		return nil, errors.New("unknow call site kind")
	}
}

func (r *CallSiteResolver) visitRegistration(callSite *RegistrationCallSite, ctx resolverContext) (any, error) {
	return callSite.Registration.GetInstance(ctx.Ctx)
}

func (r *CallSiteResolver) visitConstructor(callSite *ConstructorCallSite, ctx resolverContext) (any, error) {
	numParams := len(callSite.Parameters)
	inValues := make([]reflect.Value, numParams)
	if numParams > 0 {
		var v any
		var err error
		for i, p := range callSite.Parameters {
			if v, err = r.visitCallSite(p, ctx); err != nil {
				return nil, err
			}
			inValues[i] = valueOf(v, callSite.Ctor.In[i])
		}
	}

	outValues := callSite.Ctor.Call(inValues)

	numOut := len(outValues)
	if numOut == 1 {
		return outValues[0].Interface(), nil
	} else if numOut == 2 {
		if outValues[1].IsNil() {
			return outValues[0].Interface(), nil
		}
		if err, ok := outValues[1].Interface().(error); ok {
			return nil, err
		}
		return nil, errors.New("the type of the second out parameter is not error")
	} else {
		return nil, errors.New("unexpected output parameters")
	}
}

func (r *CallSiteResolver) visitConstant(callSite *ConstantCallSite, ctx resolverContext) (any, error) {
	return callSite.Value(), nil
}

func (r *CallSiteResolver) visitContainer(callSite *ContainerCallSite, ctx resolverContext) (any, error) {
	return ctx.Container.bind(ctx.Ctx), nil
}

func (r *CallSiteResolver) visitSlice(callSite *SliceCallSite, ctx resolverContext) (any, error) {
	size := len(callSite.CallSites)
	s := reflect.MakeSlice(callSite.ServiceType(), size, size)

	var v any
	var err error
	for i, cs := range callSite.CallSites {
		v, err = r.visitCallSite(cs, ctx)
		if err != nil {
			return nil, err
		}
		s.Index(i).Set(valueOf(v, callSite.Elem))
	}

	return s.Interface(), nil
}

func newCallSiteResolver() *CallSiteResolver {
	return &CallSiteResolver{}
}
