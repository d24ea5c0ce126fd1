package injector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dozm/injector/errorx"
	"github.com/dozm/injector/reflectx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ id int32 }

type gadget struct{}

func newWidgetRegistration(t *testing.T, c RootContainer, count *int32) *DelegateScopedRegistration {
	t.Helper()
	r, err := NewDelegateScopedRegistration[*widget](ContextScopedLifestyle(), c, func() *widget {
		return &widget{id: atomic.AddInt32(count, 1)}
	})
	require.NoError(t, err)
	return r
}

func TestScopedRegistration_WidgetScenario(t *testing.T) {
	c := Builder().Build()
	count := int32(0)
	r := newWidgetRegistration(t, c, &count)

	s1 := c.CreateScope()
	ctx1 := WithScope(context.Background(), s1)

	first, err := GetInstanceOf[*widget](ctx1, r)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		w, err := GetInstanceOf[*widget](ctx1, r)
		require.NoError(t, err)
		assert.Same(t, first, w)
	}
	assert.EqualValues(t, 1, count)

	s2 := c.CreateScope()
	second, err := GetInstanceOf[*widget](WithScope(context.Background(), s2), r)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, count)
}

func TestScopedRegistration_BuildExpressionIsIdempotent(t *testing.T) {
	providerCalls := int32(0)
	l := NewScopedLifestyle("Counting", func(c RootContainer) ScopeAccessor {
		atomic.AddInt32(&providerCalls, 1)
		return ScopeFrom
	})

	c := Builder().Build()
	r, err := NewAutoWiredScopedRegistration(l, c, func() *gadget { return &gadget{} })
	require.NoError(t, err)

	_, ok := r.state.Load()
	assert.False(t, ok)

	e1, err := r.BuildExpression()
	require.NoError(t, err)
	s1, ok := r.state.Load()
	require.True(t, ok)

	for i := 0; i < 3; i++ {
		e, err := r.BuildExpression()
		require.NoError(t, err)
		assert.Same(t, e1, e)
	}

	s2, _ := r.state.Load()
	assert.Same(t, s1, s2)
	assert.NotNil(t, s2.scopeAccessor)
	assert.NotNil(t, s2.instanceCreator)
	assert.EqualValues(t, 1, providerCalls)

	rcs, ok := e1.(*RegistrationCallSite)
	require.True(t, ok)
	assert.Equal(t, r.ImplementationType(), rcs.ServiceType())
	assert.Same(t, r, rcs.Registration.(*AutoWiredScopedRegistration))
}

func TestScopedRegistration_GetInstanceBeforeBuildExpression(t *testing.T) {
	c := Builder().Build()
	count := int32(0)
	r := newWidgetRegistration(t, c, &count)

	ctx := WithScope(context.Background(), c.CreateScope())
	w, err := r.GetInstance(ctx)
	require.NoError(t, err)

	e, err := r.BuildExpression()
	require.NoError(t, err)

	v, err := e.(*RegistrationCallSite).Registration.GetInstance(ctx)
	require.NoError(t, err)
	assert.Same(t, w, v)
}

func TestScopedRegistration_NoScopePassthrough(t *testing.T) {
	c := Builder().Build()
	count := int32(0)
	r := newWidgetRegistration(t, c, &count)

	_, err := r.GetInstance(context.Background())

	var noScope *errorx.NoActiveScopeError
	require.True(t, errors.As(err, &noScope))
	assert.Equal(t, r.ImplementationType(), noScope.ImplementationType)
	assert.Equal(t, ContextScopedLifestyle().Name(), noScope.Lifestyle)

	var resolution *errorx.ResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, errorx.StageScopeLookup, resolution.Stage)
	assert.Contains(t, err.Error(), "*injector.widget")

	assert.EqualValues(t, 0, count)
	assert.Empty(t, c.RootScope().instances)
}

func TestScopedRegistration_ConcurrentFirstAccess(t *testing.T) {
	c := Builder().Build()
	count := int32(0)
	r, err := NewDelegateScopedRegistration[*widget](ContextScopedLifestyle(), c, func() *widget {
		time.Sleep(5 * time.Millisecond)
		return &widget{id: atomic.AddInt32(&count, 1)}
	})
	require.NoError(t, err)

	ctx := WithScope(context.Background(), c.CreateScope())

	const k = 64
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]any, k)
	errs := make([]error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = r.GetInstance(ctx)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, count)
	for i := 0; i < k; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestScopedRegistration_ConcurrentBuildExpression(t *testing.T) {
	providerCalls := int32(0)
	l := NewScopedLifestyle("Counting", func(c RootContainer) ScopeAccessor {
		atomic.AddInt32(&providerCalls, 1)
		return ScopeFrom
	})
	c := Builder().Build()
	r, err := NewAutoWiredScopedRegistration(l, c, func() *gadget { return &gadget{} })
	require.NoError(t, err)

	const k = 32
	var wg sync.WaitGroup
	expressions := make([]CallSite, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			expressions[i], _ = r.BuildExpression()
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, providerCalls)
	for _, e := range expressions {
		assert.Same(t, expressions[0], e)
	}
}

func TestScopedRegistration_DelegateAndAutoWiredShareScopeSemantics(t *testing.T) {
	c := Builder().Build()

	delegateCount := int32(0)
	delegated := newWidgetRegistration(t, c, &delegateCount)

	ctorCount := int32(0)
	autoWired, err := NewAutoWiredScopedRegistration(ContextScopedLifestyle(), c, func() *gadget {
		atomic.AddInt32(&ctorCount, 1)
		return &gadget{}
	})
	require.NoError(t, err)

	for s := 0; s < 3; s++ {
		ctx := WithScope(context.Background(), c.CreateScope())
		for i := 0; i < 5; i++ {
			_, err := delegated.GetInstance(ctx)
			require.NoError(t, err)
			_, err = autoWired.GetInstance(ctx)
			require.NoError(t, err)
		}
	}

	assert.EqualValues(t, 3, delegateCount)
	assert.EqualValues(t, 3, ctorCount)
}

func TestScopedRegistration_AutoWiredParameters(t *testing.T) {
	b := Builder()
	AddScoped[*gadget](b, func() *gadget { return &gadget{} })
	c := b.Build()

	type pair struct{ a, b *gadget }
	r, err := NewAutoWiredScopedRegistration(ContextScopedLifestyle(), c, func(a, b *gadget) *pair {
		return &pair{a: a, b: b}
	})
	require.NoError(t, err)

	ctx := WithScope(context.Background(), c.CreateScope())
	p, err := GetInstanceOf[*pair](ctx, r)
	require.NoError(t, err)
	assert.Same(t, p.a, p.b)
	assert.Same(t, p.a, GetWithContext[*gadget](ctx, c))
}

func TestScopedRegistration_CompileFailure(t *testing.T) {
	c := Builder().Build()

	r, err := NewAutoWiredScopedRegistration(ContextScopedLifestyle(), c, func(w *widget) *gadget { return &gadget{} })
	require.NoError(t, err)

	_, err = r.BuildExpression()
	var notFound *errorx.ServiceNotFound
	require.True(t, errors.As(err, &notFound))

	var resolution *errorx.ResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, errorx.StageCompile, resolution.Stage)

	_, ok := r.state.Load()
	assert.False(t, ok)

	_, err = r.GetInstance(WithScope(context.Background(), c.CreateScope()))
	assert.True(t, errors.As(err, &notFound))
}

func TestScopedRegistration_RetryAfterFailedCompile(t *testing.T) {
	calls := int32(0)
	l := NewScopedLifestyle("Flaky", func(c RootContainer) ScopeAccessor {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil
		}
		return ScopeFrom
	})

	c := Builder().Build()
	r, err := NewAutoWiredScopedRegistration(l, c, func() *gadget { return &gadget{} })
	require.NoError(t, err)

	_, err = r.BuildExpression()
	var argument *errorx.ArgumentError
	require.True(t, errors.As(err, &argument))

	e, err := r.BuildExpression()
	require.NoError(t, err)
	assert.NotNil(t, e)
	assert.EqualValues(t, 2, calls)
}

func TestScopedRegistration_ConsumedOutsideOfContainer(t *testing.T) {
	c := Builder().Build()
	count := int32(0)
	r := newWidgetRegistration(t, c, &count)

	e, err := r.BuildExpression()
	require.NoError(t, err)

	ctx := WithScope(context.Background(), c.CreateScope())

	// an evaluator that only knows the call site
	viaCallSite, err := e.(*RegistrationCallSite).Registration.GetInstance(ctx)
	require.NoError(t, err)

	viaResolver, err := CallSiteResolverInstance.Resolve(e, c.(*container), ctx)
	require.NoError(t, err)

	viaRegistration, err := r.GetInstance(ctx)
	require.NoError(t, err)

	assert.Same(t, viaCallSite, viaResolver)
	assert.Same(t, viaCallSite, viaRegistration)
	assert.EqualValues(t, 1, count)
}

func TestScopedRegistration_ScopeOfAnotherContainer(t *testing.T) {
	c := Builder().Build()
	other := Builder().Build()
	count := int32(0)
	r := newWidgetRegistration(t, c, &count)

	_, err := r.GetInstance(WithScope(context.Background(), other.CreateScope()))

	var argument *errorx.ArgumentError
	assert.True(t, errors.As(err, &argument))
	assert.EqualValues(t, 0, count)
}

func TestNewDelegateScopedRegistration_InvalidArguments(t *testing.T) {
	c := Builder().Build()

	var argNil *errorx.ArgumentNilError
	_, err := NewDelegateScopedRegistration[*widget](nil, c, func() *widget { return nil })
	assert.True(t, errors.As(err, &argNil))

	_, err = NewDelegateScopedRegistration[*widget](ContextScopedLifestyle(), c, nil)
	assert.True(t, errors.As(err, &argNil))

	_, err = NewDelegateScopedRegistration[*widget](ContextScopedLifestyle(), nil, func() *widget { return nil })
	assert.True(t, errors.As(err, &argNil))

	assert.Panics(t, func() {
		newDelegateScopedRegistration(ContextScopedLifestyle(), c.(*container), nil, nil)
	})

	var signature *errorx.FuncSignatureError
	_, err = NewAutoWiredScopedRegistration(ContextScopedLifestyle(), c, 42)
	assert.True(t, errors.As(err, &signature))
}

func TestScopedRegistration_NilFromFactory(t *testing.T) {
	c := Builder().Build()
	r, err := NewDelegateScopedRegistration[*widget](ContextScopedLifestyle(), c, func() *widget { return nil })
	require.NoError(t, err)

	_, err = r.GetInstance(WithScope(context.Background(), c.CreateScope()))

	var nilInstance *errorx.NilInstanceError
	assert.True(t, errors.As(err, &nilInstance))

	var resolution *errorx.ResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, errorx.StageConstruction, resolution.Stage)
}

func TestScopedRegistration_PanicInConstructor(t *testing.T) {
	c := Builder().Build()
	r, err := NewAutoWiredScopedRegistration(ContextScopedLifestyle(), c, func() *gadget { panic("out of gadgets") })
	require.NoError(t, err)

	var v any
	require.NotPanics(t, func() {
		v, err = r.GetInstance(WithScope(context.Background(), c.CreateScope()))
	})
	assert.Nil(t, v)

	var resolution *errorx.ResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, errorx.StageConstruction, resolution.Stage)
	assert.Equal(t, r.ImplementationType(), resolution.ImplementationType)
	assert.Contains(t, err.Error(), "out of gadgets")
}

func TestScopedRegistration_NilContext(t *testing.T) {
	b := Builder()
	b.Add(WithLifestyle[*gadget](RootFallbackScopedLifestyle(), func() *gadget { return &gadget{} }))
	c := b.Build()

	r, err := RegistrationOf[*gadget](c)
	require.NoError(t, err)
	scoped, ok := r.(*AutoWiredScopedRegistration)
	require.True(t, ok)

	var root any
	require.NotPanics(t, func() { root, err = r.GetInstance(nil) })
	require.NoError(t, err)
	assert.Same(t, root, Get[*gadget](c))

	scope := c.CreateScope()
	var inScope, viaScope any
	require.NotPanics(t, func() {
		inScope, err = GetScopedInstance(nil, scoped.ScopedRegistration, scope)
	})
	require.NoError(t, err)
	assert.NotSame(t, root, inScope)

	require.NotPanics(t, func() {
		viaScope, err = scope.GetContext(nil, reflectx.TypeOf[*gadget]())
	})
	require.NoError(t, err)
	assert.Same(t, inScope, viaScope)
}
