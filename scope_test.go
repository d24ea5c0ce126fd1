package injector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dozm/injector/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	disposed []string
}

type recordingCloser struct {
	name string
	rec  *recorder
	err  error
}

func (c *recordingCloser) Close() error {
	c.rec.disposed = append(c.rec.disposed, c.name)
	return c.err
}

type first struct{ *recordingCloser }
type second struct{ *recordingCloser }
type third struct{ *recordingCloser }

func buildRecordingContainer(rec *recorder, errs map[string]error) RootContainer {
	closer := func(name string) *recordingCloser {
		return &recordingCloser{name: name, rec: rec, err: errs[name]}
	}

	b := Builder()
	AddScoped[*first](b, func() *first { return &first{closer("first")} })
	AddScoped[*second](b, func(*first) *second { return &second{closer("second")} })
	AddTransient[*third](b, func(*second) *third { return &third{closer("third")} })
	return b.Build()
}

func TestScope_DisposeInReverseOrder(t *testing.T) {
	rec := &recorder{}
	c := buildRecordingContainer(rec, nil)

	scope := c.CreateScope()
	_ = Get[*third](scope)

	scope.Dispose()
	assert.Equal(t, []string{"third", "second", "first"}, rec.disposed)

	// disposing twice is a no-op
	scope.Dispose()
	assert.Len(t, rec.disposed, 3)
	assert.True(t, scope.IsDisposed())
}

func TestScope_CloseCombinesErrors(t *testing.T) {
	rec := &recorder{}
	c := buildRecordingContainer(rec, map[string]error{
		"first": errors.New("first failed"),
		"third": errors.New("third failed"),
	})

	scope := c.CreateScope()
	_ = Get[*third](scope)

	err := scope.Close()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "first failed")
	assert.Contains(t, err.Error(), "third failed")
	assert.Len(t, rec.disposed, 3)

	assert.NoError(t, scope.Close())
}

func TestScope_DisposeLogsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	b := Builder()
	b.ConfigureOptions(WithLogger(zap.New(core)))
	rec := &recorder{}
	AddScopedFactory[*first](b, func(Container) any {
		return &first{&recordingCloser{name: "first", rec: rec, err: errors.New("boom")}}
	})
	c := b.Build()

	scope := c.CreateScope()
	_ = Get[*first](scope)
	scope.Dispose()

	entries := logs.FilterMessage("scope disposed with errors").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestScope_GetAfterDispose(t *testing.T) {
	rec := &recorder{}
	c := buildRecordingContainer(rec, nil)

	scope := c.CreateScope()
	scope.Dispose()

	var disposed *errorx.ObjectDisposedError
	_, err := TryGet[*first](scope)
	assert.True(t, errors.As(err, &disposed))

	// the scope is still the ambient scope of contexts created before its disposal
	_, err = TryGetWithContext[*first](WithScope(context.Background(), scope), c)
	assert.True(t, errors.As(err, &disposed))
}

func TestScope_SingletonsBelongToRoot(t *testing.T) {
	rec := &recorder{}
	b := Builder()
	AddSingleton[*first](b, func() *first { return &first{&recordingCloser{name: "first", rec: rec}} })
	c := b.Build()

	scope := c.CreateScope()
	s1 := Get[*first](scope)
	scope.Dispose()
	assert.Empty(t, rec.disposed)

	s2 := Get[*first](c.CreateScope())
	assert.Same(t, s1, s2)

	c.Dispose()
	assert.Equal(t, []string{"first"}, rec.disposed)
}

func TestScope_SingletonDoesNotCaptureScopedDependency(t *testing.T) {
	b := Builder()
	AddScoped[*first](b, func() *first { return &first{} })
	AddSingleton[*second](b, func(*first) *second { return &second{} })
	c := b.Build()

	_, err := TryGet[*second](c.CreateScope())

	var noScope *errorx.NoActiveScopeError
	assert.True(t, errors.As(err, &noScope))
}

func TestScope_TransientWithoutScopeBelongsToRoot(t *testing.T) {
	rec := &recorder{}
	b := Builder()
	AddTransient[*third](b, func() *third { return &third{&recordingCloser{name: "third", rec: rec}} })
	c := b.Build()

	_ = Get[*third](c)
	_ = Get[*third](c)
	assert.Empty(t, rec.disposed)

	c.RootScope().Dispose()
	assert.True(t, c.(*container).IsDisposed())
	assert.Len(t, rec.disposed, 2)
}

func TestScope_CreateScope(t *testing.T) {
	c := Builder().Build()
	scope := c.CreateScope()

	nested := scope.CreateScope()
	assert.NotSame(t, scope, nested)
	assert.False(t, nested.IsRootScope())
	assert.True(t, c.RootScope().IsRootScope())
	assert.Same(t, scope, scope.Container())

	c.Dispose()
	assert.Panics(t, func() { c.CreateScope() })
}

func TestGetScopedInstance_InvalidArguments(t *testing.T) {
	c := Builder().Build()
	count := int32(0)
	r := newWidgetRegistration(t, c, &count)

	var argNil *errorx.ArgumentNilError
	_, err := GetScopedInstance(context.Background(), nil, c.CreateScope())
	assert.True(t, errors.As(err, &argNil))

	var noScope *errorx.NoActiveScopeError
	_, err = GetScopedInstance(context.Background(), r.ScopedRegistration, nil)
	assert.True(t, errors.As(err, &noScope))

	assert.Panics(t, func() { WithScope(context.Background(), nil) })
}

func TestScope_ManyScopes(t *testing.T) {
	c := Builder().Build()
	count := int32(0)
	r := newWidgetRegistration(t, c, &count)

	seen := map[int32]bool{}
	for i := 0; i < 10; i++ {
		scope := c.CreateScope()
		w, err := GetInstanceOf[*widget](WithScope(context.Background(), scope), r)
		require.NoError(t, err, fmt.Sprintf("scope %d", i))
		assert.False(t, seen[w.id])
		seen[w.id] = true
		scope.Dispose()
	}
}
