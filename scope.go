package injector

import (
	"context"
	"io"
	"reflect"
	"sync"

	"github.com/dozm/injector/errorx"
	"github.com/dozm/injector/syncx"
	"github.com/dozm/injector/util"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Scope caches the instances of scoped registrations for one unit of work and
// disposes the instances it captured when it is disposed.
type Scope struct {
	container     *container
	isRootScope   bool
	mu            sync.Mutex
	instances     map[*ScopedRegistration]any
	creationLocks syncx.LockMap
	disposed      bool
	disposables   []func() error
}

// GetScopedInstance returns the instance scope holds for r, creating it with the
// instance creator of r on the first request. A nil scope means the lifestyle of r
// found no active scope; it is reported as errorx.NoActiveScopeError.
func GetScopedInstance(ctx context.Context, r *ScopedRegistration, scope *Scope) (any, error) {
	if r == nil {
		return nil, errorx.NewArgumentNilError("registration")
	}

	if scope == nil {
		return nil, r.fail(errorx.StageScopeLookup, &errorx.NoActiveScopeError{
			ImplementationType: r.implementationType,
			Lifestyle:          r.scopedLifestyle.Name(),
		})
	}

	if scope.container != r.container {
		return nil, r.fail(errorx.StageScopeLookup,
			errorx.NewArgumentError("the scope was created by a different container"))
	}

	s, err := r.initialize(nil)
	if err != nil {
		return nil, err
	}
	return scope.getOrCreate(orBackground(ctx), r, s.instanceCreator)
}

func (s *Scope) Get(serviceType reflect.Type) (any, error) {
	return s.GetContext(context.Background(), serviceType)
}

// GetContext resolves serviceType with s as the ambient scope of ctx.
func (s *Scope) GetContext(ctx context.Context, serviceType reflect.Type) (any, error) {
	if s.IsDisposed() {
		return nil, &errorx.ObjectDisposedError{Message: reflect.TypeOf(s).String()}
	}

	return s.container.GetContext(WithScope(orBackground(ctx), s), serviceType)
}

func (s *Scope) Container() Container {
	return s
}

func (s *Scope) CreateScope() *Scope {
	return s.container.CreateScope()
}

func (s *Scope) IsRootScope() bool {
	return s.isRootScope
}

func (s *Scope) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose disposes the captured instances in the reverse order of their creation.
// Errors returned by io.Closer instances are logged.
func (s *Scope) Dispose() {
	if err := s.Close(); err != nil {
		s.container.logger.Warn("scope disposed with errors", zap.Error(err))
	}
}

// Close is Dispose returning the combined errors of the closed instances.
func (s *Scope) Close() error {
	disposables := s.beginDispose()
	util.ReverseSlice(disposables)

	var err error
	for _, dispose := range disposables {
		err = multierr.Append(err, dispose())
	}

	s.container.logger.Debug("scope disposed",
		zap.Bool("root", s.isRootScope),
		zap.Int("disposables", len(disposables)))
	return err
}

func (s *Scope) beginDispose() []func() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	disposables := s.disposables
	s.disposables = nil
	s.instances = nil
	s.mu.Unlock()

	if s.isRootScope && !s.container.IsDisposed() {
		s.container.Dispose()
	}

	return disposables
}

func (s *Scope) lookup(r *ScopedRegistration) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, false, &errorx.ObjectDisposedError{Message: reflect.TypeOf(s).String()}
	}
	v, ok := s.instances[r]
	return v, ok, nil
}

// getOrCreate holds a lock per registration while creating, so concurrent requests
// for the same registration within s create a single instance.
func (s *Scope) getOrCreate(ctx context.Context, r *ScopedRegistration, create InstanceCreator) (any, error) {
	if v, ok, err := s.lookup(r); err != nil || ok {
		return v, err
	}

	ctx, err := r.enter(ctx)
	if err != nil {
		return nil, err
	}

	s.creationLocks.Lock(r)
	defer s.creationLocks.Unlock(r)

	if v, ok, err := s.lookup(r); err != nil || ok {
		return v, err
	}

	v, err := create(WithScope(ctx, s))
	if err != nil {
		return nil, r.fail(errorx.StageConstruction, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		_ = s.captureDisposableWithoutLock(v)
		return nil, r.fail(errorx.StageConstruction, &errorx.ObjectDisposedError{Message: reflect.TypeOf(s).String()})
	}
	if err := s.captureDisposableWithoutLock(v); err != nil {
		return nil, r.fail(errorx.StageConstruction, err)
	}
	s.instances[r] = v
	return v, nil
}

func (s *Scope) captureDisposable(service any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureDisposableWithoutLock(service)
}

func (s *Scope) captureDisposableWithoutLock(service any) error {
	dispose := disposerOf(service)
	if dispose == nil || service == s {
		return nil
	}

	if s.disposed {
		_ = dispose()
		return errors.Errorf("capture disposable service '%v', scope disposed", reflect.TypeOf(service))
	}

	s.disposables = append(s.disposables, dispose)
	return nil
}

func disposerOf(service any) func() error {
	switch d := service.(type) {
	case Disposable:
		return func() error {
			d.Dispose()
			return nil
		}
	case io.Closer:
		return d.Close
	default:
		return nil
	}
}

func newScope(c *container, isRootScope bool) *Scope {
	return &Scope{
		container:   c,
		isRootScope: isRootScope,
		instances:   make(map[*ScopedRegistration]any),
	}
}
