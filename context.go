package injector

import (
	"context"

	"github.com/dozm/injector/errorx"
)

type scopeKey struct{}

type resolvingKey struct{}

// WithScope returns a copy of ctx that carries scope as the ambient scope.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	if scope == nil {
		panic(errorx.NewArgumentNilError("scope"))
	}
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the ambient scope carried by ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// orBackground treats a nil ctx as context.Background.
func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// withoutScope hides the ambient scope of ctx.
func withoutScope(ctx context.Context) context.Context {
	if ScopeFrom(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, (*Scope)(nil))
}

// resolvingFrame is one registration on the construction path of the current call.
type resolvingFrame struct {
	registration Registration
	parent       *resolvingFrame
}

func withResolving(ctx context.Context, r Registration) context.Context {
	parent, _ := ctx.Value(resolvingKey{}).(*resolvingFrame)
	return context.WithValue(ctx, resolvingKey{}, &resolvingFrame{registration: r, parent: parent})
}

func isResolving(ctx context.Context, r Registration) bool {
	f, _ := ctx.Value(resolvingKey{}).(*resolvingFrame)
	for ; f != nil; f = f.parent {
		if f.registration == r {
			return true
		}
	}
	return false
}
