// Package groutine spawns named goroutines for the stress harnesses, so
// a CPU profile of a run attributes samples to "distvec-router-3" or
// "ring-pass-worker-7" instead of an anonymous stack. The channel
// primitive itself never spawns goroutines; only the harnesses driving
// it do.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey struct{}

// Go starts a goroutine named name, carrying the name both as a pprof
// label and in the context handed to fn.
//
//	groutine.Go(ctx, "ring-pass-worker-7", func(ctx context.Context) {
//	    // work
//	})
//
// A nil parentCtx is treated as context.Background().
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, ctxKey{}, name)
		fn(ctx)
	})
}

// Name returns the name Go attached to ctx, or "" for a goroutine that
// wasn't started through this package.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKey{}).(string); ok {
		return s
	}
	return ""
}
