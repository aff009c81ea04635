// Package idregistry hands out stable, monotonically increasing identities
// for channels. Select uses these identities (rather than pointer values)
// to fix a global lock order across channels of a single select call,
// matching the "fixed global order (e.g., by address or by a stable
// channel identifier)" guidance for avoiding select registration deadlocks.
package idregistry

import (
	"sync/atomic"

	"github.com/cornelk/hashmap"
)

// Registry assigns and looks up stable identities for registered handles.
type Registry[T any] struct {
	next    atomic.Uint64
	entries *hashmap.Map[uint64, T]
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: hashmap.New[uint64, T]()}
}

// Register assigns handle a fresh identity and returns it.
func (r *Registry[T]) Register(handle T) uint64 {
	id := r.next.Add(1)
	r.entries.Set(id, handle)
	return id
}

// Lookup returns the handle registered under id, if any.
func (r *Registry[T]) Lookup(id uint64) (T, bool) {
	return r.entries.Get(id)
}

// Forget removes id from the registry. Safe to call more than once.
func (r *Registry[T]) Forget(id uint64) {
	r.entries.Del(id)
}

// Len reports how many handles are currently registered.
func (r *Registry[T]) Len() int {
	return r.entries.Len()
}
