// Package registry implements a process-wide registry of lazily built
// singletons, with a reset hook for tests.
//
// Framework components that are expensive to build (tokenizers, device
// handles, cached datasets) register themselves by name and are built at most
// once per process. Tests that mutate singleton state should call
// ResetAfterTest so the following test starts from a clean registry.
package registry

import (
	"sync"
	"testing"

	"github.com/gomlx/exceptions"
)

var (
	mu        sync.Mutex
	instances = make(map[string]any)
)

// Get returns the singleton registered under name, building it with build on
// first access. The build function is called while holding the registry lock,
// so it must not call back into the registry.
//
// It panics if an instance registered under the same name has a different
// type than T.
func Get[T any](name string, build func() T) T {
	mu.Lock()
	defer mu.Unlock()
	if instance, found := instances[name]; found {
		value, ok := instance.(T)
		if !ok {
			exceptions.Panicf("registry: singleton %q holds a %T, not the requested type", name, instance)
		}
		return value
	}
	value := build()
	instances[name] = value
	return value
}

// Delete drops the singleton registered under name, if any. The next Get for
// that name builds a fresh instance.
func Delete(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(instances, name)
}

// Len returns the number of live singletons.
func Len() int {
	mu.Lock()
	defer mu.Unlock()
	return len(instances)
}

// Reset drops all registered singletons.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	instances = make(map[string]any)
}

// ResetAfterTest registers a Reset to run when the test (and its subtests)
// finish, whatever the outcome.
func ResetAfterTest(tb testing.TB) {
	tb.Cleanup(Reset)
}
