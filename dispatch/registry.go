package dispatch

import (
	"sort"
	"sync"

	"github.com/caffeineduck/jpcguest/bitcode"
	"github.com/caffeineduck/jpcguest/jpc"
)

// HandlerFunc serves one resolved operation.
type HandlerFunc func(c *bitcode.Context) jpc.Result

// Registry maps operation names to handlers. It is filled before the first
// request is dispatched.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register stores fn under name. A repeated name replaces the earlier
// handler.
func (r *Registry) Register(name string, fn HandlerFunc) {
	r.mu.Lock()
	r.handlers[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	fn, ok := r.handlers[name]
	r.mu.RUnlock()
	return fn, ok
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
