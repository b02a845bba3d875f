package ports

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry records every port attempted during this run. It is shared by
// all providers created from one app and only grows.
type Registry struct {
	mu        sync.Mutex
	attempted map[int]struct{}
	order     []int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{attempted: make(map[int]struct{})}
}

// Claim records the port and reports whether it had not been attempted before.
func (r *Registry) Claim(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = append(r.order, port)
	if _, ok := r.attempted[port]; ok {
		return false
	}
	r.attempted[port] = struct{}{}
	return true
}

// Record marks the port as attempted.
func (r *Registry) Record(port int) {
	r.Claim(port)
}

// Contains reports whether the port was attempted.
func (r *Registry) Contains(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.attempted[port]
	return ok
}

// Attempted returns the distinct attempted ports in ascending order.
func (r *Registry) Attempted() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ports := lo.Keys(r.attempted)
	slices.Sort(ports)
	return ports
}

// Draws returns the number of recorded draws, duplicates included.
func (r *Registry) Draws() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
