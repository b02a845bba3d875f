package ports

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

const (
	// EphemeralPortMin and EphemeralPortMax bound the ports drawn in auto mode.
	EphemeralPortMin = 49152
	EphemeralPortMax = 60999

	// MaxPortAttempts bounds the random draws made by one allocation.
	MaxPortAttempts = 25
)

// Allocator picks ports for new anvil processes.
type Allocator struct {
	registry *Registry
	log      *slog.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

// NewAllocator creates an allocator backed by the shared registry.
func NewAllocator(registry *Registry, log *slog.Logger) *Allocator {
	return &Allocator{
		registry: registry,
		log:      log.With("component", "ports"),
		rand:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithSource replaces the random source. Used in tests.
func (a *Allocator) WithSource(src rand.Source) *Allocator {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rand = rand.New(src)
	return a
}

// Registry returns the backing registry.
func (a *Allocator) Registry() *Registry {
	return a.registry
}

// Allocate returns the preferred port when one is given, recording it.
// Otherwise it claims defaultPort if no provider has tried it yet, and then
// draws random ephemeral ports until one is unclaimed.
func (a *Allocator) Allocate(preferred *int, defaultPort int) (int, error) {
	if preferred != nil {
		a.registry.Record(*preferred)
		return *preferred, nil
	}

	if defaultPort > 0 && a.registry.Claim(defaultPort) {
		a.log.Debug("allocated default port", "port", defaultPort)
		return defaultPort, nil
	}

	tried := make([]int, 0, MaxPortAttempts)
	for range MaxPortAttempts {
		port := a.draw()
		tried = append(tried, port)
		if a.registry.Claim(port) {
			a.log.Debug("allocated ephemeral port", "port", port, "draws", len(tried))
			return port, nil
		}
	}
	return 0, domain.PortExhaustedError{Tried: tried}
}

func (a *Allocator) draw() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return EphemeralPortMin + a.rand.IntN(EphemeralPortMax-EphemeralPortMin+1)
}
