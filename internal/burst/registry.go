package burst

import "sync"

// Registry holds one polling state machine per IP and serializes access to
// each. Watch loops for different IPs evaluate concurrently.
type Registry struct {
	opts Options

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		managers: make(map[string]*Manager),
	}
}

// Evaluate advances the named IP's state machine one step.
func (r *Registry) Evaluate(ipID string, in Input) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.managers[ipID]
	if !ok {
		m = NewManager(r.opts)
		r.managers[ipID] = m
	}
	return m.Evaluate(in)
}

// Mode returns the named IP's current polling mode without advancing it.
func (r *Registry) Mode(ipID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[ipID]; ok {
		return m.Mode()
	}
	return ModeBase
}
