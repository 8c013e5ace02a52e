package scheduler

import (
	"fmt"
	"sort"
	"sync"
)

// Registry keeps the named jobs of the process so they can be toggled at runtime.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Scheduler
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*Scheduler{}}
}

func (r *Registry) Register(s *Scheduler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[s.Name()]; ok {
		return fmt.Errorf("job %q already registered", s.Name())
	}
	r.jobs[s.Name()] = s
	return nil
}

func (r *Registry) Get(name string) (*Scheduler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.jobs[name]
	return s, ok
}

// Statuses returns every job sorted by name.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.jobs))
	for _, s := range r.jobs {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.jobs {
		s.Stop()
	}
}
