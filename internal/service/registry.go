package service

import (
	"fmt"
	"sync"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

// runRegistry tracks the single active run slot of each thread.
type runRegistry struct {
	mu     sync.Mutex
	active map[string]domain.Run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{active: make(map[string]domain.Run)}
}

// acquire claims the thread's slot. The returned func releases it and is safe to call twice.
func (r *runRegistry) acquire(run domain.Run) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[run.ThreadID]; busy {
		return nil, fmt.Errorf("thread %s: %w", run.ThreadID, domain.ErrRunInProgress)
	}
	r.active[run.ThreadID] = run

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, run.ThreadID)
			r.mu.Unlock()
		})
	}, nil
}

func (r *runRegistry) update(run domain.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[run.ThreadID]; ok {
		r.active[run.ThreadID] = run
	}
}

func (r *runRegistry) get(threadID string) (domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.active[threadID]
	return run, ok
}
