package browser

import (
	"sync"
)

// Registry maps session ids to connection handles. Its lock guards the map
// only; callers do all connection I/O on the clones it hands out.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Handle)}
}

// Register inserts h under id. It never overwrites an existing entry.
func (r *Registry) Register(id string, h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return ErrSessionExists
	}
	r.sessions[id] = h
	return nil
}

// Lookup returns a clone of the handle registered under id. The caller must
// Release it.
func (r *Registry) Lookup(id string) (*Handle, error) {
	r.mu.Lock()
	h, ok := r.sessions[id]
	if ok {
		h.clone()
	}
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// Remove deletes id and hands the registry's reference to the caller.
func (r *Registry) Remove(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return h, ok
}

// RemoveIf deletes id only while it still maps to h.
func (r *Registry) RemoveIf(id string, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[id]; ok && cur == h {
		delete(r.sessions, id)
		return true
	}
	return false
}

// Snapshot returns clones of every registered handle. Each must be released.
func (r *Registry) Snapshot() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := make([]*Handle, 0, len(r.sessions))
	for _, h := range r.sessions {
		handles = append(handles, h.clone())
	}
	return handles
}

// Drain removes every entry and hands the registry's references to the
// caller.
func (r *Registry) Drain() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := make([]*Handle, 0, len(r.sessions))
	for id, h := range r.sessions {
		handles = append(handles, h)
		delete(r.sessions, id)
	}
	return handles
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
