// Package registry holds the window → menu mapping and the registrar
// operations that mutate it.
package registry

import (
	"time"
)

// Registration records where a window's dbusmenu object lives.
type Registration struct {
	WindowID       uint32    `json:"window_id" yaml:"window_id"`
	MenuObjectPath string    `json:"menu_object_path" yaml:"menu_object_path"`
	Sender         string    `json:"sender,omitempty" yaml:"sender,omitempty"`             // Unique bus name of the registering client
	RegisteredAt   time.Time `json:"registered_at" yaml:"registered_at"`
}

// Registry is an insertion-ordered map of window id to Registration.
// It is not safe for concurrent use; the registrar confines it to the event
// loop.
type Registry struct {
	byWindow map[uint32]*Registration
	order    []uint32
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byWindow: make(map[uint32]*Registration),
	}
}

// Put inserts or overwrites the registration for reg.WindowID. An
// overwritten entry keeps its position. It reports whether an entry was
// replaced and returns the previous value.
func (r *Registry) Put(reg Registration) (previous Registration, replaced bool) {
	if old, exists := r.byWindow[reg.WindowID]; exists {
		previous = *old
		*old = reg
		return previous, true
	}

	stored := reg
	r.byWindow[reg.WindowID] = &stored
	r.order = append(r.order, reg.WindowID)
	return Registration{}, false
}

// Get returns the registration for windowID.
func (r *Registry) Get(windowID uint32) (Registration, bool) {
	reg, exists := r.byWindow[windowID]
	if !exists {
		return Registration{}, false
	}
	return *reg, true
}

// Remove deletes windowID. It reports whether the id was present.
func (r *Registry) Remove(windowID uint32) bool {
	if _, exists := r.byWindow[windowID]; !exists {
		return false
	}

	delete(r.byWindow, windowID)
	for i, id := range r.order {
		if id == windowID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// RemoveSender deletes every registration made by sender and returns the
// removed window ids in registration order.
func (r *Registry) RemoveSender(sender string) []uint32 {
	if sender == "" {
		return nil
	}

	var removed []uint32
	kept := r.order[:0]
	for _, id := range r.order {
		if r.byWindow[id].Sender == sender {
			removed = append(removed, id)
			delete(r.byWindow, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed
}

// WindowIDs returns the registered window ids in insertion order.
func (r *Registry) WindowIDs() []uint32 {
	ids := make([]uint32, len(r.order))
	copy(ids, r.order)
	return ids
}

// Registrations returns a copy of all registrations in insertion order.
func (r *Registry) Registrations() []Registration {
	regs := make([]Registration, 0, len(r.order))
	for _, id := range r.order {
		regs = append(regs, *r.byWindow[id])
	}
	return regs
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	return len(r.order)
}
