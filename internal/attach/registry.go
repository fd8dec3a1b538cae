package attach

// Registry is the ordered collection of attachments for one owning record.
// It is a plain data structure: all mutation goes through the owning
// Coordinator (or the reconciler it drives), which serializes access.
//
// Live entries obey:
//   - at most one settled occupant per exclusive slot (a pending replacement
//     may coexist with the success entry it will evict on completion)
//   - ids are unique at every point in time
//   - the front/main entry sits at index 0 when present
type Registry struct {
	entries []*Attachment
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Insert adds an attachment. A front entry is kept at index 0 so that owners
// rendering the list always show the main image first; everything else keeps
// insertion order.
func (r *Registry) Insert(a *Attachment) {
	if a.Slot == SlotFront {
		r.entries = append([]*Attachment{a}, r.entries...)
		return
	}
	r.entries = append(r.entries, a)
}

// Find returns the entry with the given id, or nil.
func (r *Registry) Find(id string) *Attachment {
	for _, a := range r.entries {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Remove deletes the entry with the given id and reports whether it existed.
// Removal is immediate and unconditional; suppressing any still-outstanding
// transport completion for the id is the deletionGuard's job, not the
// registry's.
func (r *Registry) Remove(id string) bool {
	for i, a := range r.entries {
		if a.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Occupant returns the authoritative occupant of an exclusive slot: the
// settled (success) entry if one exists, otherwise the most recent live
// entry. Returns nil for empty slots and for SlotGeneric.
func (r *Registry) Occupant(slot Slot) *Attachment {
	if !slot.Exclusive() {
		return nil
	}
	var latest *Attachment
	for _, a := range r.entries {
		if a.Slot != slot {
			continue
		}
		if a.Status == StatusSuccess {
			return a
		}
		latest = a
	}
	return latest
}

// SlotBusy reports whether an exclusive slot has an upload in flight.
func (r *Registry) SlotBusy(slot Slot) bool {
	for _, a := range r.entries {
		if a.Slot == slot && a.Status.InFlight() {
			return true
		}
	}
	return false
}

// BySlot returns all entries holding slot, in registry order.
func (r *Registry) BySlot(slot Slot) []*Attachment {
	var out []*Attachment
	for _, a := range r.entries {
		if a.Slot == slot {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Snapshot returns a copy of the registry contents safe to hand to callers
// outside the coordinator lock. Attachment values are copied; cancel handles
// are not exposed.
func (r *Registry) Snapshot() []Attachment {
	out := make([]Attachment, 0, len(r.entries))
	for _, a := range r.entries {
		c := *a
		c.cancel = nil
		out = append(out, c)
	}
	return out
}

// evictOthers hard-removes every entry other than keepID that occupies the
// given exclusive slot, returning the removed entries. Called by the
// reconciler when a replacement upload settles successfully.
func (r *Registry) evictOthers(slot Slot, keepID string) []*Attachment {
	if !slot.Exclusive() {
		return nil
	}
	var evicted []*Attachment
	kept := r.entries[:0]
	for _, a := range r.entries {
		if a.Slot == slot && a.ID != keepID {
			evicted = append(evicted, a)
			continue
		}
		kept = append(kept, a)
	}
	r.entries = kept
	return evicted
}
