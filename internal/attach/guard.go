package attach

// deletionGuard tracks ids that were deleted while a transport call was in
// flight. A guarded id's eventual completion is discarded entirely, which is
// what keeps a slow upload from resurrecting an attachment the user already
// removed. A set rather than a single "last deleted" slot: several
// attachments can be deleted mid-flight at once.
type deletionGuard struct {
	ids map[string]struct{}
}

func newDeletionGuard() *deletionGuard {
	return &deletionGuard{ids: make(map[string]struct{})}
}

// Add marks id as deleted-while-in-flight.
func (g *deletionGuard) Add(id string) {
	g.ids[id] = struct{}{}
}

// Has reports whether id is guarded.
func (g *deletionGuard) Has(id string) bool {
	_, ok := g.ids[id]
	return ok
}

// Remove clears id once its in-flight operation has been observed to finish.
func (g *deletionGuard) Remove(id string) {
	delete(g.ids, id)
}

// Len returns the number of guarded ids.
func (g *deletionGuard) Len() int {
	return len(g.ids)
}
