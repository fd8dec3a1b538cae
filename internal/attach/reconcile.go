package attach

// reconcileOutcome tells the coordinator what housekeeping a reconciliation
// produced so side effects (preview release) can run outside the pure part.
type reconcileOutcome struct {
	// changed is true when the registry was mutated.
	changed bool
	// releaseURIs lists local preview URIs whose backing resource is no
	// longer needed.
	releaseURIs []string
}

// reconcile merges one transport result into the registry. This is the
// central correctness rule of the engine: a guarded id's completion is
// discarded entirely, so a slow success cannot re-insert a deleted image and
// a slow failure cannot flip a deleted id back to rejected and re-display it.
//
// Pure with respect to the outside world: it touches only the registry and
// guard it is handed and performs no I/O, so it is safe to run even after
// the owning record's UI has been torn down.
func reconcile(reg *Registry, guard *deletionGuard, id string, res Result) reconcileOutcome {
	// Deleted while in flight: the guard entry has served its purpose.
	if guard.Has(id) {
		guard.Remove(id)
		return reconcileOutcome{}
	}

	// Deleted through a path that never populated the guard.
	a := reg.Find(id)
	if a == nil {
		return reconcileOutcome{}
	}

	if !res.OK {
		// Keep Source and LocalPreviewURI so the user can re-upload.
		a.Status = StatusRejected
		a.Message = res.Message
		a.cancel = nil
		return reconcileOutcome{changed: true}
	}

	out := reconcileOutcome{changed: true}

	// The old local id is retired in the same step the remote id is
	// installed, so the registry never holds both.
	a.ID = res.RemoteID
	a.RemoteURI = res.RemoteURI
	a.Status = StatusSuccess
	a.Message = ""
	a.cancel = nil
	a.Source = nil
	if a.LocalPreviewURI != "" {
		out.releaseURIs = append(out.releaseURIs, a.LocalPreviewURI)
		a.LocalPreviewURI = ""
	}

	// Only now does a replacement actually displace the previous occupant
	// of an exclusive slot. A failed upload never destroys the image that
	// was already there.
	for _, evicted := range reg.evictOthers(a.Slot, a.ID) {
		if evicted.LocalPreviewURI != "" {
			out.releaseURIs = append(out.releaseURIs, evicted.LocalPreviewURI)
		}
	}
	return out
}
