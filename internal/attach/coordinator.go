package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Caller-contract violations. These indicate a UI bug (a control that should
// have been disabled), not a runtime condition, so unlike transport failures
// they surface as errors.
var (
	// ErrSlotBusy is returned by Begin when the exclusive slot already has
	// an upload in flight.
	ErrSlotBusy = errors.New("attach: slot already has an upload in flight")
	// ErrNotFound is returned by Reupload for an unknown attachment id.
	ErrNotFound = errors.New("attach: no such attachment")
	// ErrNotRejected is returned by Reupload unless the attachment is in
	// rejected status.
	ErrNotRejected = errors.New("attach: attachment is not rejected")
	// ErrNoSource is returned by Reupload when the attachment holds no
	// retained source file (hydrated from a persisted record). The caller
	// must route the user through Begin with a fresh file instead.
	ErrNoSource = errors.New("attach: attachment has no retained source file")
)

// CoordinatorConfig wires a Coordinator's collaborators.
type CoordinatorConfig struct {
	Category  Category
	Uploader  Uploader
	Previewer Previewer
	// OnChange, if set, is called with a fresh snapshot after every
	// registry mutation. Invoked outside the coordinator's lock, so the
	// callback may call back into the coordinator.
	OnChange func([]Attachment)
	Logger   *slog.Logger
}

// Coordinator orchestrates the upload lifecycle for the attachments of one
// owning record: validate, optimistic insert, transport call, reconcile,
// cancel, re-upload. A mutex serializes all registry and guard mutation;
// transport calls run in their own goroutines and re-enter through settle.
type Coordinator struct {
	mu    sync.Mutex
	wg    sync.WaitGroup
	reg   *Registry
	guard *deletionGuard

	category  Category
	uploader  Uploader
	previewer Previewer
	onChange  func([]Attachment)
	logger    *slog.Logger
}

// NewCoordinator builds a coordinator with an empty registry.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		reg:       NewRegistry(),
		guard:     newDeletionGuard(),
		category:  cfg.Category,
		uploader:  cfg.Uploader,
		previewer: cfg.Previewer,
		onChange:  cfg.OnChange,
		logger:    logger.With("category", string(cfg.Category)),
	}
}

// Begin validates the file, inserts a pending attachment, and starts the
// upload. It returns the local-temporary id immediately so the caller can
// render the preview optimistically.
//
// Beginning over a settled occupant of an exclusive slot is the replace
// path: the old image stays in place and is evicted only if the new upload
// succeeds. Beginning over an in-flight occupant is refused with ErrSlotBusy.
func (c *Coordinator) Begin(src Source, slot Slot) (string, error) {
	dims, err := c.previewer.Measure(src)
	if err != nil {
		return "", fmt.Errorf("measuring %s: %w", src.Name(), err)
	}
	if err := Validate(c.category, slot, src.ContentType(), dims); err != nil {
		return "", err
	}

	previewURI, err := c.previewer.CreatePreview(src)
	if err != nil {
		return "", fmt.Errorf("creating preview for %s: %w", src.Name(), err)
	}

	c.mu.Lock()
	if slot.Exclusive() && c.reg.SlotBusy(slot) {
		c.mu.Unlock()
		c.previewer.Release(previewURI)
		return "", ErrSlotBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Attachment{
		ID:              newLocalID(),
		Slot:            slot,
		Status:          StatusPending,
		LocalPreviewURI: previewURI,
		Source:          src,
		Dimensions:      dims,
		cancel:          cancel,
	}
	c.reg.Insert(a)
	id := a.ID
	snap := c.reg.Snapshot()
	c.mu.Unlock()

	c.logger.Info("upload started", "id", id, "slot", string(slot), "file", src.Name())
	c.notify(snap)
	c.wg.Add(1)
	go c.run(ctx, id, src)
	return id, nil
}

// Remove deletes the attachment immediately, regardless of any in-flight
// transport activity for its id. If a call is in flight its cancel token is
// triggered and the id is guarded so the eventual completion is discarded.
// Removing an unknown id is a no-op.
func (c *Coordinator) Remove(id string) {
	c.mu.Lock()
	a := c.reg.Find(id)
	if a == nil {
		c.mu.Unlock()
		return
	}
	if a.cancel != nil {
		c.guard.Add(id)
		a.cancel()
	}
	c.reg.Remove(id)
	uri := a.LocalPreviewURI
	snap := c.reg.Snapshot()
	c.mu.Unlock()

	if uri != "" {
		c.previewer.Release(uri)
	}
	c.logger.Info("attachment removed", "id", id, "slot", string(a.Slot))
	c.notify(snap)
}

// Reupload retries a rejected upload with the originally retained file.
func (c *Coordinator) Reupload(id string) error {
	c.mu.Lock()
	a := c.reg.Find(id)
	if a == nil {
		c.mu.Unlock()
		return ErrNotFound
	}
	if a.Status != StatusRejected {
		c.mu.Unlock()
		return ErrNotRejected
	}
	if a.Source == nil {
		c.mu.Unlock()
		return ErrNoSource
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.Status = StatusReUploadPending
	a.Message = ""
	a.cancel = cancel
	src := a.Source
	slot := a.Slot
	snap := c.reg.Snapshot()
	c.mu.Unlock()

	c.logger.Info("upload retried", "id", id, "slot", string(slot))
	c.notify(snap)
	c.wg.Add(1)
	go c.run(ctx, id, src)
	return nil
}

// Hydrate inserts an already-uploaded attachment restored from the owning
// record's persisted fields. No local file is retained, so a hydrated entry
// can be removed but not re-uploaded.
func (c *Coordinator) Hydrate(remoteID string, slot Slot, remoteURI string) {
	c.mu.Lock()
	c.reg.Insert(&Attachment{
		ID:        remoteID,
		Slot:      slot,
		Status:    StatusSuccess,
		RemoteURI: remoteURI,
	})
	snap := c.reg.Snapshot()
	c.mu.Unlock()
	c.notify(snap)
}

// Snapshot returns a copy of the current registry contents.
func (c *Coordinator) Snapshot() []Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Snapshot()
}

// Occupant returns a copy of the authoritative occupant of an exclusive
// slot, or false if the slot is empty.
func (c *Coordinator) Occupant(slot Slot) (Attachment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.reg.Occupant(slot)
	if a == nil {
		return Attachment{}, false
	}
	cp := *a
	cp.cancel = nil
	return cp, true
}

// Wait blocks until every transport call started by this coordinator has
// settled, including completions that will be discarded. Used at teardown.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// run performs one transport call and feeds the result back through the
// reconciler. It is the only code that runs off the caller's goroutine.
func (c *Coordinator) run(ctx context.Context, id string, src Source) {
	defer c.wg.Done()
	res := c.uploader.Upload(ctx, src, c.category)
	c.settle(id, res)
}

func (c *Coordinator) settle(id string, res Result) {
	c.mu.Lock()
	out := reconcile(c.reg, c.guard, id, res)
	var snap []Attachment
	if out.changed {
		snap = c.reg.Snapshot()
	}
	c.mu.Unlock()

	for _, uri := range out.releaseURIs {
		c.previewer.Release(uri)
	}

	if !out.changed {
		// Stale completion of a deleted attachment. Success from the
		// user's point of view: nothing to report.
		c.logger.Debug("stale completion discarded", "id", id, "ok", res.OK)
		return
	}
	if res.OK {
		c.logger.Info("upload settled", "id", id, "remote_id", res.RemoteID)
	} else {
		c.logger.Warn("upload rejected", "id", id, "reason", res.Message)
	}
	c.notify(snap)
}

func (c *Coordinator) notify(snap []Attachment) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}
