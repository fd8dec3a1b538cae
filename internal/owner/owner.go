// Package owner binds upload-engine registries to the persisted fields of
// the records that own them. One adapter per call site: order line items,
// product drafts, and the order-detail artwork and mockup dialogs.
//
// Every adapter follows the same contract: on each registry change it
// mirrors the remote ids of successful exclusive-slot occupants into the
// record, it reports whether the "add" control for a slot should be enabled,
// it exposes rejected entries for the re-upload/delete affordances, and it
// gates final submit on all required slots being settled.
package owner

import (
	"errors"

	"github.com/driftline/attachkit/internal/attach"
)

var (
	// ErrUploadsInFlight blocks submit while any attachment is still
	// pending or re-uploading.
	ErrUploadsInFlight = errors.New("owner: attachments still uploading")
	// ErrMissingArtwork blocks submit of a non-exempt line item with no
	// successfully uploaded artwork.
	ErrMissingArtwork = errors.New("owner: line item needs at least one artwork image")
	// ErrMissingMainImage blocks submit of a product draft without a main
	// image.
	ErrMissingMainImage = errors.New("owner: product needs a main image")
)

// successID returns the remote id mirrored for a slot: the id of its success
// occupant, or empty when the slot has none.
func successID(c *attach.Coordinator, slot attach.Slot) string {
	a, ok := c.Occupant(slot)
	if !ok || a.Status != attach.StatusSuccess {
		return ""
	}
	return a.ID
}

// canAdd implements the control-enablement rule: adding to a slot is allowed
// only when the slot is empty or its lone occupant is rejected.
func canAdd(c *attach.Coordinator, slot attach.Slot) bool {
	a, ok := c.Occupant(slot)
	if !ok {
		return true
	}
	return a.Status == attach.StatusRejected
}

// rejected returns the rejected entries of a coordinator, for rendering
// re-upload and delete affordances.
func rejected(c *attach.Coordinator) []attach.Attachment {
	var out []attach.Attachment
	for _, a := range c.Snapshot() {
		if a.Status == attach.StatusRejected {
			out = append(out, a)
		}
	}
	return out
}

// anyInFlight reports whether any attachment across the given coordinators
// has an unsettled upload.
func anyInFlight(cs ...*attach.Coordinator) bool {
	for _, c := range cs {
		for _, a := range c.Snapshot() {
			if a.Status.InFlight() {
				return true
			}
		}
	}
	return false
}
