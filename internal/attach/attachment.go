// Package attach implements the media-attachment upload engine: optimistic
// insertion of an attachment into a per-record slot registry, asynchronous
// upload through a pluggable transport, and reconciliation of late transport
// results against deletions the user made while the upload was in flight.
package attach

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Slot names the role an attachment occupies on its owning record.
type Slot string

const (
	SlotFront   Slot = "front"
	SlotBack    Slot = "back"
	SlotMockup1 Slot = "mockup1"
	SlotMockup2 Slot = "mockup2"
	// SlotGeneric is used by unordered multi-image owners such as a product
	// gallery. It is the only non-exclusive slot.
	SlotGeneric Slot = "generic"
)

// Exclusive reports whether at most one live attachment may hold this slot.
func (s Slot) Exclusive() bool {
	return s != SlotGeneric
}

// Status is the lifecycle state of an attachment.
type Status string

const (
	StatusPending         Status = "pending"
	StatusSuccess         Status = "success"
	StatusRejected        Status = "rejected"
	StatusReUploadPending Status = "reupload_pending"
)

// InFlight reports whether a transport call may still settle for this status.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusReUploadPending
}

// localIDPrefix namespaces ids assigned at optimistic-insert time so they can
// never collide with ids assigned by the remote store.
const localIDPrefix = "local-"

func newLocalID() string {
	return localIDPrefix + uuid.New().String()
}

// IsLocalID reports whether id was assigned locally and has not yet been
// replaced by a remote id.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// Source is an opaque handle to the original binary selected by the user. It
// is retained on the attachment until the upload succeeds or is abandoned so
// that a rejected upload can be retried with the same bytes.
type Source interface {
	// Bytes returns the full content of the file.
	Bytes() ([]byte, error)
	// Name returns the original filename.
	Name() string
	// ContentType returns the declared MIME type.
	ContentType() string
}

// Dimensions holds measured pixel dimensions of an image.
type Dimensions struct {
	Width  int
	Height int
}

// Attachment is one user-visible image slot occupant.
type Attachment struct {
	// ID starts in the local-temporary id space and is replaced by the
	// remote id exactly once, at successful reconciliation.
	ID     string
	Slot   Slot
	Status Status

	// LocalPreviewURI is set at optimistic insert and cleared once the
	// remote preview is authoritative.
	LocalPreviewURI string
	// RemoteURI is set only on success.
	RemoteURI string

	// Source is nil for attachments hydrated from a persisted record.
	Source     Source
	Dimensions Dimensions

	// Message carries the user-facing reason for a rejected upload.
	Message string

	// cancel aborts the in-flight transport call. Present only while a
	// call is outstanding for this attachment.
	cancel context.CancelFunc
}

// Hydrated reports whether the attachment was restored from a persisted
// record rather than a local file selection. Hydrated attachments cannot be
// re-uploaded; the caller must start over with a fresh file.
func (a *Attachment) Hydrated() bool {
	return a.Source == nil && a.Status == StatusSuccess
}
