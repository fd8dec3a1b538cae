package owner

import (
	"log/slog"
	"sync"

	"github.com/driftline/attachkit/internal/attach"
	"github.com/driftline/attachkit/models"
)

// LineItemAdapter binds one order line item's artwork slots (front/back) to
// the upload engine. New line items validate against the full artwork
// constraints; the order-detail artwork dialog uses ArtworkDialogCategory
// instead (see NewArtworkDialogAdapter).
type LineItemAdapter struct {
	mu  sync.Mutex
	rec *models.OrderLineItem

	// Artwork drives the front/back slots.
	Artwork *attach.Coordinator

	// Save, if set, persists the columns this adapter owns after each
	// mirror. Column-scoped on purpose: other surfaces (mockup dialog,
	// artwork dialog) hold their own copies of the same row, so writing
	// the whole record would clobber their slot columns with stale
	// values. Errors are logged, not propagated: mirroring must never
	// block the UI.
	Save   SaveColumnsFunc
	logger *slog.Logger
}

// SaveColumnsFunc persists a column-scoped update for one line item row.
type SaveColumnsFunc func(id uint, updates map[string]any) error

// LineItemConfig wires a LineItemAdapter.
type LineItemConfig struct {
	Record    *models.OrderLineItem
	Uploader  attach.Uploader
	Previewer attach.Previewer
	Save      SaveColumnsFunc
	Logger    *slog.Logger
}

// NewLineItemAdapter builds the adapter and hydrates the registry from the
// record's persisted artwork ids.
func NewLineItemAdapter(cfg LineItemConfig) *LineItemAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ad := &LineItemAdapter{rec: cfg.Record, Save: cfg.Save, logger: logger}
	ad.Artwork = attach.NewCoordinator(attach.CoordinatorConfig{
		Category:  attach.CategoryArtwork,
		Uploader:  cfg.Uploader,
		Previewer: cfg.Previewer,
		OnChange:  ad.apply,
		Logger:    logger,
	})
	// Capture before hydrating: the first Hydrate re-mirrors the record,
	// clearing fields for slots not yet hydrated.
	front, back := cfg.Record.FrontArtworkID, cfg.Record.BackArtworkID
	if front != "" {
		ad.Artwork.Hydrate(front, attach.SlotFront, "")
	}
	if back != "" {
		ad.Artwork.Hydrate(back, attach.SlotBack, "")
	}
	return ad
}

// apply mirrors the registry into the record's persisted slot fields.
func (ad *LineItemAdapter) apply(_ []attach.Attachment) {
	ad.mu.Lock()
	ad.rec.FrontArtworkID = successID(ad.Artwork, attach.SlotFront)
	ad.rec.BackArtworkID = successID(ad.Artwork, attach.SlotBack)
	id := ad.rec.ID
	updates := map[string]any{
		"front_artwork_id": ad.rec.FrontArtworkID,
		"back_artwork_id":  ad.rec.BackArtworkID,
	}
	ad.mu.Unlock()

	if ad.Save != nil {
		if err := ad.Save(id, updates); err != nil {
			ad.logger.Error("failed to persist line item artwork", "line_item", id, "err", err)
		}
	}
}

// CanAdd reports whether the add control for slot should be enabled.
func (ad *LineItemAdapter) CanAdd(slot attach.Slot) bool {
	return canAdd(ad.Artwork, slot)
}

// Rejected returns entries awaiting a re-upload or delete decision.
func (ad *LineItemAdapter) Rejected() []attach.Attachment {
	return rejected(ad.Artwork)
}

// CheckSubmit refuses submission while uploads are unsettled or, for
// non-exempt items, while neither artwork slot has a successful occupant.
func (ad *LineItemAdapter) CheckSubmit() error {
	if anyInFlight(ad.Artwork) {
		return ErrUploadsInFlight
	}
	ad.mu.Lock()
	exempt := ad.rec.ArtworkExempt
	front, back := ad.rec.FrontArtworkID, ad.rec.BackArtworkID
	ad.mu.Unlock()
	if !exempt && front == "" && back == "" {
		return ErrMissingArtwork
	}
	return nil
}
