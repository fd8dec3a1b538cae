package owner

import (
	"log/slog"
	"sync"

	"github.com/driftline/attachkit/internal/attach"
	"github.com/driftline/attachkit/models"
)

// DialogConfig wires the order-detail dialog adapters.
type DialogConfig struct {
	Record    *models.OrderLineItem
	Uploader  attach.Uploader
	Previewer attach.Previewer
	Save      SaveColumnsFunc
	Logger    *slog.Logger
}

// ArtworkDialogAdapter binds the order-detail artwork dialog: re-attaching
// front/back artwork on an already-placed order. Uses the looser
// order-artwork constraints since the print files were validated when the
// product was first created.
type ArtworkDialogAdapter struct {
	mu  sync.Mutex
	rec *models.OrderLineItem

	Artwork *attach.Coordinator
	Save    SaveColumnsFunc
	logger  *slog.Logger
}

func NewArtworkDialogAdapter(cfg DialogConfig) *ArtworkDialogAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ad := &ArtworkDialogAdapter{rec: cfg.Record, Save: cfg.Save, logger: logger}
	ad.Artwork = attach.NewCoordinator(attach.CoordinatorConfig{
		Category:  attach.CategoryOrderArtwork,
		Uploader:  cfg.Uploader,
		Previewer: cfg.Previewer,
		OnChange:  ad.apply,
		Logger:    logger,
	})
	// Capture before hydrating; the first Hydrate re-mirrors the record.
	front, back := cfg.Record.FrontArtworkID, cfg.Record.BackArtworkID
	if front != "" {
		ad.Artwork.Hydrate(front, attach.SlotFront, "")
	}
	if back != "" {
		ad.Artwork.Hydrate(back, attach.SlotBack, "")
	}
	return ad
}

func (ad *ArtworkDialogAdapter) apply(_ []attach.Attachment) {
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
			ad.logger.Error("failed to persist artwork change", "line_item", id, "err", err)
		}
	}
}

func (ad *ArtworkDialogAdapter) CanAdd(slot attach.Slot) bool {
	return canAdd(ad.Artwork, slot)
}

func (ad *ArtworkDialogAdapter) Rejected() []attach.Attachment {
	return rejected(ad.Artwork)
}

// CheckSubmit gates closing the dialog with "save": uploads must be settled.
// Artwork presence is not re-checked here; an already-placed order keeps
// whatever it had.
func (ad *ArtworkDialogAdapter) CheckSubmit() error {
	if anyInFlight(ad.Artwork) {
		return ErrUploadsInFlight
	}
	return nil
}

// MockupDialogAdapter binds the order-detail mockup dialog: up to two mockup
// photos per line item.
type MockupDialogAdapter struct {
	mu  sync.Mutex
	rec *models.OrderLineItem

	Mockups *attach.Coordinator
	Save    SaveColumnsFunc
	logger  *slog.Logger
}

func NewMockupDialogAdapter(cfg DialogConfig) *MockupDialogAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ad := &MockupDialogAdapter{rec: cfg.Record, Save: cfg.Save, logger: logger}
	ad.Mockups = attach.NewCoordinator(attach.CoordinatorConfig{
		Category:  attach.CategoryMockup,
		Uploader:  cfg.Uploader,
		Previewer: cfg.Previewer,
		OnChange:  ad.apply,
		Logger:    logger,
	})
	// Capture before hydrating; the first Hydrate re-mirrors the record.
	m1, m2 := cfg.Record.Mockup1ID, cfg.Record.Mockup2ID
	if m1 != "" {
		ad.Mockups.Hydrate(m1, attach.SlotMockup1, "")
	}
	if m2 != "" {
		ad.Mockups.Hydrate(m2, attach.SlotMockup2, "")
	}
	return ad
}

func (ad *MockupDialogAdapter) apply(_ []attach.Attachment) {
	ad.mu.Lock()
	ad.rec.Mockup1ID = successID(ad.Mockups, attach.SlotMockup1)
	ad.rec.Mockup2ID = successID(ad.Mockups, attach.SlotMockup2)
	id := ad.rec.ID
	updates := map[string]any{
		"mockup1_id": ad.rec.Mockup1ID,
		"mockup2_id": ad.rec.Mockup2ID,
	}
	ad.mu.Unlock()

	if ad.Save != nil {
		if err := ad.Save(id, updates); err != nil {
			ad.logger.Error("failed to persist mockup change", "line_item", id, "err", err)
		}
	}
}

func (ad *MockupDialogAdapter) CanAdd(slot attach.Slot) bool {
	return canAdd(ad.Mockups, slot)
}

func (ad *MockupDialogAdapter) Rejected() []attach.Attachment {
	return rejected(ad.Mockups)
}

// CheckSubmit gates closing the dialog: mockups are optional, so only
// unsettled uploads block.
func (ad *MockupDialogAdapter) CheckSubmit() error {
	if anyInFlight(ad.Mockups) {
		return ErrUploadsInFlight
	}
	return nil
}
