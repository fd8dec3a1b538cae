package owner

import (
	"log/slog"
	"sync"

	"github.com/driftline/attachkit/internal/attach"
	"github.com/driftline/attachkit/models"
)

// ProductAdapter binds a product draft's images to the upload engine: an
// exclusive main image (front slot) plus an insertion-ordered gallery
// (generic slot). The gallery list is rebuilt from registry order on every
// change, main image first.
type ProductAdapter struct {
	mu  sync.Mutex
	rec *models.ProductDraft

	Images *attach.Coordinator
	Save   func(*models.ProductDraft) error
	logger *slog.Logger
}

// ProductConfig wires a ProductAdapter.
type ProductConfig struct {
	Record    *models.ProductDraft
	Uploader  attach.Uploader
	Previewer attach.Previewer
	Save      func(*models.ProductDraft) error
	Logger    *slog.Logger
}

// NewProductAdapter builds the adapter and hydrates main image and gallery
// from the persisted rows.
func NewProductAdapter(cfg ProductConfig) *ProductAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ad := &ProductAdapter{rec: cfg.Record, Save: cfg.Save, logger: logger}
	ad.Images = attach.NewCoordinator(attach.CoordinatorConfig{
		Category:  attach.CategoryProductImage,
		Uploader:  cfg.Uploader,
		Previewer: cfg.Previewer,
		OnChange:  ad.apply,
		Logger:    logger,
	})
	// Capture before hydrating; the first Hydrate re-mirrors the record,
	// rewriting MainImageID and the Images rows mid-loop otherwise.
	mainID := cfg.Record.MainImageID
	rows := append([]models.ProductImage(nil), cfg.Record.Images...)
	for _, img := range rows {
		slot := attach.SlotGeneric
		if img.RemoteID == mainID {
			slot = attach.SlotFront
		}
		ad.Images.Hydrate(img.RemoteID, slot, img.RemoteURI)
	}
	return ad
}

// apply mirrors the main image id and rebuilds the ordered gallery rows.
// The callback argument is ignored: change notifications run outside the
// coordinator lock, so a passed snapshot can arrive after a newer one. The
// registry is re-read under ad.mu instead, so whichever apply runs last
// mirrors the current state.
func (ad *ProductAdapter) apply(_ []attach.Attachment) {
	ad.mu.Lock()
	ad.rec.MainImageID = successID(ad.Images, attach.SlotFront)

	images := ad.rec.Images[:0]
	pos := 0
	for _, a := range ad.Images.Snapshot() {
		if a.Status != attach.StatusSuccess {
			continue
		}
		images = append(images, models.ProductImage{
			ProductDraftID: ad.rec.ID,
			RemoteID:       a.ID,
			RemoteURI:      a.RemoteURI,
			Position:       pos,
		})
		pos++
	}
	ad.rec.Images = images
	rec := ad.rec
	ad.mu.Unlock()

	if ad.Save != nil {
		if err := ad.Save(rec); err != nil {
			ad.logger.Error("failed to persist product images", "product", rec.ID, "err", err)
		}
	}
}

// CanAdd reports whether the add control should be enabled. The generic
// gallery slot never fills up; the main-image slot follows the exclusive
// rule.
func (ad *ProductAdapter) CanAdd(slot attach.Slot) bool {
	if slot == attach.SlotGeneric {
		return true
	}
	return canAdd(ad.Images, slot)
}

// Rejected returns entries awaiting a re-upload or delete decision.
func (ad *ProductAdapter) Rejected() []attach.Attachment {
	return rejected(ad.Images)
}

// CheckSubmit refuses publishing a draft without a main image or with
// unsettled uploads.
func (ad *ProductAdapter) CheckSubmit() error {
	if anyInFlight(ad.Images) {
		return ErrUploadsInFlight
	}
	ad.mu.Lock()
	main := ad.rec.MainImageID
	ad.mu.Unlock()
	if main == "" {
		return ErrMissingMainImage
	}
	return nil
}
