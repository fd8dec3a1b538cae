package attach

import "fmt"

// Category selects the constraint row applied to a file before upload.
type Category string

const (
	// CategoryArtwork covers original front/back product artwork.
	CategoryArtwork Category = "artwork"
	// CategoryOrderArtwork covers artwork re-attached on an order line
	// item. Deliberately looser than CategoryArtwork: print files were
	// already validated when the product was created.
	CategoryOrderArtwork Category = "order_artwork"
	// CategoryMockup covers the up-to-two mockup photos on an order.
	CategoryMockup Category = "mockup"
	// CategoryProductImage covers the product main image and gallery.
	CategoryProductImage Category = "product_image"
)

// Constraint is one row of the per-category constraint table.
type Constraint struct {
	MinWidth      int
	MinHeight     int
	AllowedSlots  []Slot
	RequireSquare bool
}

// allowedImageTypes lists the MIME types the engine accepts for any category.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var constraintTable = map[Category]Constraint{
	CategoryArtwork: {
		MinWidth:     1000,
		MinHeight:    1000,
		AllowedSlots: []Slot{SlotFront, SlotBack},
	},
	CategoryOrderArtwork: {
		MinWidth:     300,
		MinHeight:    300,
		AllowedSlots: []Slot{SlotFront, SlotBack},
	},
	CategoryMockup: {
		MinWidth:     800,
		MinHeight:    800,
		AllowedSlots: []Slot{SlotMockup1, SlotMockup2},
	},
	CategoryProductImage: {
		MinWidth:      1000,
		MinHeight:     1000,
		AllowedSlots:  []Slot{SlotFront, SlotGeneric},
		RequireSquare: true,
	},
}

// ConstraintFor returns the constraint row for a category. Unknown categories
// return the zero Constraint, which rejects every slot.
func ConstraintFor(c Category) Constraint {
	return constraintTable[c]
}

// ValidationReason classifies why a file failed validation.
type ValidationReason string

const (
	ReasonUnsupportedType ValidationReason = "unsupported_type"
	ReasonTooSmall        ValidationReason = "too_small"
	ReasonNotSquare       ValidationReason = "not_square"
	ReasonSlotNotAllowed  ValidationReason = "slot_not_allowed"
)

// ValidationError reports a client-side constraint failure. It is surfaced
// immediately and never reaches the transport.
type ValidationError struct {
	Reason    ValidationReason
	MinWidth  int
	MinHeight int
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonUnsupportedType:
		return "unsupported image type"
	case ReasonTooSmall:
		return fmt.Sprintf("image must be at least %dx%d pixels", e.MinWidth, e.MinHeight)
	case ReasonNotSquare:
		return "image must be square"
	case ReasonSlotNotAllowed:
		return "slot not allowed for this category"
	default:
		return "invalid image"
	}
}

// Validate checks an already-measured file against the constraint row for
// category. Pure and synchronous; returns nil or a *ValidationError.
func Validate(category Category, slot Slot, contentType string, d Dimensions) error {
	c := ConstraintFor(category)

	if !slotAllowed(c, slot) {
		return &ValidationError{Reason: ReasonSlotNotAllowed}
	}
	if !allowedImageTypes[contentType] {
		return &ValidationError{Reason: ReasonUnsupportedType}
	}
	if d.Width < c.MinWidth || d.Height < c.MinHeight {
		return &ValidationError{
			Reason:    ReasonTooSmall,
			MinWidth:  c.MinWidth,
			MinHeight: c.MinHeight,
		}
	}
	if c.RequireSquare && d.Width != d.Height {
		return &ValidationError{Reason: ReasonNotSquare}
	}
	return nil
}

func slotAllowed(c Constraint, slot Slot) bool {
	for _, s := range c.AllowedSlots {
		if s == slot {
			return true
		}
	}
	return false
}
