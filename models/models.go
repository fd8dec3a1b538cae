package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	Name      string         `gorm:"size:255;not null"`
	Email     string         `gorm:"size:255;not null;unique"`
}

type Order struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	UserID    uint           `gorm:"not null"`
	User      *User          `json:"user,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Status    string         `gorm:"size:32;default:draft"`
	LineItems []OrderLineItem
}

// OrderLineItem holds one remote id per exclusive attachment slot. Empty
// means the slot has no successfully uploaded occupant. The upload engine's
// adapter mirrors these fields on every registry change.
type OrderLineItem struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	OrderID   uint           `gorm:"not null"`
	ProductID uint
	Quantity  int `gorm:"default:1"`

	FrontArtworkID string `gorm:"size:64"`
	BackArtworkID  string `gorm:"size:64"`
	Mockup1ID      string `gorm:"size:64"`
	Mockup2ID      string `gorm:"size:64"`

	// ArtworkExempt marks line items (e.g. blank samples) that may be
	// submitted without any artwork attached.
	ArtworkExempt bool `gorm:"default:false"`
}

type ProductDraft struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	UserID    uint           `gorm:"not null"`
	Title     string         `gorm:"size:255"`

	MainImageID string `gorm:"size:64"`
	Images      []ProductImage
}

// ProductImage stores ordered gallery entries for a product draft. Position
// follows registry order, main image first.
type ProductImage struct {
	ID             uint `gorm:"primarykey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ProductDraftID uint   `gorm:"not null;index"`
	RemoteID       string `gorm:"size:64;not null"`
	RemoteURI      string
	Position       int `gorm:"not null;default:0"`
}
