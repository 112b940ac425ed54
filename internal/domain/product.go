package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InventoryStatus string

const (
	InStock    InventoryStatus = "IN_STOCK"
	LowStock   InventoryStatus = "LOW_STOCK"
	OutOfStock InventoryStatus = "OUT_OF_STOCK"
)

type Product struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title" validate:"required"`
	Brand              string           `json:"brand,omitempty"`
	Price              decimal.Decimal  `json:"price"`
	CompareAtPrice     *decimal.Decimal `json:"compareAtPrice,omitempty"`
	Images             []string         `json:"images"`
	Bullets            []string         `json:"bullets"`
	Description        string           `json:"description,omitempty"`
	DescriptionHeading string           `json:"descriptionHeading,omitempty"`
	DescriptionPoints  []string         `json:"descriptionPoints"`
	YoutubeURL         string           `json:"youtubeUrl,omitempty" validate:"omitempty,url"`
	Video              string           `json:"video,omitempty"`
	SKU                string           `json:"sku" validate:"required"`
	InventoryStatus    InventoryStatus  `json:"inventoryStatus" validate:"oneof=IN_STOCK LOW_STOCK OUT_OF_STOCK"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// Validate checks a product before it is stored. Empty inventory status
// defaults to IN_STOCK and nil slices become empty ones.
func (p *Product) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	p.SKU = strings.TrimSpace(p.SKU)
	p.YoutubeURL = strings.TrimSpace(p.YoutubeURL)
	if p.InventoryStatus == "" {
		p.InventoryStatus = InStock
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Bullets == nil {
		p.Bullets = []string{}
	}
	if p.DescriptionPoints == nil {
		p.DescriptionPoints = []string{}
	}

	if err := validate.Struct(p); err != nil {
		tags := failedTags(err)
		switch {
		case tags["required"]:
			return fmt.Errorf("%w: title and sku are required", ErrInvalidProduct)
		case tags["oneof"]:
			return fmt.Errorf("%w: unknown inventoryStatus %q", ErrInvalidProduct, p.InventoryStatus)
		case tags["url"]:
			return fmt.Errorf("%w: youtubeUrl must be a url", ErrInvalidProduct)
		}
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.CompareAtPrice != nil && p.CompareAtPrice.IsNegative() {
		return fmt.Errorf("%w: compareAtPrice must not be negative", ErrInvalidProduct)
	}
	return nil
}

// NullableDecimal tells an absent patch key apart from an explicit null.
// Set is true whenever the key was present; a null leaves Value nil.
type NullableDecimal struct {
	Set   bool
	Value *decimal.Decimal
}

func (n *NullableDecimal) UnmarshalJSON(data []byte) error {
	n.Set = true
	n.Value = nil
	if string(data) == "null" {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	n.Value = &d
	return nil
}

// ProductPatch holds the fields an admin may change. Nil means unchanged,
// except CompareAtPrice where an explicit null clears the price.
type ProductPatch struct {
	Title              *string          `json:"title"`
	Brand              *string          `json:"brand"`
	Price              *decimal.Decimal `json:"price"`
	CompareAtPrice     NullableDecimal  `json:"compareAtPrice"`
	Images             *[]string        `json:"images"`
	Bullets            *[]string        `json:"bullets"`
	Description        *string          `json:"description"`
	DescriptionHeading *string          `json:"descriptionHeading"`
	DescriptionPoints  *[]string        `json:"descriptionPoints"`
	YoutubeURL         *string          `json:"youtubeUrl"`
	Video              *string          `json:"video"`
	SKU                *string          `json:"sku"`
	InventoryStatus    *InventoryStatus `json:"inventoryStatus"`
}

// Apply copies the set fields onto p. The result still needs Validate.
func (pp ProductPatch) Apply(p *Product) {
	if pp.Title != nil {
		p.Title = *pp.Title
	}
	if pp.Brand != nil {
		p.Brand = *pp.Brand
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.CompareAtPrice.Set {
		p.CompareAtPrice = nil
		if pp.CompareAtPrice.Value != nil {
			v := *pp.CompareAtPrice.Value
			p.CompareAtPrice = &v
		}
	}
	if pp.Images != nil {
		p.Images = *pp.Images
	}
	if pp.Bullets != nil {
		p.Bullets = *pp.Bullets
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.DescriptionHeading != nil {
		p.DescriptionHeading = *pp.DescriptionHeading
	}
	if pp.DescriptionPoints != nil {
		p.DescriptionPoints = *pp.DescriptionPoints
	}
	if pp.YoutubeURL != nil {
		p.YoutubeURL = *pp.YoutubeURL
	}
	if pp.Video != nil {
		p.Video = *pp.Video
	}
	if pp.SKU != nil {
		p.SKU = *pp.SKU
	}
	if pp.InventoryStatus != nil {
		p.InventoryStatus = *pp.InventoryStatus
	}
}
