package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestProductValidate(t *testing.T) {
	t.Run("defaults inventory status", func(t *testing.T) {
		p := &Product{Title: "Kettle", SKU: "K-1", Price: decimal.NewFromInt(999)}
		if err := p.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.InventoryStatus != InStock {
			t.Errorf("expected IN_STOCK, got %s", p.InventoryStatus)
		}
		if p.Images == nil || p.Bullets == nil || p.DescriptionPoints == nil {
			t.Error("expected nil slices to be replaced")
		}
	})

	negative := decimal.NewFromInt(-1)
	tests := []struct {
		name    string
		product Product
	}{
		{"missing title", Product{SKU: "K-1"}},
		{"missing sku", Product{Title: "Kettle"}},
		{"negative price", Product{Title: "Kettle", SKU: "K-1", Price: negative}},
		{"negative compare at", Product{Title: "Kettle", SKU: "K-1", CompareAtPrice: &negative}},
		{"unknown status", Product{Title: "Kettle", SKU: "K-1", InventoryStatus: "BACKORDER"}},
		{"bad youtube url", Product{Title: "Kettle", SKU: "K-1", YoutubeURL: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.product
			if err := p.Validate(); !errors.Is(err, ErrInvalidProduct) {
				t.Errorf("expected ErrInvalidProduct, got %v", err)
			}
		})
	}
}

func TestProductPatchApply(t *testing.T) {
	p := &Product{Title: "Kettle", SKU: "K-1", Price: decimal.NewFromInt(10)}
	title := "Steel Kettle"
	status := LowStock
	ProductPatch{Title: &title, InventoryStatus: &status}.Apply(p)

	if p.Title != "Steel Kettle" {
		t.Errorf("expected title to change, got %q", p.Title)
	}
	if p.SKU != "K-1" {
		t.Errorf("expected sku unchanged, got %q", p.SKU)
	}
	if p.InventoryStatus != LowStock {
		t.Errorf("expected LOW_STOCK, got %s", p.InventoryStatus)
	}
}

func TestProductPatchCompareAtPrice(t *testing.T) {
	decode := func(t *testing.T, body string) ProductPatch {
		t.Helper()
		var pp ProductPatch
		if err := json.Unmarshal([]byte(body), &pp); err != nil {
			t.Fatalf("failed to decode patch: %v", err)
		}
		return pp
	}
	withCompareAt := func() *Product {
		was := decimal.NewFromInt(1500)
		return &Product{Title: "Kettle", SKU: "K-1", Price: decimal.NewFromInt(999), CompareAtPrice: &was}
	}

	t.Run("absent key leaves it unchanged", func(t *testing.T) {
		p := withCompareAt()
		decode(t, `{"title":"Steel Kettle"}`).Apply(p)
		if p.CompareAtPrice == nil || !p.CompareAtPrice.Equal(decimal.NewFromInt(1500)) {
			t.Errorf("expected compareAtPrice 1500, got %v", p.CompareAtPrice)
		}
	})

	t.Run("null clears it", func(t *testing.T) {
		p := withCompareAt()
		decode(t, `{"compareAtPrice":null}`).Apply(p)
		if p.CompareAtPrice != nil {
			t.Errorf("expected compareAtPrice cleared, got %v", p.CompareAtPrice)
		}
	})

	t.Run("number sets it", func(t *testing.T) {
		p := withCompareAt()
		decode(t, `{"compareAtPrice":1299.50}`).Apply(p)
		if p.CompareAtPrice == nil || !p.CompareAtPrice.Equal(decimal.RequireFromString("1299.5")) {
			t.Errorf("expected compareAtPrice 1299.5, got %v", p.CompareAtPrice)
		}
	})

	t.Run("non-numeric value is rejected", func(t *testing.T) {
		var pp ProductPatch
		if err := json.Unmarshal([]byte(`{"compareAtPrice":"abc"}`), &pp); err == nil {
			t.Error("expected decode error")
		}
	})
}
